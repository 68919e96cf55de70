package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	"github.com/wolfman30/dental-booking-dashboard/internal/dashboard"
	"github.com/wolfman30/dental-booking-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-booking-dashboard/internal/http/middleware"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

type emptyReader struct{}

func (emptyReader) List(context.Context, bookings.ListQuery) ([]bookings.RawRow, error) {
	return nil, nil
}

type okStatusWriter struct{}

func (okStatusWriter) UpdateStatus(context.Context, string, bookings.Status) error { return nil }

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()

	logger := logging.Default()
	reg := prometheus.NewRegistry()
	m := metrics.NewDashboardMetrics(reg)
	loader := dashboard.NewLoader(emptyReader{}, nil, m, logger)
	cache := catalog.NewCache(nil, catalog.Options{Metrics: m})

	cfg := &Config{
		Logger:         logger,
		Dashboard:      handlers.NewDashboardHandler(loader, handlers.DashboardOptions{Metrics: m}, logger),
		Bookings:       handlers.NewBookingsHandler(bookings.NewService(okStatusWriter{}, logger), nil, logger),
		Catalog:        handlers.NewCatalogHandler(cache, locale.EN, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthDegraded(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.HealthCheck = func(context.Context) error { return errors.New("db unreachable") }
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestRouterAdminRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/admin/dashboard?lang=lv", "", http.StatusOK},
		{http.MethodGet, "/admin/catalog/services", "", http.StatusOK},
		{http.MethodGet, "/admin/catalog/specialists?lang=ru", "", http.StatusOK},
		{http.MethodPost, "/admin/catalog/invalidate", "", http.StatusOK},
		{http.MethodPatch, "/admin/bookings/2b6f2a4e-8f0e-4a43-9d0a-0b9e7f3c1d22/status", `{"status":"completed"}`, http.StatusOK},
		{http.MethodGet, "/admin/bookings/2b6f2a4e-8f0e-4a43-9d0a-0b9e7f3c1d22/status", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Errorf("%s %s: expected %d, got %d (%s)", tc.method, tc.path, tc.want, rr.Code, rr.Body.String())
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/catalog/services", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "dental_catalog_loads_total") {
		t.Fatalf("expected catalog load counter in metrics output")
	}
}

func TestRouterAdminRequiresTokenWhenSecretSet(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) { cfg.AdminAuthSecret = "secret" })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/catalog/services", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/catalog/services", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rr.Code)
	}
}

func TestRouterRateLimitsWrites(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.WriteLimiter = httpmiddleware.NewRateLimiter(0.001, 1)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/catalog/invalidate", nil))
		codes = append(codes, rr.Code)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/catalog/services", nil))
	codes = append(codes, rr.Code)

	want := []int{http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, codes)
		}
	}
}

func TestRouterStatusPreflightSkipsAuth(t *testing.T) {
	router := newTestRouter(t, func(cfg *Config) {
		cfg.AdminAuthSecret = "secret"
		cfg.CORSAllowedOrigins = []string{"https://admin.clinic.lv"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/admin/bookings/7d3c1a52-1e0b-4f51-a1a8-2f0f0f0e9b11/status", nil)
	req.Header.Set("Origin", "https://admin.clinic.lv")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected preflight status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Fatalf("expected PATCH in allowed methods, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("expected Authorization in allowed headers, got %q", got)
	}
}
