package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSetupMetricsExposesDashboardMetrics(t *testing.T) {
	handler, metrics := setupMetrics()
	if handler == nil || metrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	metrics.ObserveBookingFetch("initial", "ok", 0.02)
	metrics.LiveClientOpened()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, name := range []string{"dental_dashboard_booking_fetch_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s to be exported", name)
		}
	}
}
