package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/dental-booking-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-booking-dashboard/internal/http/middleware"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Dashboard      *handlers.DashboardHandler
	Bookings       *handlers.BookingsHandler
	Catalog        *handlers.CatalogHandler
	MetricsHandler http.Handler

	// HealthCheck reports backing store reachability. Optional.
	HealthCheck func(ctx context.Context) error

	// AdminAuthSecret enables operator JWT checks on /admin when set.
	AdminAuthSecret    string
	WriteLimiter       *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/admin", func(admin chi.Router) {
		if cfg.AdminAuthSecret != "" {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		}
		writes := func(rt chi.Router) chi.Router { return rt }
		if cfg.WriteLimiter != nil {
			writes = func(rt chi.Router) chi.Router { return rt.With(httpmiddleware.RateLimit(cfg.WriteLimiter)) }
		}

		if cfg.Dashboard != nil {
			// The websocket route stays uncompressed; it hijacks the connection.
			admin.Get("/dashboard/live", cfg.Dashboard.Live)
			admin.With(middleware.Compress(5)).Get("/dashboard", cfg.Dashboard.GetDashboard)
		}
		if cfg.Bookings != nil {
			writes(admin).Patch("/bookings/{bookingID}/status", cfg.Bookings.UpdateStatus)
		}
		if cfg.Catalog != nil {
			admin.Route("/catalog", func(c chi.Router) {
				c.Get("/services", cfg.Catalog.ListServices)
				c.Get("/specialists", cfg.Catalog.ListSpecialists)
				writes(c).Post("/invalidate", cfg.Catalog.Invalidate)
			})
		}
	})

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
