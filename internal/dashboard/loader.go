package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

var dashboardTracer = otel.Tracer("dental.internal.dashboard")

// Fetch triggers, used as metric labels.
const (
	TriggerInitial = "initial"
	TriggerRefresh = "refresh"
	TriggerConfig  = "config"
	TriggerChange  = "change"
	TriggerRequest = "request"
)

// Config selects which bookings a dashboard shows.
type Config struct {
	// DoctorID is a provider id, or "all".
	DoctorID string
	Range    *bookings.DateRange
	Language locale.Language
}

func (c Config) query() bookings.ListQuery {
	return bookings.ListQuery{DoctorID: c.DoctorID, Range: c.Range}
}

func (c Config) withDefaults() Config {
	if c.DoctorID == "" {
		c.DoctorID = "all"
	}
	if c.Language == "" {
		c.Language = locale.EN
	}
	return c
}

// BookingReader reads raw joined booking rows.
type BookingReader interface {
	List(ctx context.Context, q bookings.ListQuery) ([]bookings.RawRow, error)
}

// Fetcher loads the normalized booking list for a config.
type Fetcher interface {
	Load(ctx context.Context, cfg Config, trigger string) ([]bookings.View, error)
}

// Loader runs one fetch-and-normalize cycle.
type Loader struct {
	reader     BookingReader
	normalizer *bookings.Normalizer
	metrics    *metrics.DashboardMetrics
	logger     *logging.Logger
}

func NewLoader(reader BookingReader, normalizer *bookings.Normalizer, m *metrics.DashboardMetrics, logger *logging.Logger) *Loader {
	if reader == nil {
		panic("dashboard: booking reader required")
	}
	if normalizer == nil {
		normalizer = bookings.NewNormalizer(bookings.NormalizerOptions{Logger: logger})
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{
		reader:     reader,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger.Component("dashboard.loader"),
	}
}

// Load queries bookings for cfg and normalizes them in cfg.Language.
func (l *Loader) Load(ctx context.Context, cfg Config, trigger string) ([]bookings.View, error) {
	cfg = cfg.withDefaults()
	ctx, span := dashboardTracer.Start(ctx, "dashboard.load")
	defer span.End()
	span.SetAttributes(
		attribute.String("dashboard.doctor_id", cfg.DoctorID),
		attribute.String("dashboard.trigger", trigger),
	)

	started := time.Now()
	rows, err := l.reader.List(ctx, cfg.query())
	if err != nil {
		l.metrics.ObserveBookingFetch(trigger, "error", time.Since(started).Seconds())
		span.RecordError(err)
		return nil, fmt.Errorf("dashboard: load bookings: %w", err)
	}
	views := l.normalizer.Normalize(ctx, rows, cfg.Language)
	l.metrics.ObserveBookingFetch(trigger, "ok", time.Since(started).Seconds())
	span.SetAttributes(
		attribute.Int("dashboard.rows", len(rows)),
		attribute.Int("dashboard.views", len(views)),
	)
	l.logger.Debug("bookings loaded", "trigger", trigger, "rows", len(rows), "views", len(views))
	return views, nil
}
