package bookings

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

type statusWriter interface {
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Service applies operator status changes (confirm, cancel, complete).
// Dashboards observe the result through the change feed, not through this call.
type Service struct {
	repo   statusWriter
	logger *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo statusWriter, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger.Component("bookings")}
}

// SetStatus validates raw and writes it. Failures are returned to the caller unretried.
func (s *Service) SetStatus(ctx context.Context, id, raw string) (Status, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.set_status")
	defer span.End()
	span.SetAttributes(attribute.String("dental.booking_id", id))

	status, err := ParseStatus(raw)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		span.RecordError(err)
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidID) {
			s.logger.Error("booking status update failed", "booking_id", id, "status", status, "error", err)
		}
		return "", err
	}
	s.logger.Info("booking status updated", "booking_id", id, "status", status)
	return status, nil
}
