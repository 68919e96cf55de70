package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/changefeed"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

type statusSetter interface {
	SetStatus(ctx context.Context, id, raw string) (bookings.Status, error)
}

// BookingsHandler serves operator status changes.
type BookingsHandler struct {
	svc    statusSetter
	relay  changefeed.Publisher
	logger *logging.Logger
}

// NewBookingsHandler creates a bookings handler. relay is optional and is
// only needed when the database does not announce changes itself.
func NewBookingsHandler(svc statusSetter, relay changefeed.Publisher, logger *logging.Logger) *BookingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{svc: svc, relay: relay, logger: logger.Component("http.bookings")}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatusResponse echoes the applied status.
type UpdateStatusResponse struct {
	ID     string          `json:"id"`
	Status bookings.Status `json:"status"`
}

// UpdateStatus confirms, cancels or completes a booking.
// PATCH /admin/bookings/{bookingID}/status
func (h *BookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "bookingID"))
	if id == "" {
		jsonError(w, "missing bookingID", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	status, err := h.svc.SetStatus(r.Context(), id, req.Status)
	switch {
	case err == nil:
	case errors.Is(err, bookings.ErrInvalidID):
		jsonError(w, "invalid booking id", http.StatusBadRequest)
		return
	case errors.Is(err, bookings.ErrInvalidStatus):
		jsonError(w, "status must be one of pending, confirmed, cancelled, completed", http.StatusBadRequest)
		return
	case errors.Is(err, bookings.ErrNotFound):
		jsonError(w, "booking not found", http.StatusNotFound)
		return
	default:
		jsonError(w, "failed to update booking status", http.StatusInternalServerError)
		return
	}

	if h.relay != nil {
		evt := changefeed.Event{Table: "bookings", Op: changefeed.OpUpdate, RecordID: id, At: time.Now().UTC()}
		if err := h.relay.Publish(r.Context(), evt); err != nil {
			h.logger.Warn("failed to relay status change", "booking_id", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, UpdateStatusResponse{ID: id, Status: status})
}
