package bookings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

var (
	ErrNotFound      = errors.New("bookings: not found")
	ErrInvalidStatus = errors.New("bookings: invalid status")
	ErrInvalidID     = errors.New("bookings: invalid booking id")
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Record is a persisted booking row.
type Record struct {
	ID            string
	CreatedAt     time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	StartTime     time.Time
	Status        Status
	DoctorID      string
	ServiceID     string
}

// ServiceJoin is the clinic_services row joined onto a booking.
type ServiceJoin struct {
	Name            locale.Name
	PriceCents      int
	DurationMinutes int
}

// DoctorJoin is the profiles row joined onto a booking.
type DoctorJoin struct {
	FullName string
}

// RawRow is a booking with its optional joins, as read from the database.
// LegacyServiceName is the denormalized service_name column written by
// older widget versions; it may hold plain text or an encoded mapping.
type RawRow struct {
	Record
	LegacyServiceName locale.Name
	Service           *ServiceJoin
	Doctor            *DoctorJoin
}

// View is the canonical dashboard shape of a booking.
type View struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone,omitempty"`
	StartTime       time.Time `json:"start_time"`
	Status          Status    `json:"status"`
	DoctorID        string    `json:"doctor_id,omitempty"`
	ServiceID       string    `json:"service_id,omitempty"`
	DoctorName      string    `json:"doctor_name"`
	ServiceName     string    `json:"service_name"`
	Price           *float64  `json:"price,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}

// DateRange bounds booking start times, inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ListQuery filters a booking read. DoctorID "" or "all" means every provider.
type ListQuery struct {
	DoctorID string
	Range    *DateRange
}

// AllDoctors reports whether the query spans every provider.
func (q ListQuery) AllDoctors() bool {
	id := strings.TrimSpace(q.DoctorID)
	return id == "" || strings.EqualFold(id, "all")
}
