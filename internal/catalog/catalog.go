package catalog

import (
	"context"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

// Service is a bookable clinic service.
type Service struct {
	ID              string      `json:"id"`
	Name            locale.Name `json:"name"`
	Description     locale.Name `json:"description"`
	Price           float64     `json:"price"`
	PriceCents      int         `json:"price_cents"`
	DurationMinutes int         `json:"duration_minutes"`
	Category        string      `json:"category,omitempty"`
	Icon            string      `json:"icon,omitempty"`
}

// Specialist is a provider patients can book with.
type Specialist struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Role        locale.Name `json:"role"`
	PhotoURL    string      `json:"photo_url,omitempty"`
	Specialties []string    `json:"specialties,omitempty"`
}

// Source loads active catalog entries ordered by display order.
type Source interface {
	ActiveServices(ctx context.Context) ([]Service, error)
	ActiveSpecialists(ctx context.Context) ([]Specialist, error)
}

// Origin describes where a catalog list came from. FetchedAt is when the list
// was read from the database, which for a shared tier can predate the call.
type Origin struct {
	FetchedAt time.Time
	Shared    bool
}

// stampedSource is implemented by sources that may return lists another
// instance read earlier. The cache expires such lists relative to FetchedAt.
type stampedSource interface {
	StampedServices(ctx context.Context) ([]Service, Origin, error)
	StampedSpecialists(ctx context.Context) ([]Specialist, Origin, error)
}

// Snapshot bundles both catalogs.
type Snapshot struct {
	Services    []Service    `json:"services"`
	Specialists []Specialist `json:"specialists"`
}

// PriceFromCents converts minor currency units to major units.
func PriceFromCents(cents int) float64 {
	return float64(cents) / 100
}
