package bookings

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

const (
	UnknownService = "Unknown Service"
	Unassigned     = "Unassigned"
)

// ServiceLookup resolves catalog entries for bookings whose service join is missing.
type ServiceLookup interface {
	ServiceByID(ctx context.Context, id string) (catalog.Service, bool)
}

// NoiseFilter drops rows that look like test or junk submissions. The
// thresholds are a data-hygiene heuristic, not a business rule.
type NoiseFilter struct {
	MinNameLength int
	NameContains  []string
	EmailContains []string
}

// DefaultNoiseFilter matches the dashboard's historical hygiene rules.
func DefaultNoiseFilter() NoiseFilter {
	return NoiseFilter{
		MinNameLength: 3,
		NameContains:  []string{"test"},
		EmailContains: []string{"test", "example.com"},
	}
}

// IsNoise reports whether the record should be hidden from the dashboard.
func (f NoiseFilter) IsNoise(r Record) bool {
	name := strings.TrimSpace(r.CustomerName)
	if utf8.RuneCountInString(name) < f.MinNameLength {
		return true
	}
	lowerName := strings.ToLower(name)
	for _, s := range f.NameContains {
		if strings.Contains(lowerName, s) {
			return true
		}
	}
	lowerEmail := strings.ToLower(r.CustomerEmail)
	for _, s := range f.EmailContains {
		if strings.Contains(lowerEmail, s) {
			return true
		}
	}
	return false
}

// NormalizerOptions configures a Normalizer.
type NormalizerOptions struct {
	Lookup ServiceLookup
	// Noise overrides the default filter. Ignored when DisableNoiseFilter is set.
	Noise              *NoiseFilter
	DisableNoiseFilter bool
	Logger             *logging.Logger
}

// Normalizer turns raw joined rows into dashboard views.
type Normalizer struct {
	lookup ServiceLookup
	noise  *NoiseFilter
	logger *logging.Logger
}

func NewNormalizer(opts NormalizerOptions) *Normalizer {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	n := &Normalizer{lookup: opts.Lookup, logger: opts.Logger.Component("normalizer")}
	if !opts.DisableNoiseFilter {
		f := DefaultNoiseFilter()
		if opts.Noise != nil {
			f = *opts.Noise
		}
		n.noise = &f
	}
	return n
}

// Normalize resolves names, prices and durations for lang, drops noise rows
// and keeps the input order. Rows with missing joins fall back to defaults.
func (n *Normalizer) Normalize(ctx context.Context, rows []RawRow, lang locale.Language) []View {
	out := make([]View, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		if n.noise != nil && n.noise.IsNoise(row.Record) {
			dropped++
			continue
		}
		out = append(out, n.view(ctx, row, lang))
	}
	if dropped > 0 {
		n.logger.Debug("dropped noise bookings", "dropped", dropped, "kept", len(out))
	}
	return out
}

func (n *Normalizer) view(ctx context.Context, row RawRow, lang locale.Language) View {
	v := View{
		ID:            row.ID,
		CreatedAt:     row.CreatedAt,
		CustomerName:  row.CustomerName,
		CustomerEmail: row.CustomerEmail,
		CustomerPhone: row.CustomerPhone,
		StartTime:     row.StartTime,
		Status:        row.Status,
		DoctorID:      row.DoctorID,
		ServiceID:     row.ServiceID,
		DoctorName:    Unassigned,
	}

	if row.Doctor != nil {
		if name := strings.TrimSpace(row.Doctor.FullName); name != "" {
			v.DoctorName = name
		}
	}

	var names []locale.Name
	if row.Service != nil {
		names = append(names, row.Service.Name)
		v.Price = floatPtr(catalog.PriceFromCents(row.Service.PriceCents))
		v.DurationMinutes = intPtr(row.Service.DurationMinutes)
	}
	names = append(names, row.LegacyServiceName)
	if row.Service == nil && n.lookup != nil && row.ServiceID != "" {
		if svc, ok := n.lookup.ServiceByID(ctx, row.ServiceID); ok {
			names = append(names, svc.Name)
			v.Price = floatPtr(svc.Price)
			v.DurationMinutes = intPtr(svc.DurationMinutes)
		}
	}

	v.ServiceName = UnknownService
	for _, name := range names {
		if resolved := name.Resolve(lang); resolved != "" {
			v.ServiceName = resolved
			break
		}
	}
	return v
}

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }
