package handlers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/dashboard"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

// parseDashboardConfig reads doctor, start, end and lang. start and end are
// RFC3339 timestamps or YYYY-MM-DD dates in loc; a date end covers the whole
// day. Both or neither must be given.
func parseDashboardConfig(q url.Values, defaultLang locale.Language, loc *time.Location) (dashboard.Config, error) {
	cfg := dashboard.Config{
		DoctorID: strings.TrimSpace(q.Get("doctor")),
		Language: defaultLang,
	}

	if raw := strings.TrimSpace(q.Get("lang")); raw != "" {
		lang, ok := locale.ParseLanguage(raw)
		if !ok {
			return dashboard.Config{}, fmt.Errorf("unsupported language %q", raw)
		}
		cfg.Language = lang
	}

	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))
	if (startRaw == "") != (endRaw == "") {
		return dashboard.Config{}, fmt.Errorf("both start and end must be provided, or neither")
	}
	if startRaw == "" {
		return cfg, nil
	}

	start, err := parseBound(startRaw, loc, false)
	if err != nil {
		return dashboard.Config{}, fmt.Errorf("invalid start, use RFC3339 or YYYY-MM-DD")
	}
	end, err := parseBound(endRaw, loc, true)
	if err != nil {
		return dashboard.Config{}, fmt.Errorf("invalid end, use RFC3339 or YYYY-MM-DD")
	}
	if end.Before(start) {
		return dashboard.Config{}, fmt.Errorf("end must not be before start")
	}
	cfg.Range = &bookings.DateRange{Start: start.UTC(), End: end.UTC()}
	return cfg, nil
}

func parseBound(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return d, nil
}
