package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
)

// Day selectors accepted by ListFilter besides a YYYY-MM-DD date.
const (
	DayAll      = "all"
	DayToday    = "today"
	DayTomorrow = "tomorrow"
)

var ErrInvalidFilter = errors.New("dashboard: invalid list filter")

// ListFilter narrows the booking list the way the appointment table does.
// Zero value matches everything.
type ListFilter struct {
	Status bookings.Status
	Search string
	Day    string
}

// ParseListFilter validates raw query values. Empty values and "all" mean
// no restriction.
func ParseListFilter(status, search, day string) (ListFilter, error) {
	f := ListFilter{Search: strings.TrimSpace(search)}

	status = strings.TrimSpace(status)
	if status != "" && !strings.EqualFold(status, DayAll) {
		s, err := bookings.ParseStatus(status)
		if err != nil {
			return ListFilter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		f.Status = s
	}

	day = strings.ToLower(strings.TrimSpace(day))
	switch day {
	case "", DayAll:
	case DayToday, DayTomorrow:
		f.Day = day
	default:
		if _, err := time.Parse(time.DateOnly, day); err != nil {
			return ListFilter{}, fmt.Errorf("%w: day %q", ErrInvalidFilter, day)
		}
		f.Day = day
	}
	return f, nil
}

// Apply returns the views matching f, preserving order. Relative days are
// resolved against now in now's location.
func (f ListFilter) Apply(views []bookings.View, now time.Time) []bookings.View {
	target, hasDay := f.targetDay(now)
	needle := strings.ToLower(f.Search)

	out := make([]bookings.View, 0, len(views))
	for _, v := range views {
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(v.CustomerName), needle) &&
			!strings.Contains(strings.ToLower(v.ServiceName), needle) {
			continue
		}
		if hasDay && !sameDay(v.StartTime, target) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (f ListFilter) targetDay(now time.Time) (time.Time, bool) {
	switch f.Day {
	case "", DayAll:
		return time.Time{}, false
	case DayToday:
		return now, true
	case DayTomorrow:
		return now.AddDate(0, 0, 1), true
	}
	d, err := time.ParseInLocation(time.DateOnly, f.Day, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
