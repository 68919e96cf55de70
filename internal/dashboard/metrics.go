// Package dashboard derives KPIs from normalized bookings and keeps a live,
// self-refreshing view of the booking list.
package dashboard

import (
	"math"
	"time"

	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
)

// Metrics are the headline KPIs shown above the booking list.
type Metrics struct {
	AppointmentsToday      int     `json:"appointments_today"`
	PatientsWaitingToday   int     `json:"patients_waiting_today"`
	PendingRequestsTotal   int     `json:"pending_requests_total"`
	RecognizedRevenueTotal float64 `json:"recognized_revenue_total"`
}

// ComputeMetrics aggregates views as of now. Calendar days are evaluated in
// now's location. Revenue is accumulated in cents so input order cannot
// change the result.
func ComputeMetrics(views []bookings.View, now time.Time) Metrics {
	var (
		m     Metrics
		cents int64
	)
	for _, v := range views {
		today := sameDay(v.StartTime, now)
		switch v.Status {
		case bookings.StatusPending:
			m.PendingRequestsTotal++
		case bookings.StatusConfirmed:
			if today && v.StartTime.After(now) {
				m.PatientsWaitingToday++
			}
		}
		if today && v.Status != bookings.StatusCancelled {
			m.AppointmentsToday++
		}
		if recognized(v.Status) && v.Price != nil {
			cents += int64(math.Round(*v.Price * 100))
		}
	}
	m.RecognizedRevenueTotal = float64(cents) / 100
	return m
}

func recognized(s bookings.Status) bool {
	return s == bookings.StatusConfirmed || s == bookings.StatusCompleted
}

func sameDay(t, now time.Time) bool {
	ty, tm, td := t.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ty == ny && tm == nm && td == nd
}
