package metrics

import "github.com/prometheus/client_golang/prometheus"

// DashboardMetrics exposes counters/histograms for the dashboard data core.
type DashboardMetrics struct {
	catalogLoads  *prometheus.CounterVec
	bookingFetch  *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	changeEvents  *prometheus.CounterVec
	staleDiscards prometheus.Counter
	liveClients   prometheus.Gauge
}

func NewDashboardMetrics(reg prometheus.Registerer) *DashboardMetrics {
	m := &DashboardMetrics{
		catalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "catalog",
			Name:      "loads_total",
			Help:      "Catalog reads by catalog and data source (database, shared, fallback, cache)",
		}, []string{"catalog", "source"}),
		bookingFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "dashboard",
			Name:      "booking_fetch_total",
			Help:      "Booking fetches by trigger and outcome",
		}, []string{"trigger", "status"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dental",
			Subsystem: "dashboard",
			Name:      "booking_fetch_seconds",
			Help:      "Latency of booking fetch-and-normalize cycles",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		changeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "changefeed",
			Name:      "events_total",
			Help:      "Booking change notifications received",
		}, []string{"op"}),
		staleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dental",
			Subsystem: "dashboard",
			Name:      "stale_responses_total",
			Help:      "Fetch results discarded because a newer fetch was issued",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dental",
			Subsystem: "dashboard",
			Name:      "live_clients",
			Help:      "Open live dashboard connections",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.catalogLoads, m.bookingFetch, m.fetchLatency, m.changeEvents, m.staleDiscards, m.liveClients)
	return m
}

func (m *DashboardMetrics) ObserveCatalogLoad(catalog, source string) {
	if m == nil {
		return
	}
	m.catalogLoads.WithLabelValues(catalog, source).Inc()
}

func (m *DashboardMetrics) ObserveBookingFetch(trigger, status string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingFetch.WithLabelValues(trigger, status).Inc()
	m.fetchLatency.WithLabelValues(status).Observe(seconds)
}

func (m *DashboardMetrics) ObserveChangeEvent(op string) {
	if m == nil {
		return
	}
	m.changeEvents.WithLabelValues(op).Inc()
}

func (m *DashboardMetrics) ObserveStaleDiscard() {
	if m == nil {
		return
	}
	m.staleDiscards.Inc()
}

func (m *DashboardMetrics) LiveClientOpened() {
	if m == nil {
		return
	}
	m.liveClients.Inc()
}

func (m *DashboardMetrics) LiveClientClosed() {
	if m == nil {
		return
	}
	m.liveClients.Dec()
}
