package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	QueriesTotal    prometheus.Counter
	IDsTotal        prometheus.Counter
	RotationsTotal  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	CurrentDay      prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_requests_total",
			Help: "Search API requests by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_request_duration_seconds",
			Help:    "Search API request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	queries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_queries_total",
			Help: "Queries completed, including zero-result queries.",
		},
	)
	ids := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_ids_written_total",
			Help: "Identifiers appended to the output file.",
		},
	)
	rotations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_key_rotations_total",
			Help: "Times the harvester switched to the next API key.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_errors_total",
			Help: "Search API errors by type.",
		},
		[]string{"error_type"},
	)
	currentDay := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_current_day_timestamp_seconds",
			Help: "Unix time of the day currently being searched.",
		},
	)

	registry.MustRegister(requests, requestDuration, queries, ids, rotations, errorsTotal, currentDay)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		QueriesTotal:    queries,
		IDsTotal:        ids,
		RotationsTotal:  rotations,
		ErrorsTotal:     errorsTotal,
		CurrentDay:      currentDay,
	}
}

// IncRequest counts a request with the given outcome label.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncQueries() {
	if m == nil {
		return
	}
	m.QueriesTotal.Inc()
}

func (m *Metrics) AddIDs(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IDsTotal.Add(float64(n))
}

func (m *Metrics) IncRotations() {
	if m == nil {
		return
	}
	m.RotationsTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) SetDay(day time.Time) {
	if m == nil {
		return
	}
	m.CurrentDay.Set(float64(day.Unix()))
}
