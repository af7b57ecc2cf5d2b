package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	PoemsTotal       *prometheus.CounterVec
	TruncatedTotal   prometheus.Counter
	HarvestedLinks   prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	ExtractionErrors prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	poems := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_poems_accepted_total",
			Help: "Total number of poems accepted into the result set.",
		},
		[]string{"phase"},
	)
	truncated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_poems_truncated_total",
			Help: "Poems dropped from the last listing page to respect the quota.",
		},
	)
	harvested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_harvested_links_total",
			Help: "Detail page links collected from category index pages.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	extractionErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_extraction_errors_total",
			Help: "Pages whose structure did not match the expected layout.",
		},
	)

	registry.MustRegister(requests, requestDuration, poems, truncated, harvested, errorsTotal, extractionErrors)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		PoemsTotal:       poems,
		TruncatedTotal:   truncated,
		HarvestedLinks:   harvested,
		ErrorsTotal:      errorsTotal,
		ExtractionErrors: extractionErrors,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddPoems adds accepted poems for a phase.
func (m *Metrics) AddPoems(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PoemsTotal.WithLabelValues(phase).Add(float64(n))
}

// AddTruncated records poems dropped by quota truncation.
func (m *Metrics) AddTruncated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TruncatedTotal.Add(float64(n))
}

// AddHarvestedLinks records collected detail links.
func (m *Metrics) AddHarvestedLinks(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HarvestedLinks.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncExtractionError increments the extraction failure counter.
func (m *Metrics) IncExtractionError() {
	if m == nil {
		return
	}
	m.ExtractionErrors.Inc()
}
