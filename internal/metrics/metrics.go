// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal         *prometheus.CounterVec
	fetchesTotal       *prometheus.CounterVec
	listingsTotal      *prometheus.CounterVec
	emailsFoundTotal   prometheus.Counter
	recordsWrittenTotal prometheus.Counter
	dedupeHitsTotal    prometheus.Counter
	activeWorkers      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		tasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadharvest_tasks_total",
				Help: "Total number of search tasks processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadharvest_fetches_total",
				Help: "Total number of outbound fetch attempts, labeled by status class.",
			},
			[]string{"status_class"},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadharvest_listings_total",
				Help: "Total number of listings resolved, labeled by source.",
			},
			[]string{"source"},
		)

		emailsFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadharvest_emails_found_total",
				Help: "Total number of distinct emails extracted.",
			},
		)

		recordsWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadharvest_records_written_total",
				Help: "Total number of records appended to the output sink.",
			},
		)

		dedupeHitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "leadharvest_dedupe_hits_total",
				Help: "Total number of listings skipped because their key was already processed.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadharvest_active_workers",
				Help: "Number of enrichment workers currently processing a listing.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ClassifyStatus groups an HTTP status code into a coarse class label.
func ClassifyStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// ObserveTask increments the task counter for the given outcome.
func ObserveTask(outcome string) {
	if tasksTotal != nil {
		tasksTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetch increments the fetch counter for the given status class.
func ObserveFetch(statusClass string) {
	if fetchesTotal != nil {
		fetchesTotal.WithLabelValues(statusClass).Inc()
	}
}

// ObserveListings adds resolved listings for the given source label.
func ObserveListings(source string, n int) {
	if listingsTotal != nil && n > 0 {
		listingsTotal.WithLabelValues(source).Add(float64(n))
	}
}

// ObserveEmails adds extracted email counts.
func ObserveEmails(n int) {
	if emailsFoundTotal != nil && n > 0 {
		emailsFoundTotal.Add(float64(n))
	}
}

// ObserveRecords adds written record counts.
func ObserveRecords(n int) {
	if recordsWrittenTotal != nil && n > 0 {
		recordsWrittenTotal.Add(float64(n))
	}
}

// ObserveDedupeHit increments the dedupe hit counter.
func ObserveDedupeHit() {
	if dedupeHitsTotal != nil {
		dedupeHitsTotal.Inc()
	}
}

// IncActiveWorkers increments the active worker gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active worker gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}
