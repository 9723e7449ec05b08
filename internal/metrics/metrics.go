package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BIN lookup outcomes
const (
	BinFound    = "found"
	BinNotFound = "not_found"
	BinError    = "error"
	BinSkipped  = "skipped"
)

// Metrics holds the service's Prometheus collectors
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	BinLookups        *prometheus.CounterVec
	DuplicatesRemoved prometheus.Counter
	DuplicateFailures prometheus.Counter
	SweepDuration     prometheus.Histogram
}

// New registers the service collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "card_service_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "card_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BinLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "card_service_bin_lookups_total",
			Help: "Total number of BIN directory lookups by outcome",
		}, []string{"outcome"}),
		DuplicatesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_service_duplicates_removed_total",
			Help: "Total number of duplicate cards removed by sweeps",
		}),
		DuplicateFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "card_service_duplicate_delete_failures_total",
			Help: "Total number of duplicate cards a sweep failed to delete",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "card_service_dedup_sweep_duration_seconds",
			Help:    "Duration of duplicate removal sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

// ObserveRequest counts a served request and records its latency under the route template
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// IncrementBinLookup counts a BIN lookup by outcome, one of the Bin* constants
func (m *Metrics) IncrementBinLookup(outcome string) {
	m.BinLookups.WithLabelValues(outcome).Inc()
}

// ObserveSweep records the result and duration of a duplicate sweep
func (m *Metrics) ObserveSweep(removed, failed int, start time.Time) {
	m.DuplicatesRemoved.Add(float64(removed))
	m.DuplicateFailures.Add(float64(failed))
	m.SweepDuration.Observe(time.Since(start).Seconds())
}
