package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	CarrierRequestsTotal   *prometheus.CounterVec
	CarrierRequestDuration *prometheus.HistogramVec
	CarrierErrors          *prometheus.CounterVec
	CheckoutsTotal         *prometheus.CounterVec
	TrackingRefreshesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CarrierRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_requests_total",
				Help: "Total carrier API requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		CarrierRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_carrier_request_duration_seconds",
				Help:    "Carrier request duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CarrierErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by error type",
			},
			[]string{"error_type"},
		),
		CheckoutsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_checkouts_total",
				Help: "Total checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		TrackingRefreshesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_tracking_refreshes_total",
				Help: "Total tracking refreshes by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordCarrierRequest records one carrier API call.
func (m *Metrics) RecordCarrierRequest(operation, status string, duration float64) {
	m.CarrierRequestsTotal.WithLabelValues(operation, status).Inc()
	m.CarrierRequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCarrierError records one carrier error by type.
func (m *Metrics) RecordCarrierError(errorType string) {
	m.CarrierErrors.WithLabelValues(errorType).Inc()
}

// RecordCheckout records one checkout attempt.
func (m *Metrics) RecordCheckout(outcome string) {
	m.CheckoutsTotal.WithLabelValues(outcome).Inc()
}

// RecordTrackingRefresh records one tracking refresh.
func (m *Metrics) RecordTrackingRefresh(outcome string) {
	m.TrackingRefreshesTotal.WithLabelValues(outcome).Inc()
}
