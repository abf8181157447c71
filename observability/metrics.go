// Package observability provides Prometheus metrics and OpenTelemetry
// tracing instrumentation for the domain core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// ENTITY LIFECYCLE METRICS
// =============================================================================

var (
	entityCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddscore_entity_creations_total",
			Help: "Total number of entities created, by kind and status",
		},
		[]string{"kind", "status"}, // status: success, error
	)

	entityCloseSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddscore_entity_close_seconds",
			Help:    "Time spent draining listeners during entity close",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"kind"},
	)
)

// =============================================================================
// CODEC METRICS
// =============================================================================

var (
	codecOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddscore_codec_operations_total",
			Help: "Total CDR codec operations, by operation and status",
		},
		[]string{"operation", "status"}, // operation: serialize, deserialize, normalize, extract_key
	)

	codecDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddscore_codec_duration_seconds",
			Help:    "CDR codec operation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
		[]string{"operation"},
	)
)

// =============================================================================
// TYPE-LOOKUP METRICS
// =============================================================================

var (
	typeLookupRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddscore_type_lookup_requests_total",
			Help: "Total type-lookup resolve attempts, by outcome",
		},
		[]string{"outcome"}, // outcome: resolved, timeout
	)

	typeLookupResolveSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddscore_type_lookup_resolve_seconds",
			Help:    "Time spent waiting for type resolution",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"},
	)
)

// =============================================================================
// GRPC METRICS
// =============================================================================

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ddscore_grpc_requests_total",
			Help: "Total administrative gRPC requests",
		},
		[]string{"method", "status"},
	)

	grpcRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ddscore_grpc_request_duration_seconds",
			Help:    "Administrative gRPC request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordEntityCreation records an entity creation outcome. Call after
// create_domain/create_participant/create_topic et al. return.
func RecordEntityCreation(kind, status string) {
	entityCreationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordEntityClose records the time spent draining in-flight listener
// callbacks during an entity's close protocol.
func RecordEntityClose(kind string, seconds float64) {
	entityCloseSeconds.WithLabelValues(kind).Observe(seconds)
}

// RecordCodecOperation records a CDR codec walk's outcome and duration.
func RecordCodecOperation(operation, status string, seconds float64) {
	codecOperationsTotal.WithLabelValues(operation, status).Inc()
	codecDurationSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordTypeLookupResolve records a resolve() call's outcome and the
// time spent waiting.
func RecordTypeLookupResolve(outcome string, seconds float64) {
	typeLookupRequestsTotal.WithLabelValues(outcome).Inc()
	typeLookupResolveSeconds.WithLabelValues(outcome).Observe(seconds)
}

// RecordGRPCRequest records an administrative gRPC request, called from
// the grpc package's interceptor.
func RecordGRPCRequest(method, status string, durationMS int) {
	grpcRequestsTotal.WithLabelValues(method, status).Inc()
	grpcRequestDurationSeconds.WithLabelValues(method).Observe(float64(durationMS) / 1000.0)
}
