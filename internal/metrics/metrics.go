// Package metrics provides Prometheus metrics for readerstore
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for readerstore
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Document store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Maintenance metrics
	CascadeSweepsTotal     *prometheus.CounterVec
	PendingCascades        prometheus.Gauge
	QualityRecomputedTotal *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerstore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readerstore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "readerstore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.StoreOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerstore_store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"table", "operation", "status"},
	)

	m.StoreOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readerstore_store_operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"table", "operation"},
	)

	m.CascadeSweepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerstore_cascade_sweep_entries_total",
			Help: "Pending cascades handled by the sweeper, by outcome",
		},
		[]string{"outcome"},
	)

	m.PendingCascades = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "readerstore_pending_cascades",
			Help: "Pending cascades seen by the last sweep",
		},
	)

	m.QualityRecomputedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readerstore_quality_recomputed_total",
			Help: "Content items rescored, by kind",
		},
		[]string{"kind"},
	)

	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "readerstore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until ctx is done
func (m *Metrics) RunUptime(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordStoreOperation records a document store call
func (m *Metrics) RecordStoreOperation(table, operation, status string, duration time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(table, operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(table, operation).Observe(duration.Seconds())
}

// RecordSweep records the outcome counts of one cascade sweep
func (m *Metrics) RecordSweep(pending, resumed, failed int) {
	m.PendingCascades.Set(float64(pending))
	m.CascadeSweepsTotal.WithLabelValues("resumed").Add(float64(resumed))
	m.CascadeSweepsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordRecompute records rescored items per kind
func (m *Metrics) RecordRecompute(posts, comments, replies int) {
	m.QualityRecomputedTotal.WithLabelValues("post").Add(float64(posts))
	m.QualityRecomputedTotal.WithLabelValues("comment").Add(float64(comments))
	m.QualityRecomputedTotal.WithLabelValues("reply").Add(float64(replies))
}
