// Package observability holds the process-wide prometheus collectors and the OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "penfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "penfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FeedCacheRequests counts response cache lookups by feed and result (hit, miss, error).
	FeedCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "penfeed_feed_cache_requests_total",
		Help: "Feed response cache lookups by result",
	}, []string{"feed", "result"})

	// FeedCacheFlushes counts explicit cache flushes.
	FeedCacheFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "penfeed_feed_cache_flushes_total",
		Help: "Total number of explicit feed cache flushes",
	})

	// WebSocketConnections is the gauge of open live feed connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "penfeed_websocket_connections",
		Help: "Number of open live feed WebSocket connections",
	})

	// EventsPublished counts realtime events by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "penfeed_events_published_total",
		Help: "Realtime events published by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped because a client could not keep up.
	WebSocketBackpressureDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "penfeed_websocket_backpressure_drops_total",
		Help: "Total number of live feed messages dropped due to backpressure",
	})
)

// DatabaseMetrics records query latency for a repository.
type DatabaseMetrics struct {
	table string
}

// NewDatabaseMetrics returns metrics bound to a table name.
func NewDatabaseMetrics(table string) *DatabaseMetrics {
	return &DatabaseMetrics{table: table}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, m.table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, start)
	}
}
