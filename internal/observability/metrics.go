// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusfeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CommentsCreated counts committed comments by kind (root or reply).
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_comments_created_total",
		Help: "Total number of comments created",
	}, []string{"kind"})

	// ReactionsApplied counts reaction submissions by target type and outcome.
	ReactionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_reactions_total",
		Help: "Total reaction submissions by target type and outcome",
	}, []string{"target_type", "outcome"})

	// NotificationsCreated counts notification rows written by kind.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_notifications_created_total",
		Help: "Total notifications created",
	}, []string{"kind"})

	// PostsDeleted counts completed cascade deletions.
	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusfeed_posts_deleted_total",
		Help: "Total number of posts removed by cascade deletion",
	})

	// CacheLookups counts cache reads by cache name and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// EventsPublished counts domain events handed to the broker.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_events_published_total",
		Help: "Domain events published by routing key and result",
	}, []string{"routing_key", "result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campusfeed_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusfeed_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup counts one lookup against the named cache.
func RecordCacheLookup(cache string, hit bool, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}
