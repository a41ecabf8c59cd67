// Package observability provides metrics and tracing for the application.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "duet_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// SlotsCreated counts game slots materialized by the daily generator.
	SlotsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duet_game_slots_created_total",
		Help: "Total game slots created by the daily generator",
	})

	// GenerateConflicts counts creation races resolved by re-reading the winner.
	GenerateConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duet_daily_generate_conflicts_total",
		Help: "Total daily-game creation races resolved by returning the first writer's slots",
	})

	// AnswersSubmitted counts answer submissions by outcome.
	AnswersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_answers_submitted_total",
		Help: "Total answer submissions by outcome",
	}, []string{"outcome"})

	// SlotsExpired counts slots retired by the expiry sweep.
	SlotsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duet_game_slots_expired_total",
		Help: "Total game slots expired by the sweeper",
	})

	// FeedEventsPublished counts realtime events published by type.
	FeedEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_feed_events_published_total",
		Help: "Total realtime events published by event type",
	}, []string{"event_type"})

	// FeedEventsDelivered counts events handed to subscribers by scope kind.
	FeedEventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_feed_events_delivered_total",
		Help: "Total realtime events delivered to subscribers by scope kind",
	}, []string{"scope"})

	// FeedBackpressureDrops counts subscribers dropped due to full buffers.
	FeedBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_feed_backpressure_drops_total",
		Help: "Total feed subscribers dropped due to backpressure",
	}, []string{"scope", "reason"})

	// PresenceTransitions counts presence events by type.
	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_presence_transitions_total",
		Help: "Total presence transitions by event type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts websocket sends dropped because a
	// client's outbound buffer was full or closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "duet_websocket_backpressure_drops_total",
		Help: "Total websocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// FeedStreams is the gauge of open feed streams by scope kind.
	FeedStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "duet_feed_streams",
		Help: "Number of open feed streams by scope kind",
	}, []string{"scope"})
)

// Answer submission outcome labels.
const (
	OutcomePending   = "pending"
	OutcomeMatch     = "match"
	OutcomeMismatch  = "mismatch"
	OutcomeDuplicate = "duplicate"
	OutcomeExpired   = "expired"
	OutcomeRejected  = "rejected"
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
