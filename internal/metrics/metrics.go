package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Publish side. Publish failures are deliberately a metric, not an
	// error on the write path: a broker outage must never block a commit.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotizacion_events_published_total",
			Help: "Total number of domain events published to the exchange",
		},
		[]string{"event"},
	)

	PublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotizacion_publish_failures_total",
			Help: "Total number of domain event publish failures (best-effort path)",
		},
		[]string{"event"},
	)

	// Consume side.
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotizacion_messages_consumed_total",
			Help: "Total messages taken off the core queue, by outcome",
		},
		[]string{"event", "outcome"}, // processed | retried | dead_lettered | dropped | unknown
	)

	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotizacion_retry_attempts_total",
			Help: "Total re-publishes with an incremented retry counter",
		},
		[]string{"event"},
	)

	DLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cotizacion_dlq_messages_total",
			Help: "Total messages forwarded to the dead-letter queue",
		},
		[]string{"event"},
	)
)
