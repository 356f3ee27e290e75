package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/industria/cotizacion-service/internal/audit"
	"github.com/industria/cotizacion-service/internal/events"
	"github.com/industria/cotizacion-service/internal/metrics"
)

const (
	defaultPrefetch   = 10
	defaultMaxRetries = 3

	handlerTimeout = 30 * time.Second
)

type ConsumerConfig struct {
	RabbitURL  string
	Prefetch   int
	MaxRetries int
	Tag        string
}

// Consumer drains the core work queue, dispatching each decoded envelope
// by event name. Every outcome ends in an acknowledgment: success acks,
// malformed and unknown messages are acked and dropped, handler failures
// are re-published with an incremented retry counter (then acked) and
// dead-lettered once the ceiling is reached. The consume loop never
// escalates an error past itself; its job is forward progress.
type Consumer struct {
	url        string
	prefetch   int
	maxRetries int
	tag        string

	handlers map[string]events.HandlerFunc
	audit    *audit.Logger
	lg       zerolog.Logger

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}

	conn       *amqp.Connection
	chConsume  *amqp.Channel
	chPublish  *amqp.Channel
	deliveries <-chan amqp.Delivery
	pub        redeliverer
}

func NewConsumer(cfg ConsumerConfig, handlers map[string]events.HandlerFunc, auditLog *audit.Logger, lg zerolog.Logger) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Consumer{
		url:        cfg.RabbitURL,
		prefetch:   prefetch,
		maxRetries: maxRetries,
		tag:        cfg.Tag,
		handlers:   handlers,
		audit:      auditLog,
		lg:         lg.With().Str("component", "rabbitmq_consumer").Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	c.doneCh = make(chan struct{})
	c.running = true
	go c.run(ctx)
	return nil
}

func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	doneCh := c.doneCh
	c.running = false
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// run is the supervisor loop: connect, declare topology, consume, and on
// connection loss reconnect with exponential backoff. A topology mismatch
// (PRECONDITION_FAILED) is fatal, not retried.
func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		doneCh := c.doneCh
		c.doneCh = nil
		c.running = false
		c.mu.Unlock()

		if doneCh != nil {
			close(doneCh)
		}
	}()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consumer supervisor exiting (ctx cancelled)")
			return
		default:
		}

		if !c.isRunning() {
			c.lg.Info().Msg("consumer supervisor exiting (stopped)")
			return
		}

		err := c.connectAndDeclare()
		if err != nil {
			if isPreconditionFailed(err) {
				c.lg.Error().Err(err).Msg("FATAL: topology precondition failed; existing broker resources do not match the declared arguments")
				return
			}

			c.lg.Error().Err(err).Dur("backoff", backoff).Msg("connectAndDeclare failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 1 * time.Second
		c.consumeLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.lg.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		c.closeConn()

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *Consumer) connectAndDeclare() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	chConsume, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("consume channel: %w", err)
	}
	chPublish, err := conn.Channel()
	if err != nil {
		c.closeAll(conn, chConsume, nil)
		return fmt.Errorf("publish channel: %w", err)
	}

	if err := DeclareTopology(chConsume); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return err
	}

	if err := chConsume.Qos(c.prefetch, 0, false); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("qos: %w", err)
	}

	dlv, err := chConsume.Consume(QueueCore, c.tag, false, false, false, false, nil)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("consume: %w", err)
	}

	pub, err := NewRetryPublisher(chPublish, c.lg)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("retry publisher: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.chConsume = chConsume
	c.chPublish = chPublish
	c.deliveries = dlv
	c.pub = pub
	c.mu.Unlock()

	c.lg.Info().
		Str("queue", QueueCore).
		Str("exchange", ExchangeEvents).
		Int("prefetch", c.prefetch).
		Int("max_retries", c.maxRetries).
		Msg("rabbitmq consumer ready (separate consume/publish channels; confirm+mandatory enabled)")

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consume loop context cancelled")
			return

		case d, ok := <-c.deliveries:
			if !ok {
				c.lg.Warn().Msg("deliveries channel closed")
				return
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery decides the fate of one message. All paths acknowledge
// the original delivery; retries and dead letters travel as new messages.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	env, err := events.Decode(d.Body)
	if err != nil {
		var de *events.DecodeError
		if errors.As(err, &de) {
			// Poison message: a structural parse failure will never
			// succeed on redelivery.
			c.drop(d, originalRoutingKey(d), de.Reason)
			return
		}
		c.drop(d, originalRoutingKey(d), err.Error())
		return
	}

	handler, ok := c.handlers[env.Event]
	if !ok {
		// Forward compatibility: new producers must not break old
		// consumers.
		c.lg.Warn().
			Str("event", env.Event).
			Str("message_id", d.MessageId).
			Msg("unknown event name; acked and skipped")
		metrics.MessagesConsumedTotal.WithLabelValues(env.Event, "unknown").Inc()
		_ = d.Ack(false)
		return
	}

	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	err = handler(hctx, env)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		metrics.MessagesConsumedTotal.WithLabelValues(env.Event, "processed").Inc()
		if c.audit != nil {
			c.audit.MessageProcessed(env.Event, d.MessageId)
		}
		return
	}

	retryCount := getRetryCount(d.Headers)

	if retryCount < c.maxRetries {
		next := retryCount + 1
		if pubErr := c.pub.Republish(ctx, d, next); pubErr != nil {
			// Could not schedule the retry; let the queue's DLX take
			// the original instead of looping on the same delivery.
			c.lg.Error().Err(pubErr).Str("event", env.Event).Msg("retry republish failed; nacking to DLX")
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
		metrics.MessagesConsumedTotal.WithLabelValues(env.Event, "retried").Inc()
		metrics.RetryAttemptsTotal.WithLabelValues(env.Event).Inc()
		if c.audit != nil {
			c.audit.MessageRetried(env.Event, d.MessageId, next)
		}
		c.lg.Warn().
			Err(err).
			Str("event", env.Event).
			Int("retry_count", next).
			Msg("handler failed; re-published for retry")
		return
	}

	if pubErr := c.pub.DeadLetter(ctx, d, retryCount); pubErr != nil {
		c.lg.Error().Err(pubErr).Str("event", env.Event).Msg("dead-letter publish failed; nacking to DLX")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
	metrics.MessagesConsumedTotal.WithLabelValues(env.Event, "dead_lettered").Inc()
	metrics.DLQMessagesTotal.WithLabelValues(env.Event).Inc()
	if c.audit != nil {
		c.audit.MessageDeadLettered(env.Event, d.MessageId, retryCount)
	}
	c.lg.Error().
		Err(err).
		Str("event", env.Event).
		Int("retry_count", retryCount).
		Msg("max retries reached; sent to DLQ")
}

func (c *Consumer) drop(d amqp.Delivery, eventName, reason string) {
	_ = d.Ack(false)
	metrics.MessagesConsumedTotal.WithLabelValues(eventName, "dropped").Inc()
	if c.audit != nil {
		c.audit.MessageDropped(eventName, d.MessageId, reason)
	}
	c.lg.Error().
		Str("event", eventName).
		Str("message_id", d.MessageId).
		Str("reason", reason).
		Msg("undecodable message; acked and dropped")
}

func (c *Consumer) closeAll(conn *amqp.Connection, a, b *amqp.Channel) {
	if b != nil {
		_ = b.Close()
	}
	if a != nil {
		_ = a.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chPublish != nil {
		_ = c.chPublish.Close()
		c.chPublish = nil
	}
	if c.chConsume != nil {
		_ = c.chConsume.Close()
		c.chConsume = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
