package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	headerRetryCount  = "x-retry-count"
	headerOriginalKey = "x-original-routing-key"

	// publish reliability window
	retryPublishWait = 250 * time.Millisecond
)

// redeliverer is the consumer's publish contract for retries and dead
// letters. It is an interface so unit tests can inject a fake without real
// AMQP channels.
type redeliverer interface {
	Republish(ctx context.Context, orig amqp.Delivery, retryCount int) error
	DeadLetter(ctx context.Context, orig amqp.Delivery, retryCount int) error
}

// RetryPublisher re-publishes failed deliveries: back to the main exchange
// under the original routing key with an incremented retry counter, or to
// the dead-letter exchange once the ceiling is reached. Confirms and
// mandatory routing are enabled so a lost retry is observable instead of
// silently vanishing.
type RetryPublisher struct {
	ch *amqp.Channel
	lg zerolog.Logger

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewRetryPublisher(ch *amqp.Channel, lg zerolog.Logger) (*RetryPublisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil channel")
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode: %w", err)
	}

	p := &RetryPublisher{
		ch: ch,
		lg: lg.With().Str("component", "retry_publisher").Logger(),
	}

	// Must be registered AFTER Confirm
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 32))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 32))

	return p, nil
}

// Republish sends a fresh copy of the message to the main exchange under
// its original routing key, carrying the incremented retry counter. The
// retry is a new message at the tail of the queue; the caller acks the
// original to keep the delivery tag from looping.
func (p *RetryPublisher) Republish(ctx context.Context, orig amqp.Delivery, retryCount int) error {
	rk := originalRoutingKey(orig)

	h := copyHeaders(orig.Headers)
	h[headerRetryCount] = int32(retryCount)

	pub := amqp.Publishing{
		ContentType:   orig.ContentType,
		Body:          orig.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Headers:       h,
		CorrelationId: orig.CorrelationId,
		MessageId:     orig.MessageId,
	}

	if err := p.ch.PublishWithContext(ctx, ExchangeEvents, rk, true, false, pub); err != nil {
		return fmt.Errorf("publish retry: %w", err)
	}
	return p.waitAckOrReturn(ctx, ExchangeEvents, rk)
}

// DeadLetter forwards the message to the dead-letter exchange, preserving
// the original routing key and final retry count as headers for operators
// inspecting the DLQ.
func (p *RetryPublisher) DeadLetter(ctx context.Context, orig amqp.Delivery, retryCount int) error {
	h := copyHeaders(orig.Headers)
	h[headerOriginalKey] = originalRoutingKey(orig)
	h[headerRetryCount] = int32(retryCount)

	pub := amqp.Publishing{
		ContentType:   orig.ContentType,
		Body:          orig.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Headers:       h,
		CorrelationId: orig.CorrelationId,
		MessageId:     orig.MessageId,
	}

	if err := p.ch.PublishWithContext(ctx, ExchangeDLX, DeadRoutingKey, true, false, pub); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return p.waitAckOrReturn(ctx, ExchangeDLX, DeadRoutingKey)
}

func (p *RetryPublisher) waitAckOrReturn(ctx context.Context, exchange, rk string) error {
	timer := time.NewTimer(retryPublishWait)
	defer timer.Stop()

	for {
		select {
		case r := <-p.returnCh:
			return fmt.Errorf("publish returned: reply=%d text=%q exchange=%q rk=%q",
				r.ReplyCode, r.ReplyText, r.Exchange, r.RoutingKey)

		case c := <-p.confirmCh:
			if !c.Ack {
				return fmt.Errorf("publish nacked by broker (exchange=%q rk=%q)", exchange, rk)
			}
			return nil

		case <-timer.C:
			return fmt.Errorf("no confirm within %s (exchange=%q rk=%q)", retryPublishWait, exchange, rk)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func copyHeaders(h amqp.Table) amqp.Table {
	out := make(amqp.Table, len(h)+2)
	for k, v := range h {
		out[k] = v
	}
	return out
}

// originalRoutingKey resolves the business routing key even on a message
// that already went through a retry hop.
func originalRoutingKey(d amqp.Delivery) string {
	if v, ok := d.Headers[headerOriginalKey].(string); ok && v != "" {
		return v
	}
	return d.RoutingKey
}

func getRetryCount(h amqp.Table) int {
	if h == nil {
		return 0
	}
	v, ok := h[headerRetryCount]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
