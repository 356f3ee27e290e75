package rabbitmq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	zlog "github.com/rs/zerolog/log"

	"github.com/industria/cotizacion-service/internal/events"
	"github.com/industria/cotizacion-service/internal/metrics"
)

// Wait window for Return / Confirm
const publishWait = 150 * time.Millisecond

// Publisher emits domain events to the topic exchange with confirms and
// mandatory routing. It is deliberately best-effort: when the broker is
// unreachable a publish degrades to a logged no-op so the caller's write
// path never blocks on broker availability.
type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = ExchangeEvents
	}

	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := DeclareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.conn = conn
	p.ch = ch

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	closeCh := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeCh)
	go func() {
		if err, ok := <-closeCh; ok && err != nil {
			zlog.Warn().Err(err).Msg("publisher connection closed")
		}
		p.mu.Lock()
		p.ch = nil
		p.conn = nil
		p.mu.Unlock()
	}()

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// PublishEvent wraps payload in the wire envelope, stamping occurredAt at
// publish time, and publishes it persistent under the event name as
// routing key. With no live connection it reconnects once and otherwise
// degrades to a logged no-op.
func (p *Publisher) PublishEvent(ctx context.Context, eventName string, payload any) error {
	if eventName == "" {
		return errors.New("missing event name")
	}

	body, err := events.Encode(eventName, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connect(); err != nil {
			metrics.PublishFailuresTotal.WithLabelValues(eventName).Inc()
			zlog.Warn().
				Err(err).
				Str("rk", eventName).
				Msg("broker unavailable; event publish skipped")
			return nil
		}
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		eventName,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	// Wait for either Return (NO_ROUTE) or Confirm
	select {
	case ret := <-p.returnCh:
		return errors.New("NO_ROUTE: " + ret.RoutingKey)
	case conf := <-p.confirmCh:
		if !conf.Ack {
			return errors.New("publish nack")
		}
		return nil
	case <-time.After(publishWait):
		// best-effort window; if neither arrives, treat as
		// success-attempt (delivery gaps are reconciled by audit, not
		// by blocking the caller)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
