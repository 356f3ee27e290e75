package rabbitmq

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology. Names are a stable contract shared with every consumer
// of the exchange; changing them is a breaking change.
const (
	ExchangeEvents = "industria.events"     // topic, all domain events
	ExchangeDLX    = "industria.events.dlx" // direct, dead letters only
	QueueCore      = "industria.events.core"
	QueueDLQ       = "industria.events.dlq"
	DeadRoutingKey = "dead"
)

// DeclareTopology declares the full event topology. Declarations are
// idempotent as long as arguments match what the broker already has; a
// PRECONDITION_FAILED from a mismatched redeclare must be treated as a
// fatal startup error by the caller, never ignored.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeEvents, "topic", true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}

	if err := ch.ExchangeDeclare(
		ExchangeDLX, "direct", true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("declare dlx %s: %w", ExchangeDLX, err)
	}

	if _, err := ch.QueueDeclare(
		QueueDLQ, true, false, false, false, nil,
	); err != nil {
		return fmt.Errorf("declare dlq %s: %w", QueueDLQ, err)
	}
	if err := ch.QueueBind(QueueDLQ, DeadRoutingKey, ExchangeDLX, false, nil); err != nil {
		return fmt.Errorf("bind dlq %s: %w", QueueDLQ, err)
	}

	coreArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLX,
		"x-dead-letter-routing-key": DeadRoutingKey,
	}
	if _, err := ch.QueueDeclare(
		QueueCore, true, false, false, false, coreArgs,
	); err != nil {
		return fmt.Errorf("declare core queue %s: %w", QueueCore, err)
	}

	// Catch-all: the core queue receives every event on the exchange.
	if err := ch.QueueBind(QueueCore, "#", ExchangeEvents, false, nil); err != nil {
		return fmt.Errorf("bind core queue %s: %w", QueueCore, err)
	}

	return nil
}

// isPreconditionFailed detects a topology mismatch (channel-level 406),
// which means the declared arguments differ from the existing resources.
func isPreconditionFailed(err error) bool {
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae.Code == amqp.PreconditionFailed
	}
	return false
}
