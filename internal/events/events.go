// Package events publishes order lifecycle events to an AMQP broker so
// back-office consumers (analytics, fulfilment) can react without polling.
// Publishing is optional: when no broker is configured the Nop publisher
// is wired instead.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/streadway/amqp"
)

// Queue is the durable queue order events are published to.
const Queue = "order-events"

// OrderEvent describes one order lifecycle change.
type OrderEvent struct {
	Type       string    `json:"type"` // "order.placed" or "order.status_changed"
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Total      string    `json:"total,omitempty"`
	CouponCode string    `json:"coupon_code,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits order events. Implementations must be safe for
// concurrent use by the HTTP handlers.
type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, OrderEvent) error { return nil }
func (Nop) Close() error                              { return nil }

// AMQP publishes events to a durable queue over a single channel.
type AMQP struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQP dials the broker and declares the order-events queue.
func NewAMQP(url string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare queue %s", Queue)
	}

	return &AMQP{conn: conn, channel: ch}, nil
}

// Publish serializes the event to JSON and publishes it persistently.
func (p *AMQP) Publish(_ context.Context, e OrderEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	err = p.channel.Publish("", Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQP) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return errors.Wrap(p.conn.Close(), "close connection")
}
