package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Event names consumed by the kitchen display and cashier screens.
const (
	EventOrderCreated    = "order-created"
	EventItemAdded       = "item-added"
	EventItemUpdated     = "item-updated"
	EventOrderUpdated    = "order-updated"
	EventOrderReady      = "order-ready"
	EventOrderClosed     = "order-closed"
	EventOrderCancelled  = "order-cancelled"
	EventPaymentRecorded = "payment-recorded"
	EventPaymentReversed = "payment-reversed"
	EventTableUpdated    = "table-updated"
	EventStockLow        = "stock-low"
)

// Event is a fire-and-forget notification emitted after a committed mutation.
type Event struct {
	Name       string    `json:"event"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, payload any) Event {
	return Event{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
}

// Notifier delivers events to downstream subscribers.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) error { return nil }

// MultiNotifier fans an event out to several notifiers and reports the first failure.
type MultiNotifier []Notifier

func (m MultiNotifier) Publish(ctx context.Context, event Event) error {
	var first error
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// BrokerNotifier publishes events to a RabbitMQ fanout exchange, one persistent JSON
// message per event with the event name as routing key.
type BrokerNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      *zap.Logger

	mu sync.Mutex
}

// NewBrokerNotifier dials RabbitMQ and declares the broadcast exchange.
func NewBrokerNotifier(url, exchange string, log *zap.Logger) (*BrokerNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.Info("connected to rabbitmq", zap.String("exchange", exchange))
	return &BrokerNotifier{conn: conn, channel: channel, exchange: exchange, log: log}, nil
}

// Publish sends the event with a bounded timeout.
func (b *BrokerNotifier) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.channel.PublishWithContext(ctx,
		b.exchange, // exchange
		event.Name, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
}

// Close tears down the channel and connection.
func (b *BrokerNotifier) Close() {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
