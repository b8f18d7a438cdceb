package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/racanix/location-foreground-service/module/tracking/domain"
	"github.com/racanix/location-foreground-service/module/tracking/internal/repository/notifier"
)

var _ notifier.Notifier = (*Notifier)(nil)

const (
	ExchangeName = "tracker.events"
	QueueName    = "tracker_notifications"
)

const (
	EventArrival          = "arrival"
	EventArrivalDismissed = "arrival_dismissed"
	EventStatus           = "status"
)

// Channel is the subset of *amqp.Channel the notifier publishes with.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Notifier struct {
	ch  Channel
	now func() time.Time
}

// NewNotifier declares the fanout exchange and the notification queue.
func NewNotifier(conn *amqp.Connection) (*Notifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return NewChannelNotifier(ch), nil
}

func NewChannelNotifier(ch Channel) *Notifier {
	return &Notifier{ch: ch, now: time.Now}
}

// Message is the envelope written to the exchange.
type Message struct {
	Event     string               `json:"event"`
	Arrival   *domain.ArrivalEvent `json:"arrival,omitempty"`
	Status    *domain.StatusEvent  `json:"status,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

func (n *Notifier) NotifyArrival(ctx context.Context, event *domain.ArrivalEvent) error {
	return n.publish(ctx, Message{Event: EventArrival, Arrival: event})
}

func (n *Notifier) DismissArrival(ctx context.Context) error {
	return n.publish(ctx, Message{Event: EventArrivalDismissed})
}

func (n *Notifier) UpdateStatus(ctx context.Context, event *domain.StatusEvent) error {
	return n.publish(ctx, Message{Event: EventStatus, Status: event})
}

func (n *Notifier) publish(ctx context.Context, msg Message) error {
	msg.Timestamp = n.now().UnixMilli()

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Event, err)
	}

	return n.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   n.now(),
		Body:        body,
	})
}
