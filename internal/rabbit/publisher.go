package rabbit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"order-workflow-service/internal/model"
)

const eventsExchange = "order_events"

// Publisher emits order.status.changed events for downstream services
// (provider portal, reporting). Callers treat publishing as best effort.
type Publisher struct {
	ch *amqp091.Channel
}

func NewPublisher(ch *amqp091.Channel) (*Publisher, error) {
	err := ch.ExchangeDeclare(
		eventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

type statusChangedEvent struct {
	OrderID   string    `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *Publisher) PublishStatusChanged(ctx context.Context, orderID string, from, to model.OrderStatus) error {
	body, err := json.Marshal(statusChangedEvent{
		OrderID:   orderID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.ch.PublishWithContext(ctx,
		eventsExchange,
		"order.status.changed",
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
