package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
	EventAmended       = "order.amended"
	EventDeleted       = "order.deleted"
)

// Event is published keyed by order id, so one order's events stay ordered.
type Event struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status,omitempty"`
	Order     *Order    `json:"order,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(typ string, o *Order, now time.Time) Event {
	return Event{Type: typ, OrderID: o.ID, Status: o.Status, Order: o, Timestamp: now.UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
