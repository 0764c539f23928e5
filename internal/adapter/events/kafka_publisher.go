package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/BenedictTTM/e-back-sub000/internal/port"
)

var topicFor = map[string]string{
	port.EventOrderCreated:     "order.created",
	port.EventOrderCancelled:   "order.cancelled",
	port.EventPaymentSucceeded: "payment.succeeded",
	port.EventPaymentFailed:    "payment.failed",
}

// Envelope is the versioned wrapper every published event rides in.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

type KafkaPublisher struct {
	writer  *kafkago.Writer
	service string
}

func NewKafkaPublisher(brokers []string, service string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			Async:        false,
		},
		service: service,
	}
}

// Publish keys the message so all events for one order stay ordered on a
// single partition.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	topic, ok := topicFor[eventType]
	if !ok {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	value, err := json.Marshal(Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     p.service,
		Payload:      raw,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
