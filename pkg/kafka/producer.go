package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
)

// EventTypeHeader names the kind of event a message carries, so a consumer
// can log or route it without decoding the value.
const EventTypeHeader = "event-type"

const (
	TypeIndexCommitted = "index.committed"
	TypeQuery          = "query"
)

// Event is one message to publish. Key picks the partition; Value is
// JSON encoded.
type Event struct {
	Type  string
	Key   string
	Value any
}

// messageWriter is the part of *kafka.Writer the producer needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer writes synchronously with acks from all in-sync replicas:
// a commit notice that is silently lost leaves searchers on a stale
// snapshot until restart.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
		now:    time.Now,
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  p.now(),
	}
	if event.Type != "" {
		msg.Headers = []kafka.Header{{Key: EventTypeHeader, Value: []byte(event.Type)}}
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish message", "type", event.Type, "key", event.Key, "error", err)
		return fmt.Errorf("publishing %s event: %w", event.Type, err)
	}
	p.logger.Debug("message published", "type", event.Type, "key", event.Key, "value_size", len(value))
	return nil
}

func (p *Producer) PublishCommit(ctx context.Context, ev IndexCommitted) error {
	return p.Publish(ctx, Event{Type: TypeIndexCommitted, Key: ev.Key(), Value: ev})
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// eventType reads the EventTypeHeader of msg, or "" when absent.
func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == EventTypeHeader {
			return string(h.Value)
		}
	}
	return ""
}
