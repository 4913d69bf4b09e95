// Package kafka carries index lifecycle events between the indexer and the
// search services over segmentio/kafka-go. Events are JSON encoded.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

// MessageHandler processes one event. A returned error is retried under the
// consumer's retry policy; a handler that wants a message dropped returns nil.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds one topic to a MessageHandler. Every fetched message is
// committed once handled, or once its retries are spent, so a message that
// keeps failing cannot stall the partition.
type Consumer struct {
	reader     messageReader
	handler    MessageHandler
	retry      resilience.RetryConfig
	fetchDelay time.Duration
	logger     *slog.Logger
}

type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	startOffset int64
	retry       resilience.RetryConfig
}

// FromBeginning replays the topic from the oldest retained offset when the
// group has no committed position. By default a new group starts at the
// tail, since only commits after startup matter to a reloading searcher.
func FromBeginning() ConsumerOption {
	return func(o *consumerOptions) { o.startOffset = kafka.FirstOffset }
}

// WithRetry sets how often a failing handler is retried before its message
// is skipped.
func WithRetry(cfg resilience.RetryConfig) ConsumerOption {
	return func(o *consumerOptions) { o.retry = cfg }
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	o := consumerOptions{
		startOffset: kafka.LastOffset,
		retry:       resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: o.startOffset,
	})
	return newConsumer(r, topic, handler, o.retry)
}

func newConsumer(r messageReader, topic string, handler MessageHandler, retry resilience.RetryConfig) *Consumer {
	return &Consumer{
		reader:     r,
		handler:    handler,
		retry:      retry,
		fetchDelay: time.Second,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(c.fetchDelay):
			}
			continue
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	log.Debug("message received", "type", eventType(msg), "key", string(msg.Key), "value_size", len(msg.Value))

	err := resilience.Retry(ctx, "kafka handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Left uncommitted so the next member of the group sees it.
			return
		}
		log.Error("message skipped after retries", "error", err)
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
