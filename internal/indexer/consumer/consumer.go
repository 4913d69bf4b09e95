// Package consumer keeps a search process in step with the indexer. It reads
// index-commit events from Kafka, reloads the newest committed snapshot and
// drops cached query results that were computed against the old one.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
)

// Reloader publishes the newest on-disk snapshot.
type Reloader interface {
	Reload() (*store.Snapshot, error)
}

// Invalidator drops cached query results.
type Invalidator interface {
	InvalidateCache(ctx context.Context) error
}

// ReloadConsumer wraps a Kafka consumer that drives snapshot reloads.
type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ReloadConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that reloads the store on every
// IndexCommitted event newer than the snapshot currently served. Undecodable
// messages are logged and acknowledged so they do not block the partition.
// inv and m may be nil.
func HandleMessage(r Reloader, inv Invalidator, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[kafka.IndexCommitted](value)
		if err != nil {
			logger.Error("failed to decode commit event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		snap, err := r.Reload()
		if err != nil {
			return err
		}
		if snap.Version() < event.Version {
			logger.Warn("commit event ahead of readable snapshot",
				"event_version", event.Version,
				"snapshot_version", snap.Version(),
			)
		}

		if inv != nil {
			if err := inv.InvalidateCache(ctx); err != nil {
				logger.Error("cache invalidation failed", "error", err)
			}
		}
		if m != nil {
			m.IndexVersion.Set(float64(snap.Version()))
			m.IndexDocCount.Set(float64(snap.DocCount()))
		}

		logger.Info("snapshot reloaded",
			"version", snap.Version(),
			"docs", snap.DocCount(),
			"docs_added", event.DocsAdded,
		)
		return nil
	}
}
