package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishCommitTagsMessage(t *testing.T) {
	w := &recordingWriter{}
	p := newProducer(w, "index.committed")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	ev := IndexCommitted{Version: 3, DocCount: 10, IndexDir: "index_data"}
	require.NoError(t, p.PublishCommit(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "index_data", string(msg.Key))
	assert.Equal(t, TypeIndexCommitted, eventType(msg))
	assert.Equal(t, at, msg.Time)
	got, err := DecodeJSON[IndexCommitted](msg.Value)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
}

func TestPublishUntypedEventHasNoHeader(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newProducer(w, "t").Publish(context.Background(), Event{Key: "k", Value: map[string]int{"n": 1}}))
	require.Len(t, w.msgs, 1)
	assert.Empty(t, w.msgs[0].Headers)
	assert.Equal(t, "", eventType(w.msgs[0]))
}

func TestPublishErrors(t *testing.T) {
	broker := errors.New("leader not available")
	p := newProducer(&recordingWriter{err: broker}, "t")
	err := p.Publish(context.Background(), Event{Type: TypeQuery, Key: "k", Value: "v"})
	assert.ErrorIs(t, err, broker)

	err = newProducer(&recordingWriter{}, "t").Publish(context.Background(), Event{Value: make(chan int)})
	assert.Error(t, err)
}
