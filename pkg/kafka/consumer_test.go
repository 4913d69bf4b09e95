package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/resilience"
)

// queueReader hands out queued messages, then blocks until ctx ends.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newQueueReader(msgs ...kafka.Message) *queueReader {
	return &queueReader{queue: msgs, drained: make(chan struct{})}
}

func (q *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	q.mu.Lock()
	if len(q.fetchErrs) > 0 {
		err := q.fetchErrs[0]
		q.fetchErrs = q.fetchErrs[1:]
		q.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(q.queue) > 0 {
		msg := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
		return msg, nil
	}
	q.mu.Unlock()
	select {
	case <-q.drained:
	default:
		close(q.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (q *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.committed = append(q.committed, m.Offset)
	}
	return nil
}

func (q *queueReader) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func runUntilDrained(t *testing.T, c *Consumer, q *queueReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	select {
	case <-q.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain its queue")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	q := newQueueReader(
		kafka.Message{Offset: 1, Value: []byte("a")},
		kafka.Message{Offset: 2, Value: []byte("b")},
	)
	attempts := map[string]int{}
	handler := func(_ context.Context, _ []byte, value []byte) error {
		attempts[string(value)]++
		if string(value) == "a" && attempts["a"] < 2 {
			return errors.New("segment not visible yet")
		}
		return nil
	}
	runUntilDrained(t, newConsumer(q, "index.committed", handler, fastRetry), q)

	assert.Equal(t, map[string]int{"a": 2, "b": 1}, attempts)
	assert.Equal(t, []int64{1, 2}, q.committed)
	assert.True(t, q.closed)
}

func TestConsumerSkipsMessageAfterRetries(t *testing.T) {
	q := newQueueReader(
		kafka.Message{Offset: 7, Value: []byte("poison")},
		kafka.Message{Offset: 8, Value: []byte("fine")},
	)
	var handled []string
	handler := func(_ context.Context, _ []byte, value []byte) error {
		if string(value) == "poison" {
			return errors.New("always fails")
		}
		handled = append(handled, string(value))
		return nil
	}
	runUntilDrained(t, newConsumer(q, "index.committed", handler, fastRetry), q)

	assert.Equal(t, []string{"fine"}, handled)
	assert.Equal(t, []int64{7, 8}, q.committed)
}

func TestConsumerSurvivesFetchErrors(t *testing.T) {
	q := newQueueReader(kafka.Message{Offset: 3, Value: []byte("x")})
	q.fetchErrs = []error{errors.New("broker unreachable")}
	c := newConsumer(q, "query.events", func(context.Context, []byte, []byte) error { return nil }, fastRetry)
	c.fetchDelay = time.Millisecond

	runUntilDrained(t, c, q)
	assert.Equal(t, []int64{3}, q.committed)
}
