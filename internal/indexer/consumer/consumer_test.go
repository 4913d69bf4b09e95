package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/tdt-search/pkg/metrics"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateCache(context.Context) error {
	c.calls++
	return nil
}

func commit(t *testing.T, st *store.Store, id, text string) *store.Snapshot {
	t.Helper()
	w, err := st.Writer()
	require.NoError(t, err)
	require.NoError(t, w.WriteDocument(index.Document{ID: id}, tokenizer.Tokenize(text)))
	snap, err := w.Commit()
	require.NoError(t, err)
	return snap
}

func event(t *testing.T, version uint64) []byte {
	t.Helper()
	data, err := json.Marshal(kafka.IndexCommitted{Version: version, DocsAdded: 1, CommittedAt: time.Now()})
	require.NoError(t, err)
	return data
}

func TestHandleMessageReloadsAndInvalidates(t *testing.T) {
	dir := t.TempDir()
	indexer, err := store.Open(dir)
	require.NoError(t, err)
	searcher, err := store.Open(dir)
	require.NoError(t, err)

	snap := commit(t, indexer, "D1", "hurricane relief")
	_, err = searcher.Snapshot()
	require.ErrorIs(t, err, apperrors.ErrNotCommitted)

	inv := &countingInvalidator{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	handle := HandleMessage(searcher, inv, m)

	require.NoError(t, handle(context.Background(), []byte(dir), event(t, snap.Version())))

	got, err := searcher.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Version(), got.Version())
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, float64(snap.Version()), testutil.ToFloat64(m.IndexVersion))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexDocCount))
}

func TestHandleMessageSkipsGarbage(t *testing.T) {
	inv := &countingInvalidator{}
	handle := HandleMessage(failingReloader{}, inv, nil)

	assert.NoError(t, handle(context.Background(), nil, []byte("not json")))
	assert.Zero(t, inv.calls)
}

type failingReloader struct{}

func (failingReloader) Reload() (*store.Snapshot, error) {
	return nil, errors.New("disk gone")
}

func TestHandleMessageReloadFailureIsRetried(t *testing.T) {
	inv := &countingInvalidator{}
	handle := HandleMessage(failingReloader{}, inv, nil)

	err := handle(context.Background(), nil, event(t, 1))
	assert.Error(t, err)
	assert.Zero(t, inv.calls)
}
