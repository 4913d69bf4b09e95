package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIndexCommitted(t *testing.T) {
	ev := IndexCommitted{
		Version:     4,
		DocCount:    120,
		DocsAdded:   20,
		IndexDir:    "index_data",
		CommittedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"doc_count":120`)

	got, err := DecodeJSON[IndexCommitted](raw)
	require.NoError(t, err)
	assert.Equal(t, ev, got)
	assert.Equal(t, "index_data", got.Key())
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	_, err := DecodeJSON[IndexCommitted]([]byte("{not json"))
	assert.Error(t, err)
}
