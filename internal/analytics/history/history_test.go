package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/tdt-search/internal/analytics"
)

type stubLister struct {
	gotLimit  int
	snapshots []Snapshot
	err       error
}

func (s *stubLister) List(_ context.Context, limit int) ([]Snapshot, error) {
	s.gotLimit = limit
	return s.snapshots, s.err
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", defaultListLimit, false},
		{"5", 5, false},
		{"100000", maxListLimit, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseLimit(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlerListsSnapshots(t *testing.T) {
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	l := &stubLister{snapshots: []Snapshot{{
		CapturedAt: at,
		Stats:      analytics.AggregatedStats{TotalSearches: 42},
	}}}

	rec := httptest.NewRecorder()
	Handler(l)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, l.gotLimit)

	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, int64(42), body.Snapshots[0].Stats.TotalSearches)
	assert.True(t, at.Equal(body.Snapshots[0].CapturedAt))
}

func TestHandlerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(&stubLister{})(rec, httptest.NewRequest(http.MethodGet, "/?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	Handler(&stubLister{err: errors.New("connection refused")})(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
