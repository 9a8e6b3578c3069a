package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics"
)

type fakeLister struct {
	snaps []Snapshot
	err   error
	limit int
}

func (f *fakeLister) ListSnapshots(_ context.Context, limit int) ([]Snapshot, error) {
	f.limit = limit
	return f.snaps, f.err
}

func TestHistory(t *testing.T) {
	lister := &fakeLister{snaps: []Snapshot{{
		KBVersion: "2025.06",
		Stats:     analytics.AggregatedStats{TotalSearches: 12},
	}}}
	h := History(lister)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.limit)

	var body struct {
		Snapshots []Snapshot `json:"snapshots"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, "2025.06", body.Snapshots[0].KBVersion)
	assert.Equal(t, int64(12), body.Snapshots[0].Stats.TotalSearches)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, 20, lister.limit)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	lister.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
