package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Lister reads snapshot history. *Store implements it.
type Lister interface {
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}

// History serves GET /api/v1/analytics/snapshots?limit=N, newest first.
func History(lister Lister) http.HandlerFunc {
	logger := slog.Default().With("component", "analytics-history")
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
				return
			}
			limit = n
		}
		snaps, err := lister.ListSnapshots(r.Context(), limit)
		if err != nil {
			logger.Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
