package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxTop = 100

// StatsReader is the source of a stats report. *Aggregator implements it.
type StatsReader interface {
	StatsTop(n int) AggregatedStats
}

// Report is the analytics response: the running totals plus the two rates KB
// curators watch.
type Report struct {
	AggregatedStats
	ZeroResultRate float64 `json:"zero_result_rate"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	ExpiredRate    float64 `json:"expired_view_rate"`
}

// NewReport derives the rates from stats. Empty denominators give zero.
func NewReport(stats AggregatedStats) Report {
	return Report{
		AggregatedStats: stats,
		ZeroResultRate:  ratio(stats.ZeroResultCount, stats.TotalSearches),
		CacheHitRate:    ratio(stats.CacheHits, stats.CacheHits+stats.CacheMisses),
		ExpiredRate:     ratio(stats.ExpiredViews, stats.DocumentViews),
	}
}

// StatsHandler serves GET /api/v1/analytics?top=N. top bounds every ranked
// list (1..100, default 10).
func StatsHandler(src StatsReader) http.HandlerFunc {
	logger := slog.Default().With("component", "analytics-handler")
	return func(w http.ResponseWriter, r *http.Request) {
		top := DefaultTop
		if v := r.URL.Query().Get("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxTop {
				writeReport(w, logger, http.StatusBadRequest, map[string]string{"error": "top must be between 1 and 100"})
				return
			}
			top = n
		}
		writeReport(w, logger, http.StatusOK, NewReport(src.StatsTop(top)))
	}
}

func ratio(n, d int64) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func writeReport(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write analytics response", "error", err)
	}
}
