package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	KBVersion         string       `json:"kb_version,omitempty"`
	TotalSearches     int64        `json:"total_searches"`
	ExactSearches     int64        `json:"exact_searches"`
	FilteredSearches  int64        `json:"filtered_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	DocumentViews     int64        `json:"document_views"`
	ExpiredViews      int64        `json:"expired_views"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopDocuments      []QueryCount `json:"top_documents"`
	TopFacets         []QueryCount `json:"top_facets"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search and document-view events into running totals. It
// is fed either directly through Track or from Kafka through HandleEvent.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	exactSearches     atomic.Int64
	filteredSearches  atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	documentViews     atomic.Int64
	expiredViews      atomic.Int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	documentCounts    map[string]int64
	facetCounts       map[string]int64
	kbVersion         string
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		documentCounts:    make(map[string]int64),
		facetCounts:       make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records event synchronously. It lets the aggregator stand in for a
// Collector when Kafka is disabled.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.RecordSearch(e)
	case *SearchEvent:
		a.RecordSearch(*e)
	case DocumentViewEvent:
		a.RecordDocumentView(e)
	case *DocumentViewEvent:
		a.RecordDocumentView(*e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable
// messages are logged and skipped so one bad record cannot stall the topic.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := DecodeEvent(value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Track(event)
		return nil
	}
}

func (a *Aggregator) RecordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.ExactPhrase {
		a.exactSearches.Add(1)
	}
	if !event.Filters.IsZero() {
		a.filteredSearches.Add(1)
	}
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	zero := event.Returned == 0
	if zero {
		a.zeroResults.Add(1)
	}

	query := normalizeQuery(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
	if query != "" {
		a.queryCounts[query]++
		if zero {
			a.zeroResultQueries[query]++
		}
	}
	for _, v := range event.Filters.Types {
		a.facetCounts["type:"+v]++
	}
	for _, v := range event.Filters.Jurisdictions {
		a.facetCounts["jurisdiction:"+v]++
	}
	for _, v := range event.Filters.Tags {
		a.facetCounts["tag:"+strings.ToLower(v)]++
	}
	if event.KBVersion != "" {
		a.kbVersion = event.KBVersion
	}
}

func (a *Aggregator) RecordDocumentView(event DocumentViewEvent) {
	a.documentViews.Add(1)
	if event.Expired {
		a.expiredViews.Add(1)
	}
	a.mu.Lock()
	a.documentCounts[event.DocumentID]++
	a.mu.Unlock()
}

// DefaultTop is the length of each ranked list in Stats.
const DefaultTop = 10

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTop)
}

// StatsTop is Stats with ranked lists of up to n entries.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		KBVersion:        a.kbVersion,
		TotalSearches:    a.totalSearches.Load(),
		ExactSearches:    a.exactSearches.Load(),
		FilteredSearches: a.filteredSearches.Load(),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		ZeroResultCount:  a.zeroResults.Load(),
		DocumentViews:    a.documentViews.Load(),
		ExpiredViews:     a.expiredViews.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	stats.TopDocuments = topN(a.documentCounts, n)
	stats.TopFacets = topN(a.facetCounts, n)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then key ascending so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
