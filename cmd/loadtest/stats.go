package main

import (
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"
)

// Stats accumulates outcomes from every worker.
type Stats struct {
	mu          sync.Mutex
	total       int64
	errors      int64
	zeroResults int64
	cache       map[string]int64
	statusCodes map[int]int64
	latencies   []time.Duration
}

func NewStats() *Stats {
	return &Stats{
		cache:       make(map[string]int64),
		statusCodes: make(map[int]int64),
		latencies:   make([]time.Duration, 0, 1<<16),
	}
}

// Outcome is one finished request. Status 0 means a transport error.
type Outcome struct {
	Latency  time.Duration
	Status   int
	Cache    string
	Returned int
}

func (s *Stats) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if o.Status == 0 {
		s.errors++
		return
	}
	s.statusCodes[o.Status]++
	if o.Status < 200 || o.Status >= 300 {
		s.errors++
		return
	}
	s.latencies = append(s.latencies, o.Latency)
	if o.Cache != "" {
		s.cache[o.Cache]++
	}
	if o.Returned == 0 {
		s.zeroResults++
	}
}

// Summary is a point-in-time view of Stats.
type Summary struct {
	Total       int64
	Errors      int64
	ZeroResults int64
	RPS         float64
	CacheHits   int64
	CacheMisses int64
	Min, Max    time.Duration
	Avg, StdDev time.Duration
	P50, P90    time.Duration
	P95, P99    time.Duration
	StatusCodes map[int]int64
}

func (s *Stats) Summary(elapsed time.Duration) Summary {
	s.mu.Lock()
	sorted := append([]time.Duration(nil), s.latencies...)
	sum := Summary{
		Total:       s.total,
		Errors:      s.errors,
		ZeroResults: s.zeroResults,
		CacheHits:   s.cache["hit"],
		CacheMisses: s.cache["miss"],
		StatusCodes: make(map[int]int64, len(s.statusCodes)),
	}
	for code, n := range s.statusCodes {
		sum.StatusCodes[code] = n
	}
	s.mu.Unlock()

	if elapsed > 0 {
		sum.RPS = float64(sum.Total) / elapsed.Seconds()
	}
	if len(sorted) == 0 {
		return sum
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	sum.Avg = total / time.Duration(len(sorted))
	var sq float64
	for _, l := range sorted {
		d := float64(l - sum.Avg)
		sq += d * d
	}
	sum.StdDev = time.Duration(math.Sqrt(sq / float64(len(sorted))))
	sum.Min, sum.Max = sorted[0], sorted[len(sorted)-1]
	sum.P50 = percentile(sorted, 50)
	sum.P90 = percentile(sorted, 90)
	sum.P95 = percentile(sorted, 95)
	sum.P99 = percentile(sorted, 99)
	return sum
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func (sum Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Requests:      %d\n", sum.Total)
	fmt.Fprintf(w, "Errors:        %d\n", sum.Errors)
	fmt.Fprintf(w, "Zero results:  %d\n", sum.ZeroResults)
	fmt.Fprintf(w, "Requests/sec:  %.2f\n", sum.RPS)
	if lookups := sum.CacheHits + sum.CacheMisses; lookups > 0 {
		fmt.Fprintf(w, "Cache hit rate: %.1f%%\n", float64(sum.CacheHits)/float64(lookups)*100)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency ===")
	fmt.Fprintf(w, "Min:    %s\n", sum.Min)
	fmt.Fprintf(w, "Avg:    %s\n", sum.Avg)
	fmt.Fprintf(w, "P50:    %s\n", sum.P50)
	fmt.Fprintf(w, "P90:    %s\n", sum.P90)
	fmt.Fprintf(w, "P95:    %s\n", sum.P95)
	fmt.Fprintf(w, "P99:    %s\n", sum.P99)
	fmt.Fprintf(w, "Max:    %s\n", sum.Max)
	fmt.Fprintf(w, "StdDev: %s\n", sum.StdDev)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(sum.StatusCodes))
	for code := range sum.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, sum.StatusCodes[code])
	}
}
