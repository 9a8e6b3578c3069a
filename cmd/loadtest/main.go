// Command loadtest drives GET /api/v1/search with a rotating set of clinical
// queries and reports throughput, latency percentiles and cache behaviour.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

var defaultQueries = []string{
	"hand hygiene",
	"infection control",
	"fall prevention",
	"pressure injury",
	"wandering elopement",
	"medication reconciliation",
	"antipsychotic reduction",
	"resident rights",
	"abuse reporting",
	"dysphagia diet",
	"catheter care",
	"isolation precautions",
	"care plan",
	"restraint",
	"weight loss",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	// ExactEvery sends every Nth query as an exact-phrase search; 0 never.
	ExactEvery int
	Types      []string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queryFile := flag.String("queries", "", "file with one query per line (default built-in set)")
	exactEvery := flag.Int("exact-every", 5, "send every Nth query in exact-phrase mode (0 disables)")
	types := flag.String("type", "", "comma-separated type facet applied to every query")
	flag.Parse()

	queries := defaultQueries
	if *queryFile != "" {
		loaded, err := readQueries(*queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}
	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     queries,
		ExactEvery:  *exactEvery,
	}
	if *types != "" {
		cfg.Types = strings.Split(*types, ",")
	}

	fmt.Println("=== LTC Guidance Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	start := time.Now()
	stats := run(cfg)
	sum := stats.Summary(time.Since(start))
	sum.Print(os.Stdout)
	if sum.Total == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" && !strings.HasPrefix(q, "#") {
			out = append(out, q)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return out, nil
}

// searchURL builds the n-th request of the rotation.
func searchURL(cfg Config, n int) string {
	v := url.Values{}
	v.Set("q", cfg.Queries[n%len(cfg.Queries)])
	if cfg.ExactEvery > 0 && n%cfg.ExactEvery == cfg.ExactEvery-1 {
		v.Set("exact", "true")
	}
	for _, t := range cfg.Types {
		v.Add("type", strings.TrimSpace(t))
	}
	return cfg.BaseURL + "/api/v1/search?" + v.Encode()
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for ; ctx.Err() == nil; n += cfg.Concurrency {
				o, ok := do(ctx, client, searchURL(cfg, n))
				if ok {
					stats.Record(o)
				}
			}
		}(w)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()
	wg.Wait()
	fmt.Println(" done")
	fmt.Println()
	return stats
}

// do reports ok=false when the run deadline cut the request short.
func do(ctx context.Context, client *http.Client, target string) (Outcome, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Outcome{}, true
	}
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, false
		}
		return Outcome{Latency: latency}, true
	}
	defer resp.Body.Close()

	o := Outcome{Latency: latency, Status: resp.StatusCode, Cache: resp.Header.Get("X-Cache")}
	var body struct {
		Returned int `json:"returned"`
	}
	if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil {
		o.Returned = body.Returned
	}
	io.Copy(io.Discard, resp.Body)
	return o, true
}
