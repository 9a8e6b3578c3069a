// Package handler exposes the query-time interface over HTTP: search with
// facets and the freshness gate, document lookup, facet pickers, KB info and
// reload, plus cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/ledger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/tracing"
)

// maxLookupIDs bounds GET /api/v1/documents?id=...
const maxLookupIDs = 200

// Searcher is the query-time interface. *executor.Executor implements it.
type Searcher interface {
	Run(ctx context.Context, req executor.Request) (*executor.Response, error)
	Lookup(ids []string) executor.LookupResult
	Document(id string) (*executor.DocumentView, error)
	Facets() executor.Facets
	Now() time.Time
}

// KBHolder owns the loaded snapshot. *indexer.Holder implements it.
type KBHolder interface {
	Current() *indexer.Snapshot
	Reload(ctx context.Context, dir string) (*indexer.Snapshot, error)
}

// CacheHeader reports hit, miss or disabled on search responses.
const CacheHeader = "X-Cache"

// PublicationLister reads the publication ledger. *ledger.Ledger implements it.
type PublicationLister interface {
	List(ctx context.Context, limit int) ([]ledger.Publication, error)
}

// Options carries the optional collaborators. Nil fields disable the
// corresponding feature. Admin wraps the mutating routes.
type Options struct {
	KBDir        string
	Cache        *cache.QueryCache
	Tracker      analytics.Tracker
	Metrics      *metrics.Metrics
	Publications PublicationLister
	Admin        func(http.Handler) http.Handler
}

type Handler struct {
	searcher Searcher
	kb       KBHolder
	opts     Options
	logger   *slog.Logger
}

func New(searcher Searcher, holder KBHolder, opts Options) *Handler {
	return &Handler{
		searcher: searcher,
		kb:       holder,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/facets", h.Facets)
	mux.HandleFunc("GET /api/v1/kb", h.KBInfo)
	mux.Handle("POST /api/v1/kb/reload", h.admin(h.Reload))
	mux.HandleFunc("GET /api/v1/kb/publications", h.Publications)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("POST /api/v1/cache/invalidate", h.admin(h.CacheInvalidate))
}

func (h *Handler) admin(fn http.HandlerFunc) http.Handler {
	if h.opts.Admin == nil {
		return fn
	}
	return h.opts.Admin(fn)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())
	ctx, span := tracing.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	req, err := parseSearchRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap := h.kb.Current()
	if snap == nil {
		h.observeSearch("error", "disabled", nil, start)
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "no KB loaded"))
		return
	}

	var (
		resp     *executor.Response
		cacheHit bool
	)
	compute := func() (*executor.Response, error) {
		return h.searcher.Run(ctx, req)
	}
	cacheStatus := "disabled"
	if h.opts.Cache != nil {
		cacheCtx, cacheSpan := tracing.Child(ctx, "cache")
		key := cache.Key(snap.KBVersion, h.searcher.Now(), req)
		resp, cacheHit, err = h.opts.Cache.GetOrCompute(cacheCtx, key, compute)
		if resp != nil {
			resp = echoRequest(resp, req)
		}
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		cacheSpan.SetAttr("status", cacheStatus)
		cacheSpan.End()
	} else {
		resp, err = compute()
	}
	if err != nil {
		log.Error("search execution failed", "query", req.Query, "error", err)
		h.observeSearch("error", cacheStatus, nil, start)
		h.writeError(w, err)
		return
	}

	plan := parser.Parse(req.Query, req.ExactPhrase)
	outcome := "results"
	switch {
	case plan.Empty():
		outcome = "empty_query"
	case resp.Returned == 0:
		outcome = "zero_result"
	}
	h.observeSearch(outcome, cacheStatus, resp, start)

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", req.Query,
		"exact_phrase", req.ExactPhrase,
		"total_hits", resp.TotalHits,
		"returned", resp.Returned,
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.opts.Tracker != nil && !plan.Empty() {
		eventType := analytics.EventSearch
		if resp.Returned == 0 {
			eventType = analytics.EventZeroResult
		}
		h.opts.Tracker.Track(analytics.SearchEvent{
			Type:        eventType,
			Query:       req.Query,
			ExactPhrase: req.ExactPhrase,
			Filters:     req.Criteria,
			Terms:       plan.Terms,
			TotalHits:   resp.TotalHits,
			Returned:    resp.Returned,
			LatencyMs:   latencyMs,
			CacheHit:    cacheHit,
			KBVersion:   resp.KBVersion,
			Timestamp:   time.Now().UTC(),
			RequestID:   middleware.GetRequestID(ctx),
		})
	}
	w.Header().Set(CacheHeader, cacheStatus)
	h.writeJSON(w, http.StatusOK, resp)
}

// Documents resolves ?id=A&id=B, reporting unknown ids in
// "missing" rather than failing.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	ids := multiValue(r, "id")
	if len(ids) == 0 {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'id' is required"))
		return
	}
	if len(ids) > maxLookupIDs {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"at most %d ids per lookup (got %d)", maxLookupIDs, len(ids)))
		return
	}
	h.writeJSON(w, http.StatusOK, h.searcher.Lookup(ids))
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id is required"))
		return
	}
	view, err := h.searcher.Document(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.opts.Tracker != nil {
		version := ""
		if snap := h.kb.Current(); snap != nil {
			version = snap.KBVersion
		}
		h.opts.Tracker.Track(analytics.DocumentViewEvent{
			Type:       analytics.EventDocumentView,
			DocumentID: id,
			Expired:    view.Expired,
			KBVersion:  version,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(r.Context()),
		})
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.searcher.Facets())
}

// KBSummary describes the loaded snapshot.
type KBSummary struct {
	KBVersion     string       `json:"kb_version"`
	EffectiveDate string       `json:"effective_date,omitempty"`
	Approval      *kb.Approval `json:"approval,omitempty"`
	GeneratedAt   time.Time    `json:"generated_at"`
	LoadedAt      time.Time    `json:"loaded_at"`
	Docs          int          `json:"docs"`
	Sources       int          `json:"sources"`
	Terms         int          `json:"terms"`
}

func (h *Handler) KBInfo(w http.ResponseWriter, r *http.Request) {
	snap := h.kb.Current()
	if snap == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "no KB loaded"))
		return
	}
	h.writeJSON(w, http.StatusOK, infoOf(snap))
}

// Reload reloads the KB directory and swaps the snapshot in. A failed
// reload leaves the current snapshot serving and answers with the cause.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ReloadKB(r.Context(), h.opts.KBDir)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, infoOf(snap))
}

// ReloadKB is the shared reload path of the HTTP endpoint and the
// kb-published consumer. An empty dir means the configured KB directory.
func (h *Handler) ReloadKB(ctx context.Context, dir string) (*indexer.Snapshot, error) {
	if dir == "" {
		dir = h.opts.KBDir
	}
	snap, err := h.kb.Reload(ctx, dir)
	if err != nil {
		if h.opts.Metrics != nil {
			h.opts.Metrics.KBReloadsTotal.WithLabelValues("error").Inc()
		}
		h.logger.Error("kb reload failed", "dir", dir, "error", err)
		return nil, err
	}
	if h.opts.Metrics != nil {
		h.opts.Metrics.KBReloadsTotal.WithLabelValues("ok").Inc()
		h.opts.Metrics.SetKB(snap.KBVersion, len(snap.Docs))
	}
	if h.opts.Cache != nil {
		if _, err := h.opts.Cache.Invalidate(ctx); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	return snap, nil
}

func (h *Handler) Publications(w http.ResponseWriter, r *http.Request) {
	if h.opts.Publications == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "publication ledger is disabled"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	pubs, err := h.opts.Publications.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing publications failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"publications": pubs})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	stats := h.opts.Cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  stats.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) observeSearch(outcome, cacheStatus string, resp *executor.Response, start time.Time) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	switch cacheStatus {
	case "hit":
		m.CacheHitsTotal.Inc()
	case "miss":
		m.CacheMissesTotal.Inc()
	}
	if resp != nil {
		m.SearchResultsCount.Observe(float64(resp.Returned))
		if dropped := resp.TotalHits - resp.Returned; dropped > 0 {
			m.FilteredOutTotal.Add(float64(dropped))
		}
	}
}

// parseSearchRequest reads q, exact, approved_only and the repeatable type,
// jurisdiction and tag facets. approved_only defaults to true.
func parseSearchRequest(r *http.Request) (executor.Request, error) {
	q := r.URL.Query()
	exact, err := boolParam(q.Get("exact"), false)
	if err != nil {
		return executor.Request{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "exact must be a boolean")
	}
	approvedOnly, err := boolParam(q.Get("approved_only"), true)
	if err != nil {
		return executor.Request{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "approved_only must be a boolean")
	}
	return executor.Request{
		Query:       q.Get("q"),
		ExactPhrase: exact,
		Criteria: filter.Criteria{
			Types:         multiValue(r, "type"),
			Jurisdictions: multiValue(r, "jurisdiction"),
			Tags:          multiValue(r, "tag"),
			ApprovedOnly:  approvedOnly,
		},
	}, nil
}

func boolParam(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

// echoRequest copies a response that may be shared with other requests under
// the same cache key and restores this request's own text and filters.
func echoRequest(resp *executor.Response, req executor.Request) *executor.Response {
	out := *resp
	out.Query = req.Query
	out.ExactPhrase = req.ExactPhrase
	out.Filters = req.Criteria
	return &out
}

// multiValue collects a repeatable parameter, dropping blanks. Values are
// never split, so facet values containing commas stay selectable.
func multiValue(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func infoOf(snap *indexer.Snapshot) KBSummary {
	return KBSummary{
		KBVersion:     snap.KBVersion,
		EffectiveDate: snap.Manifest.EffectiveDate,
		Approval:      snap.Manifest.Approval,
		GeneratedAt:   snap.GeneratedAt,
		LoadedAt:      snap.LoadedAt,
		Docs:          len(snap.Docs),
		Sources:       len(snap.Sources),
		Terms:         snap.Engine.TermCount(),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
