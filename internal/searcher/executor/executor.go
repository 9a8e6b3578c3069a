// Package executor is the query-time interface of the engine: ranked search,
// order-preserving filtering, document lookup and facet listing, all read
// from the Holder's current snapshot.
package executor

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/tracing"
)

// Clock returns the current time. The freshness gate reads it once per call.
type Clock func() time.Time

// Request is one search-plus-filter execution.
type Request struct {
	Query       string          `json:"query"`
	ExactPhrase bool            `json:"exact_phrase"`
	Criteria    filter.Criteria `json:"filters"`
}

// Hit is a ranked document that survived filtering.
type Hit struct {
	kb.IndexedDocument
	Score             float64 `json:"score"`
	MatchedTerms      int     `json:"matched_terms"`
	EffectiveReviewBy string  `json:"effective_review_by,omitempty"`
	Expired           bool    `json:"expired"`
}

// Response is the outcome of Run. TotalHits counts every ranked document
// before filtering, Matched those that passed the filters, and Returned
// those listed after the result cap.
type Response struct {
	Query       string          `json:"query"`
	ExactPhrase bool            `json:"exact_phrase"`
	Filters     filter.Criteria `json:"filters"`
	KBVersion   string          `json:"kb_version"`
	TotalHits   int             `json:"total_hits"`
	Matched     int             `json:"matched"`
	Returned    int             `json:"returned"`
	Truncated   bool            `json:"truncated"`
	IDs         []string        `json:"ids"`
	Results     []Hit           `json:"results"`
}

// LookupResult resolves ids against the loaded corpus. Unknown ids are data,
// not errors.
type LookupResult struct {
	Docs    []kb.IndexedDocument `json:"docs"`
	Missing []string             `json:"missing"`
}

// RelatedSection is a sibling section of the same source.
type RelatedSection struct {
	ID      string `json:"id"`
	Heading string `json:"heading"`
}

// DocumentView is a single document with its freshness state and siblings.
type DocumentView struct {
	Document          kb.IndexedDocument `json:"document"`
	EffectiveReviewBy string             `json:"effective_review_by,omitempty"`
	Expired           bool               `json:"expired"`
	Related           []RelatedSection   `json:"related"`
}

// FacetValue is one selectable facet value and how many documents carry it.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets lists every selectable value per dimension, sorted by value.
type Facets struct {
	Types         []FacetValue `json:"type"`
	Jurisdictions []FacetValue `json:"jurisdiction"`
	Tags          []FacetValue `json:"tag"`
}

type Option func(*Executor)

// WithClock replaces the wall clock used by the freshness gate.
func WithClock(c Clock) Option {
	return func(e *Executor) { e.now = c }
}

type Executor struct {
	holder *indexer.Holder
	now    Clock
	logger *slog.Logger
}

func New(holder *indexer.Holder, opts ...Option) *Executor {
	e := &Executor{
		holder: holder,
		now:    time.Now,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Now is the executor's clock reading, in UTC.
func (e *Executor) Now() time.Time {
	return e.now().UTC()
}

// Search returns ranked document ids. Without a loaded KB it returns an
// empty list.
func (e *Executor) Search(query string, exactPhrase bool) []string {
	snap := e.holder.Current()
	if snap == nil {
		return []string{}
	}
	return snap.Engine.SearchIDs(query, indexer.SearchOptions{ExactPhrase: exactPhrase})
}

// Filter keeps the ids that pass c, in their given order. Ids that do not
// resolve to a loaded document are dropped.
func (e *Executor) Filter(ids []string, c filter.Criteria) []string {
	snap := e.holder.Current()
	if snap == nil {
		return []string{}
	}
	kept := filter.Apply(resolve(snap, ids), c, snap.Sources, e.Now())
	out := make([]string, len(kept))
	for i, d := range kept {
		out[i] = d.ID
	}
	return out
}

// SearchFiltered ranks query and filters the hits by c against one
// snapshot, so a concurrent reload cannot split the two steps. It is not
// capped.
func (e *Executor) SearchFiltered(query string, exactPhrase bool, c filter.Criteria) []string {
	snap := e.holder.Current()
	if snap == nil {
		return []string{}
	}
	ranked := snap.Engine.SearchIDs(query, indexer.SearchOptions{ExactPhrase: exactPhrase})
	kept := filter.Apply(resolve(snap, ranked), c, snap.Sources, e.Now())
	out := make([]string, len(kept))
	for i, d := range kept {
		out[i] = d.ID
	}
	return out
}

// Run searches and filters against a single snapshot, then applies the
// configured result cap.
func (e *Executor) Run(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := e.holder.Current()
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "no KB loaded")
	}
	now := e.Now()
	_, match := tracing.Child(ctx, "match")
	ranked := snap.Engine.Search(req.Query, indexer.SearchOptions{ExactPhrase: req.ExactPhrase})
	match.SetAttr("ranked", len(ranked))
	match.End()

	docs := make([]kb.IndexedDocument, 0, len(ranked))
	scores := make(map[string]int, len(ranked))
	for i, r := range ranked {
		if d, ok := snap.Doc(r.DocID); ok {
			docs = append(docs, d)
			scores[r.DocID] = i
		}
	}
	_, gate := tracing.Child(ctx, "filter")
	kept := filter.Apply(docs, req.Criteria, snap.Sources, now)
	gate.SetAttr("kept", len(kept))
	gate.End()

	matched := len(kept)
	if limit := snap.Engine.MaxResults(); limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	resp := &Response{
		Query:       req.Query,
		ExactPhrase: req.ExactPhrase,
		Filters:     req.Criteria,
		KBVersion:   snap.KBVersion,
		TotalHits:   len(ranked),
		Matched:     matched,
		Returned:    len(kept),
		Truncated:   len(kept) < matched,
		IDs:         make([]string, 0, len(kept)),
		Results:     make([]Hit, 0, len(kept)),
	}
	for _, d := range kept {
		r := ranked[scores[d.ID]]
		reviewBy := filter.EffectiveReviewBy(d, snap.Sources)
		resp.IDs = append(resp.IDs, d.ID)
		resp.Results = append(resp.Results, Hit{
			IndexedDocument:   d,
			Score:             r.Score,
			MatchedTerms:      r.Matched,
			EffectiveReviewBy: reviewBy,
			Expired:           filter.IsExpired(reviewBy, now),
		})
	}
	e.logger.Debug("query executed",
		"query", req.Query,
		"exact_phrase", req.ExactPhrase,
		"ranked", len(ranked),
		"matched", matched,
		"returned", len(kept),
		"kb_version", snap.KBVersion,
	)
	return resp, nil
}

// Lookup resolves ids in order, reporting those not in the loaded corpus.
func (e *Executor) Lookup(ids []string) LookupResult {
	res := LookupResult{Docs: []kb.IndexedDocument{}, Missing: []string{}}
	snap := e.holder.Current()
	for _, id := range ids {
		if snap != nil {
			if d, ok := snap.Doc(id); ok {
				res.Docs = append(res.Docs, d)
				continue
			}
		}
		res.Missing = append(res.Missing, id)
	}
	return res
}

// Document returns one document with its freshness state and related
// sections.
func (e *Executor) Document(id string) (*DocumentView, error) {
	snap := e.holder.Current()
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "no KB loaded")
	}
	d, ok := snap.Doc(id)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", id)
	}
	reviewBy := filter.EffectiveReviewBy(d, snap.Sources)
	return &DocumentView{
		Document:          d,
		EffectiveReviewBy: reviewBy,
		Expired:           filter.IsExpired(reviewBy, e.Now()),
		Related:           related(snap, d),
	}, nil
}

// Related lists the other sections of id's source, sorted by heading.
func (e *Executor) Related(id string) []RelatedSection {
	snap := e.holder.Current()
	if snap == nil {
		return []RelatedSection{}
	}
	d, ok := snap.Doc(id)
	if !ok {
		return []RelatedSection{}
	}
	return related(snap, d)
}

// Facets counts the distinct type, jurisdiction and tag values of the loaded
// corpus. Tags differing only in case are counted together under the first
// spelling seen.
func (e *Executor) Facets() Facets {
	out := Facets{Types: []FacetValue{}, Jurisdictions: []FacetValue{}, Tags: []FacetValue{}}
	snap := e.holder.Current()
	if snap == nil {
		return out
	}
	types := newCounter(false)
	jurisdictions := newCounter(false)
	tags := newCounter(true)
	for _, d := range snap.Docs {
		types.add(d.Type)
		jurisdictions.add(d.Jurisdiction)
		seen := make(map[string]struct{}, len(d.Tags))
		for _, t := range d.Tags {
			key := strings.ToLower(strings.TrimSpace(t))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tags.add(t)
		}
	}
	out.Types = types.values()
	out.Jurisdictions = jurisdictions.values()
	out.Tags = tags.values()
	return out
}

func resolve(snap *indexer.Snapshot, ids []string) []kb.IndexedDocument {
	docs := make([]kb.IndexedDocument, 0, len(ids))
	for _, id := range ids {
		if d, ok := snap.Doc(id); ok {
			docs = append(docs, d)
		}
	}
	return docs
}

func related(snap *indexer.Snapshot, d kb.IndexedDocument) []RelatedSection {
	out := make([]RelatedSection, 0)
	for _, other := range snap.Docs {
		if other.SourceID != d.SourceID || other.ID == d.ID {
			continue
		}
		out = append(out, RelatedSection{ID: other.ID, Heading: other.Heading})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Heading != out[j].Heading {
			return out[i].Heading < out[j].Heading
		}
		return out[i].ID < out[j].ID
	})
	return out
}
