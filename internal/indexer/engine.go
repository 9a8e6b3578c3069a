// Package indexer builds the query-time search engine over a KB's flattened
// documents and owns the atomically swappable snapshot that request handlers
// read from.
package indexer

import (
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
)

// Options tunes matching and scoring.
type Options struct {
	Prefix    bool
	Fuzziness float64
	MaxFuzzy  int
	Boosts    [index.NumFields]float64
	// MaxResults caps the hits a caller returns after filtering; Search
	// itself never truncates. Zero means unlimited.
	MaxResults int
}

// DefaultOptions enables prefix matching, a fuzziness of 0.2 capped at six
// edits, and boosts title 2, heading and tags 1.5, text 1.
func DefaultOptions() Options {
	return Options{
		Prefix:    true,
		Fuzziness: 0.2,
		MaxFuzzy:  6,
		Boosts:    [index.NumFields]float64{2, 1.5, 1, 1.5},
	}
}

// OptionsFromConfig maps the search section of the service configuration.
// Unknown boost field names are ignored.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	opts := DefaultOptions()
	opts.Prefix = cfg.Prefix
	opts.Fuzziness = cfg.Fuzziness
	if cfg.MaxFuzzy > 0 {
		opts.MaxFuzzy = cfg.MaxFuzzy
	}
	opts.MaxResults = cfg.MaxResults
	for name, boost := range cfg.FieldBoosts {
		if f, ok := index.ParseField(name); ok && boost > 0 {
			opts.Boosts[f] = boost
		}
	}
	return opts
}

// SearchOptions are per-query switches.
type SearchOptions struct {
	ExactPhrase bool
}

// Engine is an immutable search engine over one document collection. It is
// safe for concurrent use.
type Engine struct {
	memIndex *index.MemoryIndex
	opts     Options
	logger   *slog.Logger
}

// NewEngine indexes title, heading, text and the space-joined tags of every
// document.
func NewEngine(docs []kb.IndexedDocument, opts Options) *Engine {
	e := &Engine{
		memIndex: index.NewMemoryIndex(),
		opts:     opts,
		logger:   slog.Default().With("component", "search-engine"),
	}
	for _, d := range docs {
		e.memIndex.AddDocument(index.Document{
			ID: d.ID,
			Fields: [index.NumFields]string{
				index.FieldTitle:   d.Title,
				index.FieldHeading: d.Heading,
				index.FieldText:    d.Text,
				index.FieldTags:    strings.Join(d.Tags, " "),
			},
		})
	}
	e.logger.Debug("search engine built",
		"docs", e.memIndex.DocCount(),
		"terms", e.memIndex.TermCount(),
		"mem_size", e.memIndex.Size(),
	)
	return e
}

// Search returns every ranked document for query. An empty query, or one
// with no searchable characters, yields an empty list.
func (e *Engine) Search(query string, so SearchOptions) []ranker.ScoredDoc {
	plan := parser.Parse(query, so.ExactPhrase)
	if plan.Empty() {
		return []ranker.ScoredDoc{}
	}
	terms := make([]ranker.QueryTerm, 0, len(plan.Terms))
	for _, t := range plan.Terms {
		terms = append(terms, ranker.QueryTerm{Term: t, Expansions: e.expand(t)})
	}

	params := ranker.RankParams{
		TotalDocs:  int64(e.memIndex.DocCount()),
		Boosts:     e.opts.Boosts,
		RequireAll: plan.Type == parser.QueryAND,
	}
	for f := index.Field(0); f < index.NumFields; f++ {
		params.AvgFieldLength[f] = e.memIndex.AvgFieldLength(f)
	}
	results := ranker.Rank(terms, params, e.memIndex.FieldLength, 0)
	e.logger.Debug("search executed",
		"query", query,
		"terms", len(plan.Terms),
		"mode", plan.Type.String(),
		"hits", len(results),
	)
	return results
}

// SearchIDs is Search reduced to the ordered document ids.
func (e *Engine) SearchIDs(query string, so SearchOptions) []string {
	results := e.Search(query, so)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

// MaxResults is the configured cap on returned hits.
func (e *Engine) MaxResults() int {
	return e.opts.MaxResults
}

// DocCount is the number of indexed documents.
func (e *Engine) DocCount() int {
	return e.memIndex.DocCount()
}

// TermCount is the number of distinct indexed terms.
func (e *Engine) TermCount() int {
	return e.memIndex.TermCount()
}

// MaxEdits is the fuzzy tolerance for a term of n runes.
func (e *Engine) MaxEdits(n int) int {
	if e.opts.Fuzziness <= 0 {
		return 0
	}
	d := int(math.Round(e.opts.Fuzziness * float64(n)))
	if e.opts.MaxFuzzy > 0 && d > e.opts.MaxFuzzy {
		d = e.opts.MaxFuzzy
	}
	return d
}

// expand collects the dictionary terms reachable from term. A term reached
// several ways keeps its best weight.
func (e *Engine) expand(term string) []ranker.Expansion {
	qLen := utf8.RuneCountInString(term)
	weights := make(map[string]float64)
	order := make([]string, 0, 4)
	add := func(t string, w float64) {
		prev, seen := weights[t]
		if !seen {
			order = append(order, t)
		}
		if w > prev {
			weights[t] = w
		}
	}

	if e.memIndex.DocFrequency(term) > 0 {
		add(term, ranker.ExactWeight)
	}
	if e.opts.Prefix {
		for _, t := range e.memIndex.PrefixTerms(term) {
			if t == term {
				continue
			}
			add(t, ranker.PrefixWeight(qLen, utf8.RuneCountInString(t)-qLen))
		}
	}
	for _, m := range e.memIndex.FuzzyTerms(term, e.MaxEdits(qLen)) {
		add(m.Term, ranker.FuzzyWeight(qLen, m.Distance))
	}

	out := make([]ranker.Expansion, 0, len(order))
	for _, t := range order {
		out = append(out, ranker.Expansion{
			Term:     t,
			Weight:   weights[t],
			Postings: e.memIndex.Lookup(t),
		})
	}
	return out
}
