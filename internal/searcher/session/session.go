// Package session holds one user's query text, facet selections and last
// result list.
//
// Query text and exact-phrase mode take effect only on Execute. Facet and
// approved-only changes re-run the last executed query at once, so the
// visible result list always reflects the current filters. A Session is not
// safe for concurrent use; each user owns one.
package session

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
)

// Retriever is the query-time engine a session drives. SearchFiltered must
// rank and filter against one corpus version.
type Retriever interface {
	SearchFiltered(query string, exactPhrase bool, c filter.Criteria) []string
}

type Session struct {
	retriever Retriever

	query       string
	exactPhrase bool
	criteria    filter.Criteria

	executed  bool
	lastQuery string
	lastExact bool
	results   []string
}

// New returns a session with approved-only mode on and nothing executed.
func New(r Retriever) *Session {
	return &Session{
		retriever: r,
		criteria:  filter.Criteria{ApprovedOnly: true},
	}
}

func (s *Session) Query() string             { return s.query }
func (s *Session) ExactPhrase() bool         { return s.exactPhrase }
func (s *Session) LastQuery() string         { return s.lastQuery }
func (s *Session) Executed() bool            { return s.executed }
func (s *Session) Criteria() filter.Criteria { return cloneCriteria(s.criteria) }

// SetQuery records the pending query text. Results are unchanged until
// Execute.
func (s *Session) SetQuery(q string) {
	s.query = q
}

// SetExactPhrase records the pending combination mode. Results are
// unchanged until Execute.
func (s *Session) SetExactPhrase(on bool) {
	s.exactPhrase = on
}

// SetTypeFilter replaces the selected types and re-runs the last query.
func (s *Session) SetTypeFilter(types ...string) {
	s.criteria.Types = slices.Clone(types)
	s.refresh()
}

// SetJurisdictionFilter replaces the selected jurisdictions and re-runs the
// last query.
func (s *Session) SetJurisdictionFilter(jurisdictions ...string) {
	s.criteria.Jurisdictions = slices.Clone(jurisdictions)
	s.refresh()
}

// SetTagFilter replaces the selected tags and re-runs the last query.
func (s *Session) SetTagFilter(tags ...string) {
	s.criteria.Tags = slices.Clone(tags)
	s.refresh()
}

// ToggleTag adds tag to the selection, or removes it when already selected.
func (s *Session) ToggleTag(tag string) {
	if i := slices.Index(s.criteria.Tags, tag); i >= 0 {
		s.criteria.Tags = slices.Delete(slices.Clone(s.criteria.Tags), i, i+1)
	} else {
		s.criteria.Tags = append(slices.Clone(s.criteria.Tags), tag)
	}
	s.refresh()
}

// SetApprovedOnly switches the freshness gate and re-runs the last query.
func (s *Session) SetApprovedOnly(on bool) {
	s.criteria.ApprovedOnly = on
	s.refresh()
}

// ClearFilters drops every facet selection; approved-only is kept.
func (s *Session) ClearFilters() {
	s.criteria = filter.Criteria{ApprovedOnly: s.criteria.ApprovedOnly}
	s.refresh()
}

// Execute searches with the pending query text and mode, applies the current
// filters and stores the ordered ids.
func (s *Session) Execute() []string {
	s.lastQuery = s.query
	s.lastExact = s.exactPhrase
	s.executed = true
	s.run()
	return s.Results()
}

// Results returns the last computed ids. Before the first Execute it returns
// nil; after an Execute that matched nothing it returns an empty, non-nil
// slice.
func (s *Session) Results() []string {
	if !s.executed {
		return nil
	}
	return slices.Clone(s.results)
}

func (s *Session) refresh() {
	if s.executed {
		s.run()
	}
}

func (s *Session) run() {
	s.results = s.retriever.SearchFiltered(s.lastQuery, s.lastExact, s.criteria)
	if s.results == nil {
		s.results = []string{}
	}
}

func cloneCriteria(c filter.Criteria) filter.Criteria {
	c.Types = slices.Clone(c.Types)
	c.Jurisdictions = slices.Clone(c.Jurisdictions)
	c.Tags = slices.Clone(c.Tags)
	return c
}
