package session

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
)

// fakeRetriever matches documents whose text contains every query word and
// records how often it was asked.
type fakeRetriever struct {
	docs     []kb.IndexedDocument
	searches int
}

func (f *fakeRetriever) SearchFiltered(query string, _ bool, c filter.Criteria) []string {
	f.searches++
	var matched []kb.IndexedDocument
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return []string{}
	}
	for _, d := range f.docs {
		text := strings.ToLower(d.Text)
		if !slices.ContainsFunc(words, func(w string) bool { return !strings.Contains(text, w) }) {
			matched = append(matched, d)
		}
	}
	var out []string
	for _, d := range filter.Apply(matched, c, nil, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		out = append(out, d.ID)
	}
	return out
}

func newFake() *fakeRetriever {
	return &fakeRetriever{docs: []kb.IndexedDocument{
		{ID: "A", Type: "policy", Text: "fall risk", Tags: []string{"fall"}},
		{ID: "B", Type: "CMS", Text: "fall hazards", Tags: []string{"injury"}, ReviewBy: "2025-05-31"},
		{ID: "C", Type: "CDC", Text: "hand hygiene"},
	}}
}

func TestSessionDefaults(t *testing.T) {
	s := New(newFake())
	assert.True(t, s.Criteria().ApprovedOnly)
	assert.False(t, s.Executed())
	assert.Nil(t, s.Results(), "nothing executed yet")
}

func TestQueryIsExplicitSubmit(t *testing.T) {
	r := newFake()
	s := New(r)
	s.SetQuery("fall")
	s.SetExactPhrase(true)
	assert.Nil(t, s.Results())
	assert.Zero(t, r.searches)

	assert.Equal(t, []string{"A"}, s.Execute())
	assert.Equal(t, "fall", s.LastQuery())

	s.SetQuery("hand")
	assert.Equal(t, []string{"A"}, s.Results(), "typing does not change results")
	assert.Equal(t, 1, r.searches)

	assert.Equal(t, []string{"C"}, s.Execute())
}

func TestFilterChangesRerunLastQuery(t *testing.T) {
	r := newFake()
	s := New(r)
	s.SetApprovedOnly(false)
	assert.Zero(t, r.searches, "no re-run before the first execute")

	s.SetQuery("fall")
	require.Equal(t, []string{"A", "B"}, s.Execute())

	s.SetQuery("hand")
	s.SetTypeFilter("CMS")
	assert.Equal(t, []string{"B"}, s.Results(), "re-ran the executed query, not the pending text")

	s.SetTypeFilter()
	s.ToggleTag("FALL")
	assert.Equal(t, []string{"A"}, s.Results())
	s.ToggleTag("FALL")
	assert.Empty(t, s.Criteria().Tags)
	assert.Equal(t, []string{"A", "B"}, s.Results())

	s.SetApprovedOnly(true)
	assert.Equal(t, []string{"A"}, s.Results())

	s.SetJurisdictionFilter("Nowhere")
	got := s.Results()
	assert.NotNil(t, got)
	assert.Empty(t, got, "executed with zero matches is distinct from not executed")

	s.ClearFilters()
	assert.Equal(t, []string{"A"}, s.Results())
	assert.True(t, s.Criteria().ApprovedOnly)
}

func TestEmptyQueryExecute(t *testing.T) {
	s := New(newFake())
	s.SetQuery("fall")
	s.Execute()
	s.SetQuery("   ")
	got := s.Execute()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResultsAreCopies(t *testing.T) {
	s := New(newFake())
	s.SetApprovedOnly(false)
	s.SetQuery("fall")
	got := s.Execute()
	got[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, s.Results())

	c := s.Criteria()
	c.Types = append(c.Types, "x")
	assert.Empty(t, s.Criteria().Types)
}

func TestSessionWithExecutor(t *testing.T) {
	h := indexer.NewHolder(indexer.DefaultOptions(), 0)
	snap, err := indexer.NewSnapshot(&loader.KB{
		Sources: []kb.Source{{SourceID: "POL1", Type: "policy", Title: "Hand Hygiene Policy"}},
		Index: &kb.SearchIndex{KBVersion: "1", Docs: []kb.IndexedDocument{{
			ID: "POL1::S1", SourceID: "POL1", SectionID: "S1", Title: "Hand Hygiene Policy", Type: "policy",
			Text: "Perform hand hygiene before and after resident contact.",
		}}},
	}, indexer.DefaultOptions())
	require.NoError(t, err)
	h.Swap(snap)

	s := New(executor.New(h))
	s.SetQuery("hand hygiene")
	assert.Equal(t, []string{"POL1::S1"}, s.Execute())

	s.SetTypeFilter("CMS")
	assert.Equal(t, []string{}, s.Results())
}

func TestSessionSeesOneCorpusPerRun(t *testing.T) {
	h := indexer.NewHolder(indexer.DefaultOptions(), 0)
	load := func(version, title string) {
		snap, err := indexer.NewSnapshot(&loader.KB{
			Sources: []kb.Source{{SourceID: "POL1", Type: "policy", Title: title}},
			Index: &kb.SearchIndex{KBVersion: version, Docs: []kb.IndexedDocument{{
				ID: "POL1::S1", SourceID: "POL1", SectionID: "S1", Title: title, Type: "policy",
				Text: "Perform hand hygiene before resident contact.",
			}}},
		}, indexer.DefaultOptions())
		require.NoError(t, err)
		h.Swap(snap)
	}
	load("1", "Hand Hygiene Policy")

	s := New(executor.New(h))
	s.SetApprovedOnly(false)
	s.SetQuery("hygiene")
	require.Equal(t, []string{"POL1::S1"}, s.Execute())

	load("2", "Hand Hygiene Policy (revised)")
	s.SetTypeFilter("policy")
	assert.Equal(t, []string{"POL1::S1"}, s.Results(), "a filter change re-runs against the new corpus")
}
