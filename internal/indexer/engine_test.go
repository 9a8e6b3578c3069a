package indexer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
)

func testDocs() []kb.IndexedDocument {
	return []kb.IndexedDocument{
		{ID: "POL1::S1", SourceID: "POL1", SectionID: "S1", Title: "Hand Hygiene Policy", Type: "policy",
			Text: "Perform hand hygiene before and after resident contact.", Tags: []string{"infection", "IPC"}},
		{ID: "POL2::S1", SourceID: "POL2", SectionID: "S1", Title: "Falls Prevention", Heading: "Assessment", Type: "policy",
			Text: "Assess fall risk on admission and after any fall.", Tags: []string{"fall", "injury"}},
		{ID: "CDC::S4", SourceID: "CDC", SectionID: "S4", Title: "Outbreak Response", Heading: "Contact precautions", Type: "CDC",
			Text: "Use gloves and gowns for resident care during an outbreak.", Tags: []string{"infection", "outbreak"}},
		{ID: "CMS::F689", SourceID: "CMS", SectionID: "F689", Title: "Accidents", Type: "CMS",
			Text: "The facility must ensure the resident environment remains free of accident hazards.", Tags: []string{"fall"}},
	}
}

func newTestEngine() *Engine {
	return NewEngine(testDocs(), DefaultOptions())
}

func TestSearchBasicRetrieval(t *testing.T) {
	docs := []kb.IndexedDocument{{
		ID: "POL1::S1", SourceID: "POL1", SectionID: "S1", Title: "Hand Hygiene Policy", Type: "policy",
		Text: "Perform hand hygiene before and after resident contact.",
	}}
	e := NewEngine(docs, DefaultOptions())
	assert.Equal(t, []string{"POL1::S1"}, e.SearchIDs("hand hygiene", SearchOptions{}))
	assert.Equal(t, []string{"POL1::S1"}, e.SearchIDs("hand hygiene", SearchOptions{ExactPhrase: true}))
}

func TestSearchEmptyQuery(t *testing.T) {
	e := newTestEngine()
	for _, q := range []string{"", "   ", "?!", "--"} {
		for _, exact := range []bool{false, true} {
			got := e.SearchIDs(q, SearchOptions{ExactPhrase: exact})
			assert.NotNil(t, got)
			assert.Empty(t, got, "query %q", q)
		}
	}
}

func TestSearchRanksTitleMatchFirst(t *testing.T) {
	e := newTestEngine()
	got := e.SearchIDs("hygiene", SearchOptions{})
	require.NotEmpty(t, got)
	assert.Equal(t, "POL1::S1", got[0])
}

func TestSearchMoreTermsRankHigher(t *testing.T) {
	e := newTestEngine()
	got := e.Search("resident outbreak", SearchOptions{})
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, "CDC::S4", got[0].DocID)
	assert.Equal(t, 2, got[0].Matched)
	for _, r := range got[1:] {
		assert.Equal(t, 1, r.Matched)
	}
}

func TestSearchExactPhraseNarrows(t *testing.T) {
	e := newTestEngine()
	queries := []string{"resident outbreak", "fall risk", "hand resident", "infection gloves", "accident facility"}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			anyTerm := e.SearchIDs(q, SearchOptions{})
			allTerms := e.SearchIDs(q, SearchOptions{ExactPhrase: true})
			assert.Subset(t, anyTerm, allTerms)
			assert.LessOrEqual(t, len(allTerms), len(anyTerm))
		})
	}
	assert.Equal(t, []string{"CDC::S4"}, e.SearchIDs("resident outbreak", SearchOptions{ExactPhrase: true}))
}

func TestSearchPrefix(t *testing.T) {
	e := newTestEngine()
	assert.Contains(t, e.SearchIDs("outbr", SearchOptions{}), "CDC::S4")
	assert.Contains(t, e.SearchIDs("admis", SearchOptions{}), "POL2::S1")

	opts := DefaultOptions()
	opts.Prefix = false
	opts.Fuzziness = 0
	assert.Empty(t, NewEngine(testDocs(), opts).SearchIDs("outbr", SearchOptions{}))
}

func TestSearchFuzzy(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, []string{"POL1::S1"}, e.SearchIDs("hygene", SearchOptions{}))

	opts := DefaultOptions()
	opts.Fuzziness = 0
	assert.Empty(t, NewEngine(testDocs(), opts).SearchIDs("hygene", SearchOptions{}))
}

func TestSearchExactAboveFuzzy(t *testing.T) {
	docs := []kb.IndexedDocument{
		{ID: "A", Title: "Gowns", Text: "Wear a gown."},
		{ID: "B", Title: "Gloves", Text: "Wear a glove."},
	}
	e := NewEngine(docs, DefaultOptions())
	assert.Equal(t, []string{"B"}, e.SearchIDs("glove", SearchOptions{}))

	docs = []kb.IndexedDocument{
		{ID: "A", Text: "precautions for isolation"},
		{ID: "B", Text: "precaution for isolation"},
	}
	e = NewEngine(docs, DefaultOptions())
	got := e.SearchIDs("precaution", SearchOptions{})
	assert.Equal(t, []string{"B", "A"}, got)
}

func TestSearchDeterministic(t *testing.T) {
	e := newTestEngine()
	first := e.Search("resident fall infection", SearchOptions{})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Search("resident fall infection", SearchOptions{}))
	}
}

func TestSearchIgnoresMaxResults(t *testing.T) {
	docs := make([]kb.IndexedDocument, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, kb.IndexedDocument{ID: fmt.Sprintf("S::%02d", i), Text: "fall"})
	}
	opts := DefaultOptions()
	opts.MaxResults = 3
	e := NewEngine(docs, opts)
	got := e.SearchIDs("fall", SearchOptions{})
	assert.Len(t, got, 10, "the cap applies after filtering, not at ranking")
	assert.Equal(t, "S::00", got[0])
	assert.Equal(t, 3, e.MaxResults())
}

func TestExactPhraseSubsetBeyondCap(t *testing.T) {
	docs := make([]kb.IndexedDocument, 0, 30)
	for i := 0; i < 29; i++ {
		docs = append(docs, kb.IndexedDocument{ID: fmt.Sprintf("A::%02d", i), Text: "resident resident resident"})
	}
	docs = append(docs, kb.IndexedDocument{ID: "Z::1", Text: "resident wandering with a long trailing description of the care plan"})
	opts := DefaultOptions()
	opts.MaxResults = 5
	e := NewEngine(docs, opts)

	or := e.SearchIDs("resident wandering", SearchOptions{})
	and := e.SearchIDs("resident wandering", SearchOptions{ExactPhrase: true})
	assert.Equal(t, []string{"Z::1"}, and)
	for _, id := range and {
		assert.Contains(t, or, id)
	}
}

func TestMaxEdits(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, 0, e.MaxEdits(2))
	assert.Equal(t, 1, e.MaxEdits(5))
	assert.Equal(t, 2, e.MaxEdits(8))
	assert.Equal(t, 6, e.MaxEdits(40))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.SearchConfig{
		Prefix:      false,
		Fuzziness:   0.3,
		FieldBoosts: map[string]float64{"title": 3, "bogus": 9},
		MaxResults:  10,
	})
	assert.False(t, opts.Prefix)
	assert.Equal(t, 0.3, opts.Fuzziness)
	assert.Equal(t, 6, opts.MaxFuzzy)
	assert.Equal(t, 3.0, opts.Boosts[0])
	assert.Equal(t, 1.5, opts.Boosts[1])
	assert.Equal(t, 10, opts.MaxResults)
}
