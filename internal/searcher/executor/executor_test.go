package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func fixture() *loader.KB {
	return &loader.KB{
		Manifest: kb.Manifest{KBVersion: "2025.06"},
		Sources: []kb.Source{
			{SourceID: "POL1", Type: "policy", Title: "Hand Hygiene Policy", Jurisdiction: "Facility", ReviewBy: "2025-05-31"},
			{SourceID: "POL2", Type: "policy", Title: "Falls Prevention", Jurisdiction: "Facility", ReviewBy: "2025-06-02"},
			{SourceID: "CMS", Type: "CMS", Title: "State Operations Manual", Jurisdiction: "US"},
		},
		Index: &kb.SearchIndex{
			KBVersion: "2025.06",
			Docs: []kb.IndexedDocument{
				{ID: "POL1::S1", SourceID: "POL1", SectionID: "S1", Title: "Hand Hygiene Policy", Heading: "When", Type: "policy", Jurisdiction: "Facility",
					Text: "Perform hand hygiene before and after resident contact.", Tags: []string{"infection", "IPC"}},
				{ID: "POL1::S2", SourceID: "POL1", SectionID: "S2", Title: "Hand Hygiene Policy", Heading: "Alcohol rub", Type: "policy", Jurisdiction: "Facility",
					ReviewBy: "2026-01-01", Text: "Use alcohol-based hand rub when hands are not visibly soiled.", Tags: []string{"ipc"}},
				{ID: "POL2::S1", SourceID: "POL2", SectionID: "S1", Title: "Falls Prevention", Heading: "Assessment", Type: "policy", Jurisdiction: "Facility",
					Text: "Assess fall risk for every resident on admission.", Tags: []string{"fall", "injury"}},
				{ID: "CMS::F689", SourceID: "CMS", SectionID: "F689", Title: "State Operations Manual", Heading: "F689 Accidents", Type: "CMS", Jurisdiction: "US",
					Text: "The resident environment remains free of accident hazards.", Tags: []string{"fall"}},
			},
		},
	}
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	h := indexer.NewHolder(indexer.DefaultOptions(), 0)
	snap, err := indexer.NewSnapshot(fixture(), indexer.DefaultOptions())
	require.NoError(t, err)
	h.Swap(snap)
	return New(h, WithClock(func() time.Time { return fixedNow }))
}

func TestSearchAndFilter(t *testing.T) {
	e := newTestExecutor(t)
	ids := e.Search("resident", false)
	assert.ElementsMatch(t, []string{"POL1::S1", "POL2::S1", "CMS::F689"}, ids)

	assert.Equal(t, []string{}, e.Search("", false))

	filtered := e.Filter(ids, filter.Criteria{Types: []string{"policy"}})
	assert.NotContains(t, filtered, "CMS::F689")
	assert.Len(t, filtered, 2)

	approved := e.Filter(ids, filter.Criteria{ApprovedOnly: true})
	assert.NotContains(t, approved, "POL1::S1", "source review_by 2025-05-31 has passed")
	assert.Contains(t, approved, "POL2::S1")
	assert.Contains(t, approved, "CMS::F689")

	assert.Equal(t, []string{"CMS::F689"}, e.Filter([]string{"nope", "CMS::F689"}, filter.Criteria{}))
}

func TestFilterPreservesRankOrder(t *testing.T) {
	e := newTestExecutor(t)
	ids := e.Search("fall resident accident", false)
	filtered := e.Filter(ids, filter.Criteria{Tags: []string{"FALL"}})
	var want []string
	for _, id := range ids {
		if id == "POL2::S1" || id == "CMS::F689" {
			want = append(want, id)
		}
	}
	assert.Equal(t, want, filtered)
}

func TestRun(t *testing.T) {
	e := newTestExecutor(t)
	resp, err := e.Run(context.Background(), Request{
		Query:    "hand",
		Criteria: filter.Criteria{ApprovedOnly: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025.06", resp.KBVersion)
	assert.Equal(t, 2, resp.TotalHits)
	assert.Equal(t, 1, resp.Returned)
	assert.Equal(t, []string{"POL1::S2"}, resp.IDs)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2026-01-01", resp.Results[0].EffectiveReviewBy)
	assert.False(t, resp.Results[0].Expired)
	assert.Greater(t, resp.Results[0].Score, 0.0)

	resp, err = e.Run(context.Background(), Request{Query: "hand"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Returned)
	for _, hit := range resp.Results {
		if hit.ID == "POL1::S1" {
			assert.True(t, hit.Expired)
			assert.Equal(t, "2025-05-31", hit.EffectiveReviewBy)
		}
	}

	resp, err = e.Run(context.Background(), Request{Query: "zzzz"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, resp.IDs)
	assert.Zero(t, resp.TotalHits)
}

func TestRunWithoutKB(t *testing.T) {
	e := New(indexer.NewHolder(indexer.DefaultOptions(), 0))
	_, err := e.Run(context.Background(), Request{Query: "hand"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	assert.Equal(t, []string{}, e.Search("hand", false))
	assert.Equal(t, []string{}, e.Filter([]string{"POL1::S1"}, filter.Criteria{}))
	assert.Equal(t, []string{"POL1::S1"}, e.Lookup([]string{"POL1::S1"}).Missing)
}

// crowdedKB has n policy sections dense in "resident" and one CDC section
// that mentions it once, so the CDC hit ranks last.
func crowdedKB(n int) *loader.KB {
	docs := make([]kb.IndexedDocument, 0, n+1)
	for i := 0; i < n; i++ {
		docs = append(docs, kb.IndexedDocument{
			ID: fmt.Sprintf("POL::%03d", i), SourceID: "POL", SectionID: fmt.Sprintf("%03d", i),
			Title: "Resident Rights", Type: "policy", Text: "resident resident resident care",
		})
	}
	docs = append(docs, kb.IndexedDocument{
		ID: "CDC::1", SourceID: "CDC", SectionID: "1", Title: "Outbreak Response", Type: "CDC",
		Text: "Cohort staff during an outbreak and notify the health department before moving any resident between units.",
	})
	return &loader.KB{
		Sources: []kb.Source{
			{SourceID: "POL", Type: "policy", Title: "Resident Rights"},
			{SourceID: "CDC", Type: "CDC", Title: "Outbreak Response"},
		},
		Index: &kb.SearchIndex{KBVersion: "1", Docs: docs},
	}
}

func TestRunCapsAfterFiltering(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	opts := indexer.OptionsFromConfig(cfg.Search)
	require.Equal(t, 200, opts.MaxResults)

	h := indexer.NewHolder(opts, 0)
	snap, err := indexer.NewSnapshot(crowdedKB(250), opts)
	require.NoError(t, err)
	h.Swap(snap)
	e := New(h, WithClock(func() time.Time { return fixedNow }))

	resp, err := e.Run(context.Background(), Request{
		Query:    "resident",
		Criteria: filter.Criteria{Types: []string{"CDC"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 251, resp.TotalHits)
	assert.Equal(t, []string{"CDC::1"}, resp.IDs)
	assert.Equal(t, 1, resp.Matched)
	assert.False(t, resp.Truncated)

	resp, err = e.Run(context.Background(), Request{Query: "resident"})
	require.NoError(t, err)
	assert.Equal(t, 251, resp.TotalHits)
	assert.Equal(t, 251, resp.Matched)
	assert.Equal(t, 200, resp.Returned)
	assert.Len(t, resp.IDs, 200)
	assert.True(t, resp.Truncated)
	assert.NotContains(t, resp.IDs, "CDC::1")

	assert.Equal(t, []string{"CDC::1"}, e.SearchFiltered("resident", false, filter.Criteria{Types: []string{"CDC"}}))
}

func TestSearchFiltered(t *testing.T) {
	e := newTestExecutor(t)
	ids := e.Search("fall resident accident", false)
	assert.Equal(t, e.Filter(ids, filter.Criteria{Tags: []string{"fall"}}),
		e.SearchFiltered("fall resident accident", false, filter.Criteria{Tags: []string{"fall"}}))
	assert.Equal(t, []string{}, e.SearchFiltered("", false, filter.Criteria{}))

	empty := New(indexer.NewHolder(indexer.DefaultOptions(), 0))
	assert.Equal(t, []string{}, empty.SearchFiltered("hand", false, filter.Criteria{}))
}

func TestRunCancelled(t *testing.T) {
	e := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, Request{Query: "hand"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookup(t *testing.T) {
	e := newTestExecutor(t)
	res := e.Lookup([]string{"CMS::F689", "OLD::X", "POL1::S1"})
	require.Len(t, res.Docs, 2)
	assert.Equal(t, "CMS::F689", res.Docs[0].ID)
	assert.Equal(t, "POL1::S1", res.Docs[1].ID)
	assert.Equal(t, []string{"OLD::X"}, res.Missing)

	empty := e.Lookup(nil)
	assert.NotNil(t, empty.Docs)
	assert.NotNil(t, empty.Missing)
}

func TestDocumentAndRelated(t *testing.T) {
	e := newTestExecutor(t)
	view, err := e.Document("POL1::S2")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", view.EffectiveReviewBy)
	assert.False(t, view.Expired)
	assert.Equal(t, []RelatedSection{{ID: "POL1::S1", Heading: "When"}}, view.Related)

	view, err = e.Document("POL1::S1")
	require.NoError(t, err)
	assert.True(t, view.Expired)

	_, err = e.Document("POL9::S1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))

	assert.Empty(t, e.Related("CMS::F689"))
	assert.Empty(t, e.Related("missing"))
}

func TestFacets(t *testing.T) {
	e := newTestExecutor(t)
	f := e.Facets()
	assert.Equal(t, []FacetValue{{Value: "CMS", Count: 1}, {Value: "policy", Count: 3}}, f.Types)
	assert.Equal(t, []FacetValue{{Value: "Facility", Count: 3}, {Value: "US", Count: 1}}, f.Jurisdictions)
	assert.Equal(t, []FacetValue{
		{Value: "fall", Count: 2},
		{Value: "infection", Count: 1},
		{Value: "injury", Count: 1},
		{Value: "IPC", Count: 2},
	}, f.Tags)
}
