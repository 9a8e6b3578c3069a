package validator

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

func rawCorpus(sources, sections []string) *loader.RawCorpus {
	raw := &loader.RawCorpus{
		Manifest:     kb.Manifest{KBVersion: "test"},
		SourcesFile:  "/kb/sources.json",
		SectionsFile: "/kb/sections.json",
	}
	for _, s := range sources {
		raw.Sources = append(raw.Sources, json.RawMessage(s))
	}
	for _, s := range sections {
		raw.Sections = append(raw.Sections, json.RawMessage(s))
	}
	return raw
}

const pol1 = `{"source_id":"POL1","type":"policy","title":"Hand Hygiene Policy","tags":["hygiene"]}`

func section(id, sourceID string) string {
	return fmt.Sprintf(`{"source_id":%q,"section_id":%q,"heading":"H","text":"Perform hand hygiene."}`, sourceID, id)
}

func TestValidateAccepts(t *testing.T) {
	raw := rawCorpus(
		[]string{pol1},
		[]string{section("S1", "POL1"), `{"source_id":"POL1","section_id":"S2","text":"t","tags":[" fall ",""],"keywords":["  "]}`},
	)
	corpus, report, err := Validate(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 2, report.Sections)
	assert.Equal(t, "test", report.KBVersion)
	require.Len(t, corpus.Sections, 2)
	assert.Equal(t, []string{"fall"}, corpus.Sections[1].Tags)
	assert.Empty(t, corpus.Sections[1].Keywords)
	assert.Equal(t, []string{
		"sections.json:sections[1].heading is missing (recommended)",
		"sections.json:sections[1].tags had empty/whitespace entries that were ignored",
		"sections.json:sections[1].keywords had empty/whitespace entries that were ignored",
	}, report.Warnings)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name     string
		sources  []string
		sections []string
		contains string
		sentinel error
	}{
		{
			name:     "duplicate source id",
			sources:  []string{pol1, pol1},
			sections: []string{section("S1", "POL1")},
			contains: "sources.json:sources[1] has duplicate source_id: POL1",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "duplicate section id",
			sources:  []string{pol1},
			sections: []string{section("S1", "POL1"), section("S1", "POL1")},
			contains: "has duplicate section_id: S1",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "dangling reference",
			sources:  []string{pol1},
			sections: []string{section("S1", "MISSING")},
			contains: "sections.json:sections[0] (section_id S1) references missing source_id: MISSING",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "blank text",
			sources:  []string{pol1},
			sections: []string{`{"source_id":"POL1","section_id":"S1","text":"   "}`},
			contains: "text is required",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "missing type",
			sources:  []string{`{"source_id":"POL1","title":"T"}`},
			sections: []string{section("S1", "POL1")},
			contains: "sources.json:sources[0].type is required",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "missing title",
			sources:  []string{`{"source_id":"POL1","type":"policy","title":""}`},
			sections: []string{section("S1", "POL1")},
			contains: "sources.json:sources[0].title is required",
			sentinel: apperrors.ErrCorpusIntegrity,
		},
		{
			name:     "tags wrong type",
			sources:  []string{`{"source_id":"POL1","type":"policy","title":"T","tags":"fall"}`},
			sections: []string{section("S1", "POL1")},
			contains: "sources.json:sources[0].tags must be an array of strings",
			sentinel: apperrors.ErrMalformedField,
		},
		{
			name:     "keywords with numbers",
			sources:  []string{pol1},
			sections: []string{`{"source_id":"POL1","section_id":"S1","text":"t","keywords":["a",3]}`},
			contains: "keywords must be an array of strings",
			sentinel: apperrors.ErrMalformedField,
		},
		{
			name:     "record not an object",
			sources:  []string{`"POL1"`},
			sections: []string{section("S1", "POL1")},
			contains: "sources.json:sources[0] must be an object",
			sentinel: apperrors.ErrMalformedField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Validate(rawCorpus(tt.sources, tt.sections), 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.ErrorIs(t, err, tt.sentinel)
			var ie *IntegrityError
			assert.ErrorAs(t, err, &ie)
		})
	}
}

func TestValidateGate(t *testing.T) {
	sections := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		sections = append(sections, section(fmt.Sprintf("S%d", i), "POL1"))
	}
	raw := rawCorpus([]string{pol1}, sections)

	_, _, err := Validate(raw, 5)
	require.NoError(t, err, "exactly the minimum passes")

	_, _, err = Validate(raw, 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorpusTooSmall)
	var ge *GateError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 5, ge.Count)
	assert.Equal(t, 6, ge.Min)
	assert.Contains(t, err.Error(), "incomplete corpus deployment")

	_, _, err = Validate(raw, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestCheckIntegrityTyped(t *testing.T) {
	sources := []kb.Source{{SourceID: "A", Type: "CMS", Title: "F-tags"}}
	err := CheckIntegrity(sources, []kb.Section{{SourceID: "A", SectionID: "X", Text: "t"}})
	require.NoError(t, err)

	err = CheckIntegrity(sources, []kb.Section{{SourceID: "B", SectionID: "X", Text: "t"}})
	require.Error(t, err)
	assert.Equal(t, "sections[0] (section_id X) references missing source_id: B", err.Error())
}
