package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, title, heading, text, tags string) Document {
	return Document{ID: id, Fields: [NumFields]string{title, heading, text, tags}}
}

func newTestIndex() *MemoryIndex {
	m := NewMemoryIndex()
	m.AddDocument(doc("POL1::S1", "Hand Hygiene Policy", "When", "Perform hand hygiene before and after resident contact.", "infection IPC"))
	m.AddDocument(doc("POL2::S1", "Falls Prevention", "Assessment", "Assess fall risk on admission.", "fall injury"))
	return m
}

func TestLookup(t *testing.T) {
	m := newTestIndex()
	postings := m.Lookup("hand")
	require.Len(t, postings, 1)
	assert.Equal(t, "POL1::S1", postings[0].DocID)
	assert.Equal(t, 1, postings[0].Frequency[FieldTitle])
	assert.Equal(t, 1, postings[0].Frequency[FieldText])
	assert.Equal(t, 2, postings[0].Total())

	assert.Nil(t, m.Lookup("wound"))
	assert.Equal(t, 1, m.DocFrequency("ipc"))
	assert.Equal(t, 2, m.DocCount())
}

func TestFieldLengths(t *testing.T) {
	m := newTestIndex()
	assert.Equal(t, 3, m.FieldLength("POL1::S1", FieldTitle))
	assert.Equal(t, 2, m.FieldLength("POL2::S1", FieldTags))
	assert.InDelta(t, 2.5, m.AvgFieldLength(FieldTitle), 1e-9)
	assert.Zero(t, NewMemoryIndex().AvgFieldLength(FieldText))
}

func TestPrefixTerms(t *testing.T) {
	m := newTestIndex()
	assert.Equal(t, []string{"hand"}, m.PrefixTerms("han"))
	assert.Equal(t, []string{"assess", "assessment"}, m.PrefixTerms("assess"))
	assert.Nil(t, m.PrefixTerms("zz"))
	assert.Nil(t, m.PrefixTerms(""))

	m.AddDocument(doc("X::1", "Handoff", "", "shift handoff", ""))
	assert.Equal(t, []string{"hand", "handoff"}, m.PrefixTerms("hand"), "dictionary rebuilt after add")
}

func TestFuzzyTerms(t *testing.T) {
	m := newTestIndex()
	got := m.FuzzyTerms("hygeine", 2)
	assert.Equal(t, []TermMatch{{Term: "hygiene", Distance: 2}}, got)

	assert.Empty(t, m.FuzzyTerms("hygiene", 1), "the term itself is not a fuzzy match")
	assert.Nil(t, m.FuzzyTerms("hand", 0))
}

func TestBoundedLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		max  int
		want int
		ok   bool
	}{
		{"kitten", "sitting", 3, 3, true},
		{"kitten", "sitting", 2, 0, false},
		{"", "abc", 3, 3, true},
		{"fall", "fall", 1, 0, true},
		{"résident", "resident", 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			d, ok := boundedLevenshtein([]rune(tt.a), []rune(tt.b), tt.max)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, d)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("heading")
	require.True(t, ok)
	assert.Equal(t, FieldHeading, f)
	assert.Equal(t, "heading", f.String())
	_, ok = ParseField("body")
	assert.False(t, ok)
}
