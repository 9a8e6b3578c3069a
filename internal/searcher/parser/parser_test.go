package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		query string
		exact bool
		terms []string
		typ   QueryType
	}{
		{"empty", "", false, []string{}, QueryOR},
		{"whitespace", "   \t", true, []string{}, QueryAND},
		{"punctuation only", "?!--", false, []string{}, QueryOR},
		{"two words", "Hand Hygiene", false, []string{"hand", "hygiene"}, QueryOR},
		{"exact", "hand hygiene", true, []string{"hand", "hygiene"}, QueryAND},
		{"operators are words", "before AND after", false, []string{"before", "and", "after"}, QueryOR},
		{"dedupes", "fall FALL falls", false, []string{"fall", "falls"}, QueryOR},
		{"splits tags", "F-880", false, []string{"f", "880"}, QueryOR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query, tt.exact)
			assert.Equal(t, tt.terms, plan.Terms)
			assert.Equal(t, tt.typ, plan.Type)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, len(tt.terms) == 0, plan.Empty())
		})
	}
}
