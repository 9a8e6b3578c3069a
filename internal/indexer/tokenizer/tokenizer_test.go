package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"punctuation only", "  --, ;", nil},
		{"lowercases", "Hand Hygiene", []string{"hand", "hygiene"}},
		{"splits on punctuation", "F-880: infection/control.", []string{"f", "880", "infection", "control"}},
		{"keeps stop words", "before and after the resident", []string{"before", "and", "after", "the", "resident"}},
		{"unicode letters", "Résidents über", []string{"résidents", "über"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tok := range Tokenize(tt.text) {
				got = append(got, tok.Term)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizePositions(t *testing.T) {
	toks := Tokenize("wash hands, wash again")
	assert.Equal(t, []Token{
		{Term: "wash", Position: 0},
		{Term: "hands", Position: 1},
		{Term: "wash", Position: 2},
		{Term: "again", Position: 3},
	}, toks)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"wash", "hands", "again"}, Terms("Wash hands, WASH again"))
	assert.Empty(t, Terms("   "))
}
