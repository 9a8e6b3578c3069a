// Package tokenizer splits guidance text into lowercase surface-form terms.
// There is no stemming and no stop-word list: prefix and fuzzy matching work
// on the words as written, and short clinical tokens ("iv", "o2") matter.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a normalised term and its position in the original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lowercases text and splits it on every rune that is not a letter
// or digit.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{Term: word, Position: pos})
	}
	return tokens
}

// Terms returns the distinct terms of text in first-seen order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, dup := seen[tok.Term]; dup {
			continue
		}
		seen[tok.Term] = struct{}{}
		terms = append(terms, tok.Term)
	}
	return terms
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
