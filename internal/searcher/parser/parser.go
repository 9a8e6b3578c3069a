// Package parser turns free query text into a plan of distinct terms and a
// combination mode.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer/tokenizer"
)

type QueryType int

const (
	// QueryOR scores documents matching any term, more matches ranking higher.
	QueryOR QueryType = iota
	// QueryAND requires every term to match the same document.
	QueryAND
)

func (t QueryType) String() string {
	if t == QueryAND {
		return "AND"
	}
	return "OR"
}

type QueryPlan struct {
	Terms    []string
	Type     QueryType
	RawQuery string
}

// Empty reports whether the plan has nothing to search for.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Parse tokenizes query with the index tokenizer. Words are plain text: there
// are no operators, so "before and after" searches for all three words.
// exactPhrase selects AND combination.
func Parse(query string, exactPhrase bool) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		Type:     QueryOR,
		RawQuery: query,
	}
	if exactPhrase {
		plan.Type = QueryAND
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Terms = append(plan.Terms, tokenizer.Terms(query)...)
	return plan
}
