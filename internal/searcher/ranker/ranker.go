// Package ranker scores candidate documents with field-weighted BM25,
// scaled by how closely each dictionary term matched the query term and by
// the share of query terms a document matched.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched_terms"`
}

// Expansion is one dictionary term reached from a query term.
type Expansion struct {
	Term     string
	Weight   float64
	Postings index.PostingList
}

// QueryTerm groups the expansions of one query term.
type QueryTerm struct {
	Term       string
	Expansions []Expansion
}

type RankParams struct {
	TotalDocs      int64
	AvgFieldLength [index.NumFields]float64
	Boosts         [index.NumFields]float64
	// RequireAll drops documents that do not match every query term.
	RequireAll bool
}

// FieldLengthFunc reports the token count of a field of a document.
type FieldLengthFunc func(docID string, f index.Field) int

// ExactWeight applies to a dictionary term equal to the query term.
const ExactWeight = 1.0

// PrefixWeight discounts a dictionary term that extends the query term by
// extra runes.
func PrefixWeight(queryLen, extra int) float64 {
	q := float64(queryLen)
	return 0.375 * q / (q + 0.3*float64(extra))
}

// FuzzyWeight discounts a dictionary term dist edits away from the query term.
func FuzzyWeight(queryLen, dist int) float64 {
	q := float64(queryLen)
	return 0.45 * q / (q + float64(dist))
}

func Rank(terms []QueryTerm, params RankParams, fieldLength FieldLengthFunc, limit int) []ScoredDoc {
	if len(terms) == 0 {
		return []ScoredDoc{}
	}
	scores := make(map[string]float64)
	matched := make(map[string]int)

	for _, qt := range terms {
		hit := make(map[string]struct{})
		for _, exp := range qt.Expansions {
			idf := computeIDF(params.TotalDocs, int64(len(exp.Postings)))
			for _, posting := range exp.Postings {
				var s float64
				for f := index.Field(0); f < index.NumFields; f++ {
					tf := posting.Frequency[f]
					if tf == 0 {
						continue
					}
					tfNorm := computeTFNorm(
						float64(tf),
						float64(fieldLength(posting.DocID, f)),
						params.AvgFieldLength[f],
					)
					s += params.Boosts[f] * tfNorm
				}
				scores[posting.DocID] += exp.Weight * idf * s
				hit[posting.DocID] = struct{}{}
			}
		}
		for docID := range hit {
			matched[docID]++
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		n := matched[docID]
		if params.RequireAll && n < len(terms) {
			continue
		}
		score *= float64(n) / float64(len(terms))
		result = append(result, ScoredDoc{
			DocID:   docID,
			Score:   math.Round(score*10000) / 10000,
			Matched: n,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
