// Package index holds the field-aware inverted index the search engine reads
// from, together with the sorted term dictionary used for prefix and fuzzy
// expansion.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/indexer/tokenizer"
)

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]map[string]*Posting
	fieldLen map[string][NumFields]int
	totalLen [NumFields]int
	docCount int
	size     int64

	// dict is the sorted term list; nil means it must be rebuilt.
	dict []string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:    make(map[string]map[string]*Posting),
		fieldLen: make(map[string][NumFields]int),
	}
}

// AddDocument tokenizes every field of doc and merges its postings. Adding
// the same id twice replaces nothing; callers guarantee unique ids.
func (m *MemoryIndex) AddDocument(doc Document) {
	termData := make(map[string]*Posting)
	var lengths [NumFields]int

	for f := Field(0); f < NumFields; f++ {
		tokens := tokenizer.Tokenize(doc.Fields[f])
		lengths[f] = len(tokens)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{DocID: doc.ID}
				termData[token.Term] = p
			}
			p.Frequency[f]++
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[string]*Posting)
		}
		m.index[term][doc.ID] = posting
		m.size += int64(len(term) + len(doc.ID) + int(NumFields)*8 + 64)
	}
	m.fieldLen[doc.ID] = lengths
	for f := range lengths {
		m.totalLen[f] += lengths[f]
	}
	m.docCount++
	m.dict = nil
}

// Lookup returns the postings of term sorted by document id.
func (m *MemoryIndex) Lookup(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

// DocFrequency is the number of documents containing term in any field.
func (m *MemoryIndex) DocFrequency(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index[term])
}

// PrefixTerms returns every dictionary term that starts with prefix, in
// lexical order. The term equal to prefix is included when present.
func (m *MemoryIndex) PrefixTerms(prefix string) []string {
	if prefix == "" {
		return nil
	}
	dict := m.dictionary()
	start := sort.SearchStrings(dict, prefix)
	end := start
	for end < len(dict) && strings.HasPrefix(dict[end], prefix) {
		end++
	}
	if start == end {
		return nil
	}
	out := make([]string, end-start)
	copy(out, dict[start:end])
	return out
}

// FuzzyTerms returns dictionary terms within maxDist edits of term,
// excluding term itself.
func (m *MemoryIndex) FuzzyTerms(term string, maxDist int) []TermMatch {
	if term == "" || maxDist <= 0 {
		return nil
	}
	q := []rune(term)
	var out []TermMatch
	for _, candidate := range m.dictionary() {
		if candidate == term {
			continue
		}
		c := []rune(candidate)
		if abs(len(c)-len(q)) > maxDist {
			continue
		}
		if d, ok := boundedLevenshtein(q, c, maxDist); ok {
			out = append(out, TermMatch{Term: candidate, Distance: d})
		}
	}
	return out
}

// FieldLength is the token count of field f in document docID.
func (m *MemoryIndex) FieldLength(docID string, f Field) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fieldLen[docID][f]
}

// AvgFieldLength is the mean token count of field f across documents.
func (m *MemoryIndex) AvgFieldLength(f Field) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.docCount == 0 {
		return 0
	}
	return float64(m.totalLen[f]) / float64(m.docCount)
}

// TermCount is the number of distinct terms in the dictionary.
func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) dictionary() []string {
	m.mu.RLock()
	dict := m.dict
	m.mu.RUnlock()
	if dict != nil {
		return dict
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dict == nil {
		m.dict = make([]string, 0, len(m.index))
		for term := range m.index {
			m.dict = append(m.dict, term)
		}
		sort.Strings(m.dict)
	}
	return m.dict
}
