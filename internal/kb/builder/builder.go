// Package builder flattens a validated corpus into search-ready documents and
// writes the search-index artifact.
package builder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/validator"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/config"
)

// Options controls a build.
type Options struct {
	// MinDocs is the publish gate. A negative value selects the default.
	MinDocs int
}

// DefaultOptions returns the standard gate of config.DefaultMinDocs documents.
func DefaultOptions() Options {
	return Options{MinDocs: config.DefaultMinDocs}
}

// Result is the flattened document collection plus non-fatal warnings.
type Result struct {
	Docs     []kb.IndexedDocument
	Warnings []string
}

// Build produces one IndexedDocument per section, in section order. It fails
// on any integrity violation and when fewer than opts.MinDocs documents result.
func Build(sources []kb.Source, sections []kb.Section, opts Options) (*Result, error) {
	if opts.MinDocs < 0 {
		opts.MinDocs = config.DefaultMinDocs
	}
	if err := validator.CheckIntegrity(sources, sections); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	byID := kb.IndexSources(sources)
	res := &Result{Docs: make([]kb.IndexedDocument, 0, len(sections))}

	for i, sec := range sections {
		src := byID[sec.SourceID]
		srcTags, d1 := kb.NormalizeTags(src.Tags)
		secTags, d2 := kb.NormalizeTags(sec.Tags)
		keywords, d3 := kb.NormalizeTags(sec.Keywords)
		if d1+d2+d3 > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"sections[%d] (%s): %d blank tag entries were ignored",
				i, kb.DocumentID(sec.SourceID, sec.SectionID), d1+d2+d3,
			))
		}
		res.Docs = append(res.Docs, kb.IndexedDocument{
			ID:            kb.DocumentID(sec.SourceID, sec.SectionID),
			SourceID:      sec.SourceID,
			SectionID:     sec.SectionID,
			Title:         src.Title,
			Heading:       sec.Heading,
			Type:          src.Type,
			Jurisdiction:  src.Jurisdiction,
			EffectiveDate: src.EffectiveDate,
			ReviewBy:      src.ReviewBy,
			URLOrLocation: src.URLOrLocation,
			Tags:          kb.UnionTags(srcTags, secTags, keywords),
			Text:          sec.Text,
		})
	}

	if err := CheckGate(len(res.Docs), opts.MinDocs); err != nil {
		return nil, err
	}
	slog.Default().With("component", "index-builder").Debug("index built",
		"docs", len(res.Docs),
		"warnings", len(res.Warnings),
		"min_docs", opts.MinDocs,
	)
	return res, nil
}

// CheckGate fails when count is below minDocs.
func CheckGate(count, minDocs int) error {
	if count < minDocs {
		return &validator.GateError{What: "docs", Count: count, Min: minDocs}
	}
	return nil
}

// NewSearchIndex wraps docs into the published artifact shape.
func NewSearchIndex(kbVersion string, generatedAt time.Time, docs []kb.IndexedDocument) *kb.SearchIndex {
	return &kb.SearchIndex{
		KBVersion:   kbVersion,
		GeneratedAt: generatedAt.UTC(),
		Docs:        docs,
	}
}
