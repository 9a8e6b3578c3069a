// Package validator checks a KB corpus before it is flattened and published.
// Integrity violations are fatal and name the offending record; harmless
// shape issues (blank tag entries, a missing heading) become warnings.
package validator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

// IntegrityError identifies one offending record. It wraps
// ErrCorpusIntegrity or ErrMalformedField.
type IntegrityError struct {
	At     string
	Field  string
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	loc := e.At
	if e.Field != "" {
		loc += "." + e.Field
	}
	return loc + " " + e.Reason
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// GateError reports a corpus that is too small to publish.
type GateError struct {
	What  string
	Count int
	Min   int
}

func (e *GateError) Error() string {
	return fmt.Sprintf(
		"KB validation gate failed: %s count %d is below minimum %d. "+
			"This usually means the bulk KB pack was not applied to the KB directory (incomplete corpus deployment).",
		e.What, e.Count, e.Min,
	)
}

func (e *GateError) Unwrap() error {
	return apperrors.ErrCorpusTooSmall
}

// Report summarises a successful validation.
type Report struct {
	KBVersion string
	Sources   int
	Sections  int
	MinDocs   int
	Warnings  []string
}

// Labeler names record i of the given kind ("sources" or "sections") in error
// messages.
type Labeler func(kind string, i int) string

// DefaultLabeler labels records by slice position only.
func DefaultLabeler(kind string, i int) string {
	return fmt.Sprintf("%s[%d]", kind, i)
}

func fileLabeler(sourcesFile, sectionsFile string) Labeler {
	return func(kind string, i int) string {
		file := sourcesFile
		if kind == "sections" {
			file = sectionsFile
		}
		return fmt.Sprintf("%s:%s[%d]", filepath.Base(file), kind, i)
	}
}

type rawSource struct {
	SourceID      *string         `json:"source_id"`
	Type          *string         `json:"type"`
	Title         *string         `json:"title"`
	Jurisdiction  *string         `json:"jurisdiction"`
	EffectiveDate *string         `json:"effective_date"`
	ReviewBy      *string         `json:"review_by"`
	URLOrLocation *string         `json:"url_or_location"`
	Tags          json.RawMessage `json:"tags"`
}

type rawSection struct {
	SourceID  *string         `json:"source_id"`
	SectionID *string         `json:"section_id"`
	Heading   *string         `json:"heading"`
	Text      *string         `json:"text"`
	Tags      json.RawMessage `json:"tags"`
	Keywords  json.RawMessage `json:"keywords"`
}

// Validate decodes every record of raw, checks the corpus invariants and
// enforces the minimum-document gate on the number of sections.
func Validate(raw *loader.RawCorpus, minDocs int) (*kb.Corpus, *Report, error) {
	if minDocs < 0 {
		return nil, nil, fmt.Errorf("KB_MIN_DOCS must be a non-negative number (got: %d)", minDocs)
	}
	label := fileLabeler(raw.SourcesFile, raw.SectionsFile)
	var warnings []string

	sources := make([]kb.Source, 0, len(raw.Sources))
	for i, rec := range raw.Sources {
		at := label("sources", i)
		var rs rawSource
		if err := decodeObject(rec, &rs); err != nil {
			return nil, nil, malformed(at, "", fmt.Sprintf("must be an object with string fields (%v)", err))
		}
		tags, err := stringArray(rs.Tags, at, "tags", &warnings)
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, kb.Source{
			SourceID:      deref(rs.SourceID),
			Type:          deref(rs.Type),
			Title:         deref(rs.Title),
			Jurisdiction:  deref(rs.Jurisdiction),
			EffectiveDate: deref(rs.EffectiveDate),
			ReviewBy:      deref(rs.ReviewBy),
			URLOrLocation: deref(rs.URLOrLocation),
			Tags:          tags,
		})
	}

	sections := make([]kb.Section, 0, len(raw.Sections))
	for i, rec := range raw.Sections {
		at := label("sections", i)
		var rs rawSection
		if err := decodeObject(rec, &rs); err != nil {
			return nil, nil, malformed(at, "", fmt.Sprintf("must be an object with string fields (%v)", err))
		}
		if rs.Heading == nil {
			warnings = append(warnings, at+".heading is missing (recommended)")
		}
		tags, err := stringArray(rs.Tags, at, "tags", &warnings)
		if err != nil {
			return nil, nil, err
		}
		keywords, err := stringArray(rs.Keywords, at, "keywords", &warnings)
		if err != nil {
			return nil, nil, err
		}
		sections = append(sections, kb.Section{
			SourceID:  deref(rs.SourceID),
			SectionID: deref(rs.SectionID),
			Heading:   deref(rs.Heading),
			Text:      deref(rs.Text),
			Tags:      tags,
			Keywords:  keywords,
		})
	}

	if err := checkIntegrity(sources, sections, label); err != nil {
		return nil, nil, err
	}
	if len(sections) < minDocs {
		return nil, nil, &GateError{What: "sections", Count: len(sections), Min: minDocs}
	}

	corpus := &kb.Corpus{Manifest: raw.Manifest, Sources: sources, Sections: sections}
	return corpus, &Report{
		KBVersion: raw.Manifest.KBVersion,
		Sources:   len(sources),
		Sections:  len(sections),
		MinDocs:   minDocs,
		Warnings:  warnings,
	}, nil
}

// CheckIntegrity verifies typed records: unique non-blank source ids with a
// type and title, unique non-blank section ids, resolvable source references
// and non-empty section text.
func CheckIntegrity(sources []kb.Source, sections []kb.Section) error {
	return checkIntegrity(sources, sections, DefaultLabeler)
}

func checkIntegrity(sources []kb.Source, sections []kb.Section, label Labeler) error {
	known := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		at := label("sources", i)
		if strings.TrimSpace(s.SourceID) == "" {
			return integrity(at, "source_id", "is required")
		}
		if _, dup := known[s.SourceID]; dup {
			return integrity(at, "", "has duplicate source_id: "+s.SourceID)
		}
		if strings.TrimSpace(s.Type) == "" {
			return integrity(at, "type", "is required")
		}
		if strings.TrimSpace(s.Title) == "" {
			return integrity(at, "title", "is required")
		}
		known[s.SourceID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(sections))
	for i, sec := range sections {
		at := label("sections", i)
		if strings.TrimSpace(sec.SectionID) == "" {
			return integrity(at, "section_id", "is required")
		}
		at = fmt.Sprintf("%s (section_id %s)", at, sec.SectionID)
		if strings.TrimSpace(sec.SourceID) == "" {
			return integrity(at, "source_id", "is required")
		}
		if _, ok := known[sec.SourceID]; !ok {
			return integrity(at, "", "references missing source_id: "+sec.SourceID)
		}
		if _, dup := seen[sec.SectionID]; dup {
			return integrity(at, "", "has duplicate section_id: "+sec.SectionID)
		}
		seen[sec.SectionID] = struct{}{}
		if strings.TrimSpace(sec.Text) == "" {
			return integrity(at, "text", "is required (non-empty string)")
		}
	}
	return nil
}

func stringArray(raw json.RawMessage, at, field string, warnings *[]string) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, malformed(at, field, "must be an array of strings")
	}
	out, dropped := kb.NormalizeTags(values)
	if dropped > 0 {
		*warnings = append(*warnings, fmt.Sprintf("%s.%s had empty/whitespace entries that were ignored", at, field))
	}
	return out, nil
}

func decodeObject(rec json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(rec))
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("not an object")
	}
	return json.Unmarshal(rec, v)
}

func integrity(at, field, reason string) error {
	return &IntegrityError{At: at, Field: field, Reason: reason, Err: apperrors.ErrCorpusIntegrity}
}

func malformed(at, field, reason string) error {
	return &IntegrityError{At: at, Field: field, Reason: reason, Err: apperrors.ErrMalformedField}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
