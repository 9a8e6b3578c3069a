// Package kb defines the knowledge-base record shapes shared by the build
// pipeline and the query-time engine: the manifest, Sources, Sections and the
// flattened IndexedDocument that the search index is built from.
package kb

import (
	"strings"
	"time"
)

// DefaultSearchIndexFile is the artifact name used when the manifest does not
// name one.
const DefaultSearchIndexFile = "search_index.json"

// Manifest is the entry point of a KB directory.
type Manifest struct {
	KBVersion     string        `json:"kb_version"`
	EffectiveDate string        `json:"effective_date,omitempty"`
	Approval      *Approval     `json:"approval,omitempty"`
	Files         ManifestFiles `json:"files"`
}

// Approval records who signed off on a KB version. It is informational and
// does not gate search.
type Approval struct {
	Status         string `json:"status"`
	ApprovedByRole string `json:"approved_by_role,omitempty"`
	ApprovedDate   string `json:"approved_date,omitempty"`
}

// ManifestFiles names the corpus files relative to the KB directory.
type ManifestFiles struct {
	Sources     string `json:"sources"`
	Sections    string `json:"sections"`
	SearchIndex string `json:"search_index,omitempty"`
}

// SearchIndexFile returns the artifact file name, falling back to the default.
func (m Manifest) SearchIndexFile() string {
	if strings.TrimSpace(m.Files.SearchIndex) == "" {
		return DefaultSearchIndexFile
	}
	return m.Files.SearchIndex
}

// Source is a top-level publication: a policy, regulation or guidance document.
type Source struct {
	SourceID      string   `json:"source_id"`
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Jurisdiction  string   `json:"jurisdiction,omitempty"`
	EffectiveDate string   `json:"effective_date,omitempty"`
	ReviewBy      string   `json:"review_by,omitempty"`
	URLOrLocation string   `json:"url_or_location,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// Section is a retrievable excerpt of exactly one Source.
type Section struct {
	SourceID  string   `json:"source_id"`
	SectionID string   `json:"section_id"`
	Heading   string   `json:"heading,omitempty"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// IndexedDocument is a Section denormalised with its Source's metadata. It is
// the unit the engine indexes and returns.
type IndexedDocument struct {
	ID            string   `json:"id"`
	SourceID      string   `json:"source_id"`
	SectionID     string   `json:"section_id"`
	Title         string   `json:"title"`
	Heading       string   `json:"heading"`
	Type          string   `json:"type"`
	Jurisdiction  string   `json:"jurisdiction"`
	EffectiveDate string   `json:"effective_date"`
	ReviewBy      string   `json:"review_by"`
	URLOrLocation string   `json:"url_or_location"`
	Tags          []string `json:"tags"`
	Text          string   `json:"text"`
}

// SearchIndex is the published artifact consumed by the query-time service.
type SearchIndex struct {
	KBVersion   string            `json:"kb_version"`
	GeneratedAt time.Time         `json:"generated_at"`
	Docs        []IndexedDocument `json:"docs"`
}

// Corpus is a validated, typed KB ready to be flattened.
type Corpus struct {
	Manifest Manifest
	Sources  []Source
	Sections []Section
}

// DocumentID builds the composite "{source_id}::{section_id}" identifier.
func DocumentID(sourceID, sectionID string) string {
	return sourceID + "::" + sectionID
}

// SourceIndex maps source ids to Sources.
type SourceIndex map[string]Source

// IndexSources builds a SourceIndex. Later duplicates overwrite earlier ones;
// callers validate uniqueness before relying on it.
func IndexSources(sources []Source) SourceIndex {
	idx := make(SourceIndex, len(sources))
	for _, s := range sources {
		idx[s.SourceID] = s
	}
	return idx
}

// Source implements the lookup used by the freshness gate.
func (s SourceIndex) Source(id string) (Source, bool) {
	src, ok := s[id]
	return src, ok
}
