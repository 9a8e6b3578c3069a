// Package filter applies facet selections and the review-date freshness gate
// to a ranked document list. Filtering only removes documents; it never
// reorders them.
package filter

import (
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
)

// Criteria is the set of post-search predicates. Empty facet lists mean "no
// restriction".
type Criteria struct {
	Types         []string `json:"type,omitempty"`
	Jurisdictions []string `json:"jurisdiction,omitempty"`
	Tags          []string `json:"tag,omitempty"`
	ApprovedOnly  bool     `json:"approved_only"`
}

// IsZero reports whether c removes nothing.
func (c Criteria) IsZero() bool {
	return len(c.Types) == 0 && len(c.Jurisdictions) == 0 && len(c.Tags) == 0 && !c.ApprovedOnly
}

// SourceLookup resolves a document's owning source for the review-date
// fallback. kb.SourceIndex implements it.
type SourceLookup interface {
	Source(id string) (kb.Source, bool)
}

// Apply keeps the documents of docs that pass, in order: type, jurisdiction,
// tag (any selected tag, case-insensitive) and, when ApprovedOnly is set, the
// freshness gate evaluated at now.
func Apply(docs []kb.IndexedDocument, c Criteria, sources SourceLookup, now time.Time) []kb.IndexedDocument {
	types := exactSet(c.Types)
	jurisdictions := exactSet(c.Jurisdictions)
	tags := foldedSet(c.Tags)

	out := make([]kb.IndexedDocument, 0, len(docs))
	for _, d := range docs {
		if len(types) > 0 && !has(types, d.Type) {
			continue
		}
		if len(jurisdictions) > 0 && !has(jurisdictions, d.Jurisdiction) {
			continue
		}
		if len(tags) > 0 && !anyTag(tags, d.Tags) {
			continue
		}
		if c.ApprovedOnly && IsExpired(EffectiveReviewBy(d, sources), now) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// EffectiveReviewBy is the document's review_by, or its source's when the
// document carries none.
func EffectiveReviewBy(d kb.IndexedDocument, sources SourceLookup) string {
	if v := strings.TrimSpace(d.ReviewBy); v != "" {
		return v
	}
	if sources == nil {
		return ""
	}
	if src, ok := sources.Source(d.SourceID); ok {
		return strings.TrimSpace(src.ReviewBy)
	}
	return ""
}

// IsExpired reports whether reviewBy falls on a calendar day strictly before
// now's UTC date. Empty or unparseable dates never expire.
func IsExpired(reviewBy string, now time.Time) bool {
	due, ok := ParseDate(reviewBy)
	if !ok {
		return false
	}
	return due.Before(dateOf(now))
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns the UTC calendar day.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return dateOf(t), true
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func exactSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func foldedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[strings.ToLower(v)] = struct{}{}
		}
	}
	return set
}

func has(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

func anyTag(selected map[string]struct{}, tags []string) bool {
	for _, t := range tags {
		if has(selected, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
