package kb

import "strings"

// NormalizeTags trims every entry and drops blanks. It returns the cleaned
// list and how many entries were dropped.
func NormalizeTags(tags []string) ([]string, int) {
	if len(tags) == 0 {
		return nil, 0
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out, len(tags) - len(out)
}

// UnionTags returns the deduplicated union of the given lists in first-seen
// order. Case is preserved; entries are expected to be normalised already.
func UnionTags(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, l := range lists {
		for _, t := range l {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
