package publisher

import "time"

// PublishedEvent announces a new search-index artifact. Searchers that
// receive it reload their snapshot from KBDir.
type PublishedEvent struct {
	KBVersion      string    `json:"kb_version"`
	KBDir          string    `json:"kb_dir"`
	ArtifactPath   string    `json:"artifact_path"`
	ArtifactSHA256 string    `json:"artifact_sha256"`
	Docs           int       `json:"docs"`
	GeneratedAt    time.Time `json:"generated_at"`
	PublishedAt    time.Time `json:"published_at"`
}
