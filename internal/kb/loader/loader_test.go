package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const manifest = `{"kb_version":"2025.06","files":{"sources":"sources.json","sections":"sections.json"}}`

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "manifest.json", manifest)
	writeFile(t, dir, "sources.json", `{"sources":[{"source_id":"POL1","type":"policy","title":"Hand Hygiene Policy"}]}`)
	writeFile(t, dir, "sections.json", `{"sections":[{"source_id":"POL1","section_id":"S1","text":"x"},{"source_id":"POL1","section_id":"S2","text":"y"}]}`)

	raw, err := LoadCorpus(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "2025.06", raw.Manifest.KBVersion)
	assert.Len(t, raw.Sources, 1)
	assert.Len(t, raw.Sections, 2)
	assert.Equal(t, filepath.Join(dir, "sections.json"), raw.SectionsFile)
}

func TestLoadCorpusErrors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		contains string
		sentinel error
	}{
		{
			name:     "missing manifest",
			files:    map[string]string{},
			contains: "KB manifest not found",
			sentinel: apperrors.ErrManifest,
		},
		{
			name:     "manifest without version",
			files:    map[string]string{"manifest.json": `{"files":{"sources":"a","sections":"b"}}`},
			contains: "kb_version is required",
			sentinel: apperrors.ErrManifest,
		},
		{
			name:     "manifest without files",
			files:    map[string]string{"manifest.json": `{"kb_version":"1"}`},
			contains: "files.sources and files.sections are required",
			sentinel: apperrors.ErrManifest,
		},
		{
			name:     "missing sections file",
			files:    map[string]string{"manifest.json": manifest, "sources.json": `{"sources":[]}`},
			contains: "Missing KB sections file",
			sentinel: apperrors.ErrManifest,
		},
		{
			name: "bad envelope",
			files: map[string]string{
				"manifest.json": manifest,
				"sources.json":  `[{"source_id":"POL1"}]`,
				"sections.json": `{"sections":[]}`,
			},
			contains: "sources.json must be { sources: [...] }",
			sentinel: apperrors.ErrMalformedField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, body := range tt.files {
				writeFile(t, dir, name, body)
			}
			_, err := LoadCorpus(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestLoadKB(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "manifest.json", manifest)
	writeFile(t, dir, "sources.json", `{"sources":[{"source_id":"POL1","type":"policy","title":"Hand Hygiene Policy","review_by":"2030-01-01"}]}`)
	writeFile(t, dir, "search_index.json", `{"kb_version":"2025.06","generated_at":"2025-06-01T00:00:00Z","docs":[{"id":"POL1::S1","source_id":"POL1","section_id":"S1","title":"Hand Hygiene Policy","type":"policy","tags":[],"text":"x"}]}`)

	loaded, err := LoadKB(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, "2030-01-01", loaded.Sources[0].ReviewBy)
	require.Len(t, loaded.Index.Docs, 1)
	assert.Equal(t, "POL1::S1", loaded.Index.Docs[0].ID)
}

func TestLoadArtifactRejectsMissingDocs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "search_index.json", `{"kb_version":"1"}`)
	_, err := LoadArtifact(filepath.Join(dir, "search_index.json"))
	require.Error(t, err)
}
