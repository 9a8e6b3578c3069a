// Package loader reads a KB directory from disk: the manifest, the raw source
// and section records for validation, and the published search-index artifact
// for the query-time service.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

// ManifestFile is the fixed manifest name inside a KB directory.
const ManifestFile = "manifest.json"

// RawCorpus holds the undecoded records so the validator can report shape
// problems per record.
type RawCorpus struct {
	Dir          string
	Manifest     kb.Manifest
	SourcesFile  string
	SectionsFile string
	Sources      []json.RawMessage
	Sections     []json.RawMessage
}

// KB is what the query-time service needs: the manifest, the sources (for
// review-date fallback) and the published artifact.
type KB struct {
	Dir      string
	Manifest kb.Manifest
	Sources  []kb.Source
	Index    *kb.SearchIndex
}

// LoadManifest locates and checks manifest.json in dir.
func LoadManifest(dir string) (kb.Manifest, error) {
	var m kb.Manifest
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, apperrors.Newf(apperrors.ErrManifest, http.StatusUnprocessableEntity, "KB manifest not found: %s", path)
		}
		return m, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, apperrors.Newf(apperrors.ErrManifest, http.StatusUnprocessableEntity, "%s must be an object: %v", ManifestFile, err)
	}
	if strings.TrimSpace(m.KBVersion) == "" {
		return m, apperrors.New(apperrors.ErrManifest, http.StatusUnprocessableEntity, "manifest.json: kb_version is required (string)")
	}
	if strings.TrimSpace(m.Files.Sources) == "" || strings.TrimSpace(m.Files.Sections) == "" {
		return m, apperrors.New(apperrors.ErrManifest, http.StatusUnprocessableEntity, "manifest.json: files.sources and files.sections are required (strings)")
	}
	return m, nil
}

// LoadCorpus reads the manifest and both record files. The two files are read
// concurrently; the first failure cancels the other.
func LoadCorpus(ctx context.Context, dir string) (*RawCorpus, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	raw := &RawCorpus{
		Dir:          dir,
		Manifest:     m,
		SourcesFile:  filepath.Join(dir, m.Files.Sources),
		SectionsFile: filepath.Join(dir, m.Files.Sections),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := readEnvelope(gctx, raw.SourcesFile, "sources", "Missing KB sources file")
		raw.Sources = recs
		return err
	})
	g.Go(func() error {
		recs, err := readEnvelope(gctx, raw.SectionsFile, "sections", "Missing KB sections file")
		raw.Sections = recs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return raw, nil
}

// LoadArtifact reads a search-index artifact.
func LoadArtifact(path string) (*kb.SearchIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search index %s: %w", path, err)
	}
	var idx kb.SearchIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing search index %s: %w", path, err)
	}
	if idx.Docs == nil {
		return nil, apperrors.Newf(apperrors.ErrManifest, http.StatusUnprocessableEntity, "%s must be { kb_version, generated_at, docs: [...] }", filepath.Base(path))
	}
	return &idx, nil
}

// LoadKB loads everything the query-time service serves from: manifest,
// typed sources and the artifact named by the manifest.
func LoadKB(ctx context.Context, dir string) (*KB, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	out := &KB{Dir: dir, Manifest: m}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := readEnvelope(gctx, filepath.Join(dir, m.Files.Sources), "sources", "Missing KB sources file")
		if err != nil {
			return err
		}
		sources := make([]kb.Source, 0, len(recs))
		for i, rec := range recs {
			var s kb.Source
			if err := json.Unmarshal(rec, &s); err != nil {
				return fmt.Errorf("decoding %s:sources[%d]: %w", m.Files.Sources, i, err)
			}
			sources = append(sources, s)
		}
		out.Sources = sources
		return nil
	})
	g.Go(func() error {
		idx, err := LoadArtifact(filepath.Join(dir, m.SearchIndexFile()))
		out.Index = idx
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readEnvelope(ctx context.Context, path, key, missingMsg string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Newf(apperrors.ErrManifest, http.StatusUnprocessableEntity, "%s: %s", missingMsg, path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var envelope map[string]json.RawMessage
	shapeErr := apperrors.Newf(apperrors.ErrMalformedField, http.StatusUnprocessableEntity, "%s must be { %s: [...] }", filepath.Base(path), key)
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, shapeErr
	}
	body, ok := envelope[key]
	if !ok {
		return nil, shapeErr
	}
	var recs []json.RawMessage
	if err := json.Unmarshal(body, &recs); err != nil || recs == nil {
		return nil, shapeErr
	}
	return recs, nil
}
