package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/builder"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/loader"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
)

// Snapshot is one loaded KB version: its documents, sources and engine.
// Nothing in a Snapshot changes after NewSnapshot returns.
type Snapshot struct {
	KBVersion   string
	GeneratedAt time.Time
	LoadedAt    time.Time
	Manifest    kb.Manifest
	Engine      *Engine
	Docs        []kb.IndexedDocument
	Sources     kb.SourceIndex

	byID map[string]int
}

// NewSnapshot indexes loaded. Duplicate document ids in the artifact are
// rejected.
func NewSnapshot(loaded *loader.KB, opts Options) (*Snapshot, error) {
	if loaded == nil || loaded.Index == nil {
		return nil, fmt.Errorf("building snapshot: no search index loaded")
	}
	docs := loaded.Index.Docs
	byID := make(map[string]int, len(docs))
	for i, d := range docs {
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("building snapshot: %w: duplicate document id %s in search index",
				apperrors.ErrCorpusIntegrity, d.ID)
		}
		byID[d.ID] = i
	}
	version := loaded.Index.KBVersion
	if version == "" {
		version = loaded.Manifest.KBVersion
	}
	return &Snapshot{
		KBVersion:   version,
		GeneratedAt: loaded.Index.GeneratedAt,
		LoadedAt:    time.Now().UTC(),
		Manifest:    loaded.Manifest,
		Engine:      NewEngine(docs, opts),
		Docs:        docs,
		Sources:     kb.IndexSources(loaded.Sources),
		byID:        byID,
	}, nil
}

// Doc returns the document with id.
func (s *Snapshot) Doc(id string) (kb.IndexedDocument, bool) {
	i, ok := s.byID[id]
	if !ok {
		return kb.IndexedDocument{}, false
	}
	return s.Docs[i], true
}

// Holder publishes the current Snapshot. Readers call Current and keep using
// the snapshot they got for the rest of the request.
type Holder struct {
	current atomic.Pointer[Snapshot]
	// reloadMu serialises reloads; readers never take it.
	reloadMu sync.Mutex
	opts     Options
	minDocs  int
	logger   *slog.Logger
}

// NewHolder returns an empty Holder. minDocs gates every reload.
func NewHolder(opts Options, minDocs int) *Holder {
	return &Holder{
		opts:    opts,
		minDocs: minDocs,
		logger:  slog.Default().With("component", "kb-holder"),
	}
}

// Current returns the live snapshot, or nil before the first load.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.current.Swap(s)
}

// Ready reports whether a snapshot has been published.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Reload loads dir, builds a new snapshot off to the side and swaps it in.
// On any failure the previous snapshot stays live.
func (h *Holder) Reload(ctx context.Context, dir string) (*Snapshot, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	start := time.Now()
	loaded, err := loader.LoadKB(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("reloading KB from %s: %w", dir, err)
	}
	if err := builder.CheckGate(len(loaded.Index.Docs), h.minDocs); err != nil {
		return nil, fmt.Errorf("reloading KB from %s: %w", dir, err)
	}
	snap, err := NewSnapshot(loaded, h.opts)
	if err != nil {
		return nil, err
	}
	prev := h.Swap(snap)
	attrs := []any{
		"kb_version", snap.KBVersion,
		"docs", len(snap.Docs),
		"terms", snap.Engine.TermCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.KBVersion)
	}
	h.logger.Info("KB snapshot swapped", attrs...)
	return snap, nil
}
