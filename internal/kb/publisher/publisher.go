// Package publisher carries out the side effects of publishing a built KB:
// appending a row to the publication ledger and announcing the artifact on
// Kafka so running searchers reload it.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/internal/kb/ledger"
	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/resilience"
)

// Recorder persists publications. *ledger.Ledger implements it.
type Recorder interface {
	Record(ctx context.Context, pub ledger.Publication) (*ledger.Publication, error)
}

// Notifier announces events. *kafka.Producer implements it.
type Notifier interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Publisher struct {
	recorder Recorder
	notifier Notifier
	retry    resilience.RetryConfig
	now      func() time.Time
	logger   *slog.Logger
}

// New returns a Publisher. Either side effect may be nil to skip it.
func New(recorder Recorder, notifier Notifier) *Publisher {
	return &Publisher{
		recorder: recorder,
		notifier: notifier,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		now:    time.Now,
		logger: slog.Default().With("component", "kb-publisher"),
	}
}

// Request describes an artifact that passed the build gate.
type Request struct {
	KBVersion     string
	EffectiveDate string
	KBDir         string
	ArtifactPath  string
	Sources       int
	Docs          int
	GeneratedAt   time.Time
}

// Result reports what Publish did.
type Result struct {
	Publication *ledger.Publication
	Notified    bool
	Checksum    string
}

// Publish records the publication, then notifies. A ledger failure aborts
// before any searcher is told to reload.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	sum, err := FileChecksum(req.ArtifactPath)
	if err != nil {
		return nil, err
	}
	res := &Result{Checksum: sum}
	publishedAt := p.now().UTC()

	if p.recorder != nil {
		pub := ledger.Publication{
			KBVersion:      req.KBVersion,
			EffectiveDate:  req.EffectiveDate,
			Sources:        req.Sources,
			Docs:           req.Docs,
			ArtifactPath:   req.ArtifactPath,
			ArtifactSHA256: sum,
			GeneratedAt:    req.GeneratedAt,
			PublishedAt:    publishedAt,
		}
		err := resilience.Retry(ctx, "kb-ledger-record", p.retry, func() error {
			recorded, err := p.recorder.Record(ctx, pub)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				return resilience.Permanent(err)
			}
			if err != nil {
				return err
			}
			res.Publication = recorded
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("recording publication: %w", err)
		}
	}

	if p.notifier != nil {
		event := kafka.Event{
			Key: req.KBVersion,
			Value: PublishedEvent{
				KBVersion:      req.KBVersion,
				KBDir:          req.KBDir,
				ArtifactPath:   req.ArtifactPath,
				ArtifactSHA256: sum,
				Docs:           req.Docs,
				GeneratedAt:    req.GeneratedAt.UTC(),
				PublishedAt:    publishedAt,
			},
		}
		err := resilience.Retry(ctx, "kb-published-notify", p.retry, func() error {
			return p.notifier.Publish(ctx, event)
		})
		if err != nil {
			return res, fmt.Errorf("notifying searchers: %w", err)
		}
		res.Notified = true
	}

	p.logger.Info("kb published",
		"kb_version", req.KBVersion,
		"docs", req.Docs,
		"sha256", sum,
		"recorded", res.Publication != nil,
		"notified", res.Notified,
	)
	return res, nil
}

// FileChecksum returns the hex SHA-256 of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening artifact for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
