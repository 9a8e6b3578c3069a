// Package ledger records KB publications in PostgreSQL. Each successful
// kbctl build with --record appends one row, giving operators an audit
// trail of which KB versions were published, when, and from which artifact.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/LTC-Guidance-Search/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS kb_publications (
    id              BIGSERIAL PRIMARY KEY,
    kb_version      TEXT NOT NULL,
    effective_date  TEXT NOT NULL DEFAULT '',
    sources         INTEGER NOT NULL,
    docs            INTEGER NOT NULL,
    artifact_path   TEXT NOT NULL,
    artifact_sha256 TEXT NOT NULL,
    generated_at    TIMESTAMPTZ NOT NULL,
    published_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (kb_version, artifact_sha256)
)`

// Publication describes one published search-index artifact.
type Publication struct {
	ID             int64     `json:"id"`
	KBVersion      string    `json:"kb_version"`
	EffectiveDate  string    `json:"effective_date,omitempty"`
	Sources        int       `json:"sources"`
	Docs           int       `json:"docs"`
	ArtifactPath   string    `json:"artifact_path"`
	ArtifactSHA256 string    `json:"artifact_sha256"`
	GeneratedAt    time.Time `json:"generated_at"`
	PublishedAt    time.Time `json:"published_at"`
}

type Ledger struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Ledger {
	return &Ledger{
		db:     db,
		logger: slog.Default().With("component", "kb-ledger"),
	}
}

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	return l.db.EnsureSchema(ctx, "kb_publications", schema,
		`CREATE INDEX IF NOT EXISTS kb_publications_published_at_idx ON kb_publications (published_at DESC)`)
}

// Record inserts pub. Re-recording the same version and artifact checksum is
// a no-op that returns the existing row, so a retried build stays idempotent.
func (l *Ledger) Record(ctx context.Context, pub Publication) (*Publication, error) {
	if pub.KBVersion == "" {
		return nil, fmt.Errorf("recording publication: kb_version is required: %w", apperrors.ErrInvalidInput)
	}
	if pub.ArtifactSHA256 == "" {
		return nil, fmt.Errorf("recording publication: artifact checksum is required: %w", apperrors.ErrInvalidInput)
	}
	if pub.PublishedAt.IsZero() {
		pub.PublishedAt = time.Now().UTC()
	}

	var inserted bool
	err := l.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO kb_publications
			(kb_version, effective_date, sources, docs, artifact_path, artifact_sha256, generated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kb_version, artifact_sha256) DO NOTHING
		RETURNING id`,
			pub.KBVersion, pub.EffectiveDate, pub.Sources, pub.Docs,
			pub.ArtifactPath, pub.ArtifactSHA256, pub.GeneratedAt.UTC(), pub.PublishedAt,
		).Scan(&pub.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return tx.QueryRowContext(ctx,
				`SELECT id, published_at FROM kb_publications WHERE kb_version=$1 AND artifact_sha256=$2`,
				pub.KBVersion, pub.ArtifactSHA256,
			).Scan(&pub.ID, &pub.PublishedAt)
		}
		if err == nil {
			inserted = true
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recording publication %s: %w", pub.KBVersion, err)
	}
	if inserted {
		l.logger.Info("publication recorded", "id", pub.ID, "kb_version", pub.KBVersion, "docs", pub.Docs)
	} else {
		l.logger.Info("publication already recorded", "id", pub.ID, "kb_version", pub.KBVersion)
	}
	return &pub, nil
}

// List returns the most recent publications, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Publication, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.DB.QueryContext(ctx,
		`SELECT id, kb_version, effective_date, sources, docs, artifact_path, artifact_sha256, generated_at, published_at
		FROM kb_publications ORDER BY published_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing publications: %w", err)
	}
	defer rows.Close()

	pubs := make([]Publication, 0, limit)
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.ID, &p.KBVersion, &p.EffectiveDate, &p.Sources, &p.Docs,
			&p.ArtifactPath, &p.ArtifactSHA256, &p.GeneratedAt, &p.PublishedAt); err != nil {
			return nil, fmt.Errorf("scanning publication row: %w", err)
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}

// Latest returns nil, nil when nothing has been published.
func (l *Ledger) Latest(ctx context.Context) (*Publication, error) {
	pubs, err := l.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(pubs) == 0 {
		return nil, nil
	}
	return &pubs[0], nil
}
