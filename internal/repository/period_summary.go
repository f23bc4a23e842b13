package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/memoro-ai/memoro/internal/domain"
)

// PeriodSummaryRepository persists period summaries in Postgres. It backs the
// coarse index cache when a database is configured.
type PeriodSummaryRepository struct {
	pool *pgxpool.Pool
}

func NewPeriodSummaryRepository(pool *pgxpool.Pool) *PeriodSummaryRepository {
	return &PeriodSummaryRepository{pool: pool}
}

// Get returns the stored summary for a period, or nil when absent or when the
// stored fingerprint no longer matches.
func (r *PeriodSummaryRepository) Get(ctx context.Context, periodKey, fingerprint string) (*domain.PeriodSummary, error) {
	var (
		summary   domain.PeriodSummary
		embedding *pgvector.Vector
	)
	err := r.pool.QueryRow(ctx,
		`SELECT period_key, summary_text, chunk_ids, start_date, end_date, embedding, fingerprint
		 FROM period_summaries
		 WHERE period_key = $1 AND fingerprint = $2`,
		periodKey,
		fingerprint,
	).Scan(
		&summary.PeriodKey,
		&summary.SummaryText,
		&summary.ChunkIDs,
		&summary.StartDate,
		&summary.EndDate,
		&embedding,
		&summary.Fingerprint,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if embedding != nil {
		summary.Embedding = embedding.Slice()
	}
	return &summary, nil
}

// Put upserts a summary keyed by period.
func (r *PeriodSummaryRepository) Put(ctx context.Context, summary *domain.PeriodSummary) error {
	// A summary may have no embedding when embedding generation failed.
	var embedding any
	if len(summary.Embedding) > 0 {
		embedding = pgvector.NewVector(summary.Embedding)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO period_summaries (period_key, summary_text, chunk_ids, start_date, end_date, embedding, fingerprint, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (period_key) DO UPDATE SET
			summary_text = EXCLUDED.summary_text,
			chunk_ids = EXCLUDED.chunk_ids,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			embedding = EXCLUDED.embedding,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = EXCLUDED.updated_at`,
		summary.PeriodKey,
		summary.SummaryText,
		summary.ChunkIDs,
		summary.StartDate,
		summary.EndDate,
		embedding,
		summary.Fingerprint,
		time.Now().UTC(),
	)
	return err
}
