package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memoro-ai/memoro/internal/service"
)

// AskLogRepository stores ask logs for evaluation of answer quality over time.
type AskLogRepository struct {
	pool *pgxpool.Pool
}

func NewAskLogRepository(pool *pgxpool.Pool) *AskLogRepository {
	return &AskLogRepository{pool: pool}
}

func (r *AskLogRepository) Save(ctx context.Context, entry *service.AskLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ask_logs (id, question, answer, confidence, mode, citation_count, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		entry.Question,
		entry.Answer,
		string(entry.Confidence),
		string(entry.Mode),
		entry.CitationCount,
		entry.DurationMS,
		entry.CreatedAt,
	)
	return err
}
