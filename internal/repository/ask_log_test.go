//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/service"
	"github.com/memoro-ai/memoro/internal/testutil"
)

func TestAskLogRepository_Save(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewAskLogRepository(pool)

	entry := &service.AskLog{
		ID:            uuid.New(),
		Question:      "what did I ship in late December?",
		Answer:        "I shipped the batching change.\n\nSources: slack:msg:0",
		Confidence:    domain.ConfidenceHigh,
		Mode:          domain.AnswerModeFact,
		CitationCount: 2,
		DurationMS:    412,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.Save(ctx, entry))

	var (
		question      string
		confidence    string
		mode          string
		citationCount int
		durationMS    int64
	)
	err := pool.QueryRow(ctx,
		`SELECT question, confidence, mode, citation_count, duration_ms FROM ask_logs WHERE id = $1`,
		entry.ID,
	).Scan(&question, &confidence, &mode, &citationCount, &durationMS)
	require.NoError(t, err)

	assert.Equal(t, entry.Question, question)
	assert.Equal(t, "high", confidence)
	assert.Equal(t, "fact", mode)
	assert.Equal(t, 2, citationCount)
	assert.Equal(t, int64(412), durationMS)
}
