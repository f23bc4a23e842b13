package coarse

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/store"
)

// MockModelClient is a mock implementation of ModelClient
type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockModelClient) GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func ts(day, hour int) *time.Time {
	t := time.Date(2025, 12, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func weekStore(t *testing.T) *store.ChunkStore {
	t.Helper()
	return store.New([]*domain.Chunk{
		{ID: "slack:msg:0", Text: "deploy kicked off", Timestamp: ts(22, 9), Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:1", Text: "deploy green", Timestamp: ts(23, 10), Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:2", Text: "retro scheduled", Timestamp: ts(30, 9), Kind: domain.ChunkKindMessage},
		{ID: "identity:profile", Text: "I live in Lisbon", Kind: domain.ChunkKindProfile},
	})
}

func TestIndexEnsureGroupsByWeek(t *testing.T) {
	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("week summary", nil)
	model.On("GenerateEmbedding", mock.Anything, "week summary").Return([]float32{1, 0}, nil)

	ix := NewIndex(weekStore(t), model, nil)
	periods, err := ix.Periods(context.Background())
	require.NoError(t, err)

	// Dec 22-23 and Dec 30 2025 fall in different ISO weeks; the profile
	// chunk has no timestamp and joins no period.
	require.Len(t, periods, 2)
	assert.Equal(t, "2025-W52", periods[0].PeriodKey)
	assert.Equal(t, []string{"slack:msg:0", "slack:msg:1"}, periods[0].ChunkIDs)
	assert.Equal(t, 22, periods[0].StartDate.Day())
	assert.Equal(t, 23, periods[0].EndDate.Day())
	assert.Equal(t, "2026-W01", periods[1].PeriodKey)

	model.AssertNumberOfCalls(t, "GenerateText", 2)
}

func TestIndexGenerationFailure(t *testing.T) {
	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model unavailable"))

	ix := NewIndex(weekStore(t), model, nil)
	periods, err := ix.Periods(context.Background())
	require.NoError(t, err)
	require.Len(t, periods, 2)

	for _, p := range periods {
		assert.Equal(t, domain.PlaceholderSummary, p.SummaryText)
		assert.Nil(t, p.Embedding)
	}
	// No summary text to embed.
	model.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
}

func TestIndexEmbeddingFailure(t *testing.T) {
	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("week summary", nil)
	model.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	ix := NewIndex(weekStore(t), model, nil)
	periods, err := ix.Periods(context.Background())
	require.NoError(t, err)
	for _, p := range periods {
		assert.Equal(t, "week summary", p.SummaryText)
		assert.Nil(t, p.Embedding)
	}
}

func TestRefreshRetriesFailedEmbedding(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("week summary", nil)
	model.On("GenerateEmbedding", mock.Anything, "week summary").
		Return(nil, errors.New("rate limited")).Times(2)
	model.On("GenerateEmbedding", mock.Anything, "week summary").Return([]float32{1, 0}, nil)

	ix := NewIndex(weekStore(t), model, NewFSCache(dir))
	require.NoError(t, ix.Ensure(ctx))

	periods, err := ix.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	for _, p := range periods {
		assert.Nil(t, p.Embedding)
	}

	// Embedding-less summaries must not be cached; the rebuild regenerates
	// them now that the model recovered.
	require.NoError(t, ix.Refresh(ctx))
	periods, err = ix.Periods(ctx)
	require.NoError(t, err)
	for _, p := range periods {
		assert.Equal(t, []float32{1, 0}, p.Embedding)
	}
	model.AssertNumberOfCalls(t, "GenerateText", 4)
}

func TestFindRelevantPeriods(t *testing.T) {
	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("week summary", nil)
	// Periods build in key order: first the December week, then the
	// year-boundary week.
	model.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil).Once()
	model.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0, 1}, nil).Once()

	ix := NewIndex(weekStore(t), model, nil)

	t.Run("ranks by similarity", func(t *testing.T) {
		got, err := ix.FindRelevantPeriods(context.Background(), []float32{0, 1}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2026-W01", got[0].PeriodKey)
	})

	t.Run("caps at available periods", func(t *testing.T) {
		got, err := ix.FindRelevantPeriods(context.Background(), []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("zero n", func(t *testing.T) {
		got, err := ix.FindRelevantPeriods(context.Background(), []float32{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestFindRelevantPeriodsEmptyStore(t *testing.T) {
	ix := NewIndex(store.New(nil), new(MockModelClient), nil)
	got, err := ix.FindRelevantPeriods(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunkIDsFor(t *testing.T) {
	ids := ChunkIDsFor([]*domain.PeriodSummary{
		{ChunkIDs: []string{"a", "b"}},
		{ChunkIDs: []string{"c"}},
	})
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Empty(t, ChunkIDsFor(nil))
}

func TestFSCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := NewFSCache(dir)
	ctx := context.Background()

	summary := &domain.PeriodSummary{
		PeriodKey:   "2025-W52",
		SummaryText: "shipped the deploy",
		ChunkIDs:    []string{"a", "b"},
		StartDate:   *ts(22, 9),
		EndDate:     *ts(23, 10),
		Embedding:   []float32{0.5, 0.5},
		Fingerprint: domain.PeriodFingerprint([]string{"a", "b"}),
	}
	require.NoError(t, cache.Put(ctx, summary))

	// Fresh cache instance reads from disk.
	reread := NewFSCache(dir)
	got, err := reread.Get(ctx, "2025-W52", summary.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "shipped the deploy", got.SummaryText)
	assert.Equal(t, []float32{0.5, 0.5}, got.Embedding)

	t.Run("stale fingerprint misses", func(t *testing.T) {
		got, err := reread.Get(ctx, "2025-W52", domain.PeriodFingerprint([]string{"a", "b", "c"}))
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unknown period misses", func(t *testing.T) {
		got, err := reread.Get(ctx, "2024-W01", summary.Fingerprint)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestIndexUsesCache(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := new(MockModelClient)
	first.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("week summary", nil)
	first.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	ix := NewIndex(weekStore(t), first, NewFSCache(dir))
	_, err := ix.Periods(ctx)
	require.NoError(t, err)
	first.AssertNumberOfCalls(t, "GenerateText", 2)

	// A second index over the same store serves entirely from cache.
	second := new(MockModelClient)
	ix2 := NewIndex(weekStore(t), second, NewFSCache(dir))
	periods, err := ix2.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "week summary", periods[0].SummaryText)
	second.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)

	// Changing a period's membership invalidates only that period.
	changed := store.New([]*domain.Chunk{
		{ID: "slack:msg:0", Text: "deploy kicked off", Timestamp: ts(22, 9), Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:1", Text: "deploy green", Timestamp: ts(23, 10), Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:2", Text: "retro scheduled", Timestamp: ts(30, 9), Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:3", Text: "retro notes posted", Timestamp: ts(30, 11), Kind: domain.ChunkKindMessage},
	})
	third := new(MockModelClient)
	third.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("regenerated", nil)
	third.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0, 1}, nil)

	ix3 := NewIndex(changed, third, NewFSCache(dir))
	periods, err = ix3.Periods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "week summary", periods[0].SummaryText)
	assert.Equal(t, "regenerated", periods[1].SummaryText)
	third.AssertNumberOfCalls(t, "GenerateText", 1)
}

func TestIndexRefreshRebuilds(t *testing.T) {
	model := new(MockModelClient)
	model.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).Return("week summary", nil)
	model.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)

	ix := NewIndex(weekStore(t), model, nil)
	require.NoError(t, ix.Ensure(context.Background()))
	require.NoError(t, ix.Refresh(context.Background()))

	// Without a cache, refresh regenerates every period.
	model.AssertNumberOfCalls(t, "GenerateText", 4)
}

func TestSummaryPromptCaps(t *testing.T) {
	members := make([]*domain.Chunk, 30)
	for i := range members {
		members[i] = &domain.Chunk{ID: fmt.Sprintf("c%d", i), Text: "some activity text", Timestamp: ts(22, 9)}
	}
	prompt := summaryPrompt(members)
	assert.LessOrEqual(t, len(prompt), maxSummaryInputChars+200)
	assert.Contains(t, prompt, "Do not invent details")
}
