// Package coarse builds and queries the period-summary index that routes
// retrieval to the right slice of history before any chunk is scored.
// The index is lossy on purpose.
package coarse

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/store"
	"github.com/memoro-ai/memoro/internal/telemetry"
)

const (
	// maxSummaryChunks limits how many member chunks feed a period summary.
	maxSummaryChunks = 20
	// maxSummaryInputChars caps the concatenated summary input.
	maxSummaryInputChars = 3000
	// chunkSeparator joins member chunk texts in the summary input.
	chunkSeparator = "\n\n---\n\n"

	summaryTemperature = 0.3
)

// ModelClient is the slice of the model API the index needs.
type ModelClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error)
}

// Index groups timestamped chunks into calendar-week periods, each with a
// generated summary and its embedding. Population is lazy: the first caller
// builds the index behind a single-writer guard while later callers wait.
type Index struct {
	chunks *store.ChunkStore
	model  ModelClient
	cache  Cache

	mu        sync.Mutex
	ready     bool
	summaries []*domain.PeriodSummary
}

// NewIndex creates an unpopulated Index over the given store.
func NewIndex(chunks *store.ChunkStore, model ModelClient, cache Cache) *Index {
	if cache == nil {
		cache = NopCache{}
	}
	return &Index{chunks: chunks, model: model, cache: cache}
}

// Ensure populates the index if it has not been built yet.
func (ix *Index) Ensure(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.ready {
		return nil
	}
	return ix.populate(ctx)
}

// Refresh rebuilds the index unconditionally. Cached periods whose member
// ids are unchanged are reused; stale ones are regenerated.
func (ix *Index) Refresh(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.populate(ctx)
}

// Periods returns all period summaries ordered by period key.
func (ix *Index) Periods(ctx context.Context) ([]*domain.PeriodSummary, error) {
	if err := ix.Ensure(ctx); err != nil {
		return nil, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]*domain.PeriodSummary, len(ix.summaries))
	copy(out, ix.summaries)
	return out, nil
}

// FindRelevantPeriods ranks periods by cosine similarity between the query
// embedding and each period's summary embedding, returning the top n.
// Periods without an embedding score zero.
func (ix *Index) FindRelevantPeriods(ctx context.Context, queryEmbedding []float32, n int) ([]*domain.PeriodSummary, error) {
	periods, err := ix.Periods(ctx)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 || n <= 0 {
		return nil, nil
	}

	type scored struct {
		score  float64
		period *domain.PeriodSummary
	}
	ranked := make([]scored, 0, len(periods))
	for _, p := range periods {
		ranked = append(ranked, scored{
			score:  domain.CosineSimilarity(queryEmbedding, p.Embedding),
			period: p,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]*domain.PeriodSummary, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].period
	}
	return out, nil
}

// ChunkIDsFor collects the member chunk ids of the given periods, in order.
func ChunkIDsFor(periods []*domain.PeriodSummary) []string {
	ids := make([]string, 0)
	for _, p := range periods {
		ids = append(ids, p.ChunkIDs...)
	}
	return ids
}

// populate builds every period summary. Callers must hold ix.mu.
func (ix *Index) populate(ctx context.Context) error {
	groups := make(map[string][]*domain.Chunk)
	keys := make([]string, 0)

	for _, c := range ix.chunks.Timestamped() {
		key := domain.PeriodKeyFor(*c.Timestamp)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], c)
	}
	sort.Strings(keys)

	summaries := make([]*domain.PeriodSummary, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		summaries = append(summaries, ix.buildPeriod(ctx, key, groups[key]))
	}

	ix.summaries = summaries
	ix.ready = true
	return nil
}

// buildPeriod produces one period summary, reusing the cache when the
// member ids are unchanged. Model failures degrade to a placeholder summary
// with no embedding; they never fail the build. Only fully built summaries
// reach the cache, so Refresh retries the failed ones.
func (ix *Index) buildPeriod(ctx context.Context, key string, members []*domain.Chunk) *domain.PeriodSummary {
	ids := make([]string, len(members))
	for i, c := range members {
		ids[i] = c.ID
	}
	fingerprint := domain.PeriodFingerprint(ids)

	ctx, span := telemetry.StartSpan(ctx, "coarse.build_period", telemetry.SpanAttributes{
		PeriodKey: key,
		Operation: "summarize",
	})
	defer span.End()

	if cached, err := ix.cache.Get(ctx, key, fingerprint); err != nil {
		log.Printf("coarse: cache read failed for period %s: %v", key, err)
	} else if cached != nil {
		return cached
	}

	summary := &domain.PeriodSummary{
		PeriodKey:   key,
		ChunkIDs:    ids,
		StartDate:   *members[0].Timestamp,
		EndDate:     *members[0].Timestamp,
		Fingerprint: fingerprint,
	}
	for _, c := range members {
		if c.Timestamp.Before(summary.StartDate) {
			summary.StartDate = *c.Timestamp
		}
		if c.Timestamp.After(summary.EndDate) {
			summary.EndDate = *c.Timestamp
		}
	}

	text, err := ix.model.GenerateText(ctx, summaryPrompt(members), openai.CompletionOptions{
		Temperature: summaryTemperature,
	})
	if err != nil {
		log.Printf("coarse: summary generation failed for period %s: %v", key, err)
		summary.SummaryText = domain.PlaceholderSummary
		return summary
	}
	summary.SummaryText = text

	embedding, err := ix.model.GenerateEmbedding(ctx, text)
	if err != nil {
		// Not cached: an embedding-less summary scores zero in routing,
		// and a cached one would match its fingerprint on every rebuild.
		// Refresh retries the whole period instead.
		log.Printf("coarse: summary embedding failed for period %s: %v", key, err)
		return summary
	}
	summary.Embedding = embedding

	if err := ix.cache.Put(ctx, summary); err != nil {
		log.Printf("coarse: cache write failed for period %s: %v", key, err)
	}
	return summary
}

func summaryPrompt(members []*domain.Chunk) string {
	take := members
	if len(take) > maxSummaryChunks {
		take = take[:maxSummaryChunks]
	}
	texts := make([]string, len(take))
	for i, c := range take {
		texts[i] = c.Text
	}
	combined := strings.Join(texts, chunkSeparator)
	if len(combined) > maxSummaryInputChars {
		combined = combined[:maxSummaryInputChars]
	}

	return fmt.Sprintf(
		"Summarize the following week's messages and activities in 2-3 concise sentences. "+
			"Focus on topics, decisions, and key work mentioned. Do not invent details.\n\n%s",
		combined,
	)
}
