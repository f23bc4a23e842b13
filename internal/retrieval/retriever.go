// Package retrieval turns a parsed question into a ranked, budget-limited
// candidate set of chunks using coarse-index routing plus fine scoring.
package retrieval

import (
	"context"
	"log"
	"sort"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/store"
)

const (
	// DefaultTopK caps how many chunks the retriever returns.
	DefaultTopK = 6
	// DefaultContextBudget caps the summed text length of the selection.
	DefaultContextBudget = 3000
	// periodFanout is how many coarse periods seed the candidate set.
	periodFanout = 3

	// profileBoost lifts identity chunks when the question is personal.
	profileBoost = 0.5
	// timeRangeBoost lifts chunks inside an explicit time constraint.
	timeRangeBoost = 0.3
)

// Embedder is the slice of the model API retrieval needs.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// PeriodRouter narrows the search space to the most relevant time periods.
type PeriodRouter interface {
	FindRelevantPeriods(ctx context.Context, queryEmbedding []float32, n int) ([]*domain.PeriodSummary, error)
}

// Candidate pairs a chunk with its final relevance score.
type Candidate struct {
	Chunk *domain.Chunk
	Score float64
}

// Metadata describes how a retrieval turned out, for logging and debug output.
type Metadata struct {
	TotalCandidates int      `json:"total_candidates"`
	SelectedCount   int      `json:"selected_count"`
	TotalChars      int      `json:"total_chars"`
	RelevantPeriods []string `json:"relevant_periods"`
	Error           string   `json:"error,omitempty"`
}

// Result is the retriever's contract: a ranked selection plus metadata.
type Result struct {
	Candidates []Candidate
	Metadata   Metadata
}

// Config tunes retrieval bounds.
type Config struct {
	TopK          int
	ContextBudget int
}

// Retriever performs hierarchical retrieval over the chunk store.
type Retriever struct {
	chunks   *store.ChunkStore
	router   PeriodRouter
	embedder Embedder
	rules    PersonalRules
	cfg      Config
}

// NewRetriever creates a Retriever with default bounds and rules.
func NewRetriever(chunks *store.ChunkStore, router PeriodRouter, embedder Embedder) *Retriever {
	return NewRetrieverWithConfig(chunks, router, embedder, Config{})
}

// NewRetrieverWithConfig creates a Retriever with explicit bounds.
func NewRetrieverWithConfig(chunks *store.ChunkStore, router PeriodRouter, embedder Embedder, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &Retriever{
		chunks:   chunks,
		router:   router,
		embedder: embedder,
		rules:    DefaultPersonalRules(),
		cfg:      cfg,
	}
}

// Retrieve produces the ranked candidate set for a parsed question.
// Embedding failure is not an error: it yields an empty result that the
// verification gate downstream turns into a refusal.
func (r *Retriever) Retrieve(ctx context.Context, parsed domain.ParsedQuery) Result {
	queryEmbedding, err := r.embedder.GenerateEmbedding(ctx, parsed.Query)
	if err != nil {
		log.Printf("retrieval: query embedding failed: %v", err)
		return Result{Metadata: Metadata{Error: "embedding failed"}}
	}

	// Route through the coarse index first.
	periods, err := r.router.FindRelevantPeriods(ctx, queryEmbedding, periodFanout)
	if err != nil {
		log.Printf("retrieval: period routing failed: %v", err)
	}
	periodKeys := make([]string, 0, len(periods))
	for _, p := range periods {
		periodKeys = append(periodKeys, p.PeriodKey)
	}

	candidates := make([]*domain.Chunk, 0)
	seen := make(map[string]struct{})
	add := func(c *domain.Chunk) {
		if c == nil {
			return
		}
		if _, ok := seen[c.ID]; ok {
			return
		}
		seen[c.ID] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, p := range periods {
		for _, id := range p.ChunkIDs {
			add(r.chunks.ByID(id))
		}
	}

	// Explicit time constraints widen the seed beyond the routed periods.
	if parsed.Range != nil {
		for _, c := range r.chunks.ByTimeRange(parsed.Range.Start, parsed.Range.End) {
			add(c)
		}
	}

	// An empty seed falls back to the whole store so no question starves.
	if len(candidates) == 0 {
		for _, c := range r.chunks.All() {
			add(c)
		}
	}

	// Personal questions always see the canonical identity record,
	// regardless of how similarity ranked it.
	isPersonal := r.rules.Matches(parsed.Query)
	if isPersonal {
		for _, c := range r.chunks.ProfileChunks() {
			add(c)
		}
	}

	scored := r.score(ctx, queryEmbedding, candidates, parsed.Range, isPersonal)

	// Greedy selection: stop at the first violated bound.
	selected := make([]Candidate, 0, r.cfg.TopK)
	totalChars := 0
	for _, cand := range scored {
		if len(selected) >= r.cfg.TopK {
			break
		}
		if totalChars+len(cand.Chunk.Text) > r.cfg.ContextBudget {
			break
		}
		selected = append(selected, cand)
		totalChars += len(cand.Chunk.Text)
	}

	return Result{
		Candidates: selected,
		Metadata: Metadata{
			TotalCandidates: len(candidates),
			SelectedCount:   len(selected),
			TotalChars:      totalChars,
			RelevantPeriods: periodKeys,
		},
	}
}

// score batch-embeds all candidates and ranks them by cosine similarity plus
// flat boosts. A failed batch leaves every similarity at zero, preserving
// insertion order under the stable sort.
func (r *Retriever) score(ctx context.Context, queryEmbedding []float32, candidates []*domain.Chunk, timeRange *domain.TimeRange, isPersonal bool) []Candidate {
	embeddings := r.embedCandidates(ctx, candidates)

	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		emb, ok := embeddings[c.ID]
		if !ok {
			scored = append(scored, Candidate{Chunk: c})
			continue
		}

		score := domain.CosineSimilarity(queryEmbedding, emb)
		if isPersonal && c.Kind == domain.ChunkKindProfile {
			score += profileBoost
		}
		if timeRange != nil && c.Timestamp != nil && timeRange.Contains(*c.Timestamp) {
			score += timeRangeBoost
		}
		scored = append(scored, Candidate{Chunk: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func (r *Retriever) embedCandidates(ctx context.Context, candidates []*domain.Chunk) map[string][]float32 {
	if len(candidates) == 0 {
		return nil
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	embeddings, err := r.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil || len(embeddings) != len(candidates) {
		log.Printf("retrieval: candidate embedding failed: %v", err)
		return nil
	}

	byID := make(map[string][]float32, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = embeddings[i]
	}
	return byID
}
