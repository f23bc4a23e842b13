package coarse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/memoro-ai/memoro/internal/domain"
)

// Cache persists period summaries between runs so the index does not
// re-generate them on every start. A Get is a hit only when the stored
// fingerprint matches the current member chunk ids.
type Cache interface {
	Get(ctx context.Context, periodKey, fingerprint string) (*domain.PeriodSummary, error)
	Put(ctx context.Context, summary *domain.PeriodSummary) error
}

const cacheFileName = "period_summaries.json"

type cacheEntry struct {
	PeriodKey   string    `json:"period_key"`
	SummaryText string    `json:"summary_text"`
	ChunkIDs    []string  `json:"chunk_ids"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Fingerprint string    `json:"fingerprint"`
}

// FSCache is a JSON-file Cache under a local cache directory. It is the
// fallback used when no database is configured.
type FSCache struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries map[string]*cacheEntry
}

// NewFSCache creates a file cache rooted at cacheDir.
func NewFSCache(cacheDir string) *FSCache {
	return &FSCache{
		path:    filepath.Join(cacheDir, cacheFileName),
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the cached summary for a period, or nil when absent or stale.
func (c *FSCache) Get(_ context.Context, periodKey, fingerprint string) (*domain.PeriodSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return nil, err
	}

	entry, ok := c.entries[periodKey]
	if !ok || entry.Fingerprint != fingerprint {
		return nil, nil
	}
	return &domain.PeriodSummary{
		PeriodKey:   entry.PeriodKey,
		SummaryText: entry.SummaryText,
		ChunkIDs:    entry.ChunkIDs,
		StartDate:   entry.StartDate,
		EndDate:     entry.EndDate,
		Embedding:   entry.Embedding,
		Fingerprint: entry.Fingerprint,
	}, nil
}

// Put stores a summary and rewrites the cache file.
func (c *FSCache) Put(_ context.Context, summary *domain.PeriodSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(); err != nil {
		return err
	}

	c.entries[summary.PeriodKey] = &cacheEntry{
		PeriodKey:   summary.PeriodKey,
		SummaryText: summary.SummaryText,
		ChunkIDs:    summary.ChunkIDs,
		StartDate:   summary.StartDate,
		EndDate:     summary.EndDate,
		Embedding:   summary.Embedding,
		Fingerprint: summary.Fingerprint,
	}
	return c.save()
}

// load reads the cache file once. A missing file is an empty cache; a
// corrupt file is discarded rather than failing the pipeline.
func (c *FSCache) load() error {
	if c.loaded {
		return nil
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read summary cache: %w", err)
	}

	var entries map[string]*cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	c.entries = entries
	return nil
}

func (c *FSCache) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary cache: %w", err)
	}
	return nil
}

// NopCache is a Cache that stores nothing. Every Get is a miss.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string, string) (*domain.PeriodSummary, error) {
	return nil, nil
}

// Put discards the summary.
func (NopCache) Put(context.Context, *domain.PeriodSummary) error { return nil }
