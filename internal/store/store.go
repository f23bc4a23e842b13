// Package store holds the immutable in-memory chunk collection that every
// pipeline stage reads and none mutates.
package store

import (
	"time"

	"github.com/memoro-ai/memoro/internal/domain"
)

// ChunkStore is an ordered, read-only collection of chunks. It is built once
// from ingestion output and safe for concurrent reads without locking.
type ChunkStore struct {
	chunks  []*domain.Chunk
	byID    map[string]*domain.Chunk
	profile []*domain.Chunk
}

// New builds a ChunkStore from ingestion output, preserving insertion order.
// Later duplicates of an id are dropped.
func New(chunks []*domain.Chunk) *ChunkStore {
	s := &ChunkStore{
		chunks: make([]*domain.Chunk, 0, len(chunks)),
		byID:   make(map[string]*domain.Chunk, len(chunks)),
	}

	for _, c := range chunks {
		if c == nil || c.ID == "" {
			continue
		}
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		s.chunks = append(s.chunks, c)
		s.byID[c.ID] = c
		if c.Kind == domain.ChunkKindProfile {
			s.profile = append(s.profile, c)
		}
	}

	return s
}

// All returns every chunk in insertion order.
func (s *ChunkStore) All() []*domain.Chunk {
	return s.chunks
}

// Len returns the number of chunks in the store.
func (s *ChunkStore) Len() int {
	return len(s.chunks)
}

// ByID returns the chunk with the given id, or nil.
func (s *ChunkStore) ByID(id string) *domain.Chunk {
	return s.byID[id]
}

// ByTimeRange returns all chunks whose timestamp falls inside [start, end],
// in insertion order. Chunks without a timestamp are excluded.
func (s *ChunkStore) ByTimeRange(start, end time.Time) []*domain.Chunk {
	results := make([]*domain.Chunk, 0)
	for _, c := range s.chunks {
		if c.InRange(start, end) {
			results = append(results, c)
		}
	}
	return results
}

// ProfileChunks returns the chunks of the canonical identity record.
func (s *ChunkStore) ProfileChunks() []*domain.Chunk {
	return s.profile
}

// Timestamped returns all chunks that carry a timestamp, in insertion order.
func (s *ChunkStore) Timestamped() []*domain.Chunk {
	results := make([]*domain.Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if c.HasTimestamp() {
			results = append(results, c)
		}
	}
	return results
}

// Fingerprint is a content hash over all chunk ids, used to detect that the
// store backing a cached index has changed.
func (s *ChunkStore) Fingerprint() string {
	ids := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		ids[i] = c.ID
	}
	return domain.PeriodFingerprint(ids)
}
