package domain

import (
	"fmt"
	"time"
)

// ChunkKind represents the kind of source a chunk was cut from
type ChunkKind string

const (
	ChunkKindProfile  ChunkKind = "profile"
	ChunkKindMessage  ChunkKind = "message"
	ChunkKindDocument ChunkKind = "document"
)

// Chunk is an immutable unit of source text. Text is never altered after
// creation; the ID is deterministic given the source position.
type Chunk struct {
	ID         string
	SourceFile string
	Text       string
	Timestamp  *time.Time
	Kind       ChunkKind
	StartLine  int
	EndLine    int
}

// HasTimestamp reports whether the chunk carries a timestamp.
func (c *Chunk) HasTimestamp() bool {
	return c != nil && c.Timestamp != nil
}

// InRange reports whether the chunk's timestamp falls inside [start, end].
// Chunks without a timestamp are never in range.
func (c *Chunk) InRange(start, end time.Time) bool {
	if !c.HasTimestamp() {
		return false
	}
	ts := *c.Timestamp
	return !ts.Before(start) && !ts.After(end)
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.SourceFile == "" {
		return fmt.Errorf("chunk SourceFile is required")
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if !isValidChunkKind(c.Kind) {
		return fmt.Errorf("chunk Kind is invalid: %s", c.Kind)
	}

	return nil
}

// isValidChunkKind checks if a ChunkKind is valid
func isValidChunkKind(k ChunkKind) bool {
	switch k {
	case ChunkKindProfile, ChunkKindMessage, ChunkKindDocument:
		return true
	}
	return false
}
