// Package ingest loads the raw markdown corpus into immutable chunks.
// It preserves source text exactly as written; everything downstream cites
// these chunks and never mutates them.
package ingest

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/memoro-ai/memoro/internal/domain"
)

// ProfileFileName is the canonical identity record. It is ingested as a
// single profile chunk regardless of size.
const ProfileFileName = "identity.md"

var (
	isoTimestampRe   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[T\s](\d{2}:\d{2})`)
	monthTimestampRe = regexp.MustCompile(`([A-Za-z]+\s+\d{1,2},\s*\d{4})(?:\s+(\d{1,2}:\d{2}))?`)
)

// Loader reads a data directory of markdown files into chunks.
type Loader struct {
	dataDir string
	cfg     ChunkConfig
}

// NewLoader creates a Loader for the given data directory.
func NewLoader(dataDir string) *Loader {
	return &Loader{dataDir: dataDir, cfg: DefaultChunkConfig()}
}

// Load walks the data directory and parses every .md file. Files whose name
// suggests a chat transcript split per timestamped message; identity.md
// becomes the single profile chunk; everything else chunks by paragraph.
// Chunk ids are deterministic given source position.
func (l *Loader) Load() ([]*domain.Chunk, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(l.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk data dir %s: %w", l.dataDir, err)
	}
	sort.Strings(paths)

	chunks := make([]*domain.Chunk, 0)
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("ingest: skipping unreadable file %s: %v", path, err)
			continue
		}
		chunks = append(chunks, ParseFile(path, string(raw), l.cfg)...)
	}

	return chunks, nil
}

// ParseFile parses a single markdown file into chunks.
func ParseFile(path, text string, cfg ChunkConfig) []*domain.Chunk {
	name := strings.ToLower(filepath.Base(path))

	if name == ProfileFileName {
		return parseProfile(path, text)
	}
	if strings.Contains(name, "slack") || strings.Contains(name, "chat") {
		return parseMessages(path, text)
	}
	return parseDocument(path, text, cfg)
}

// parseProfile keeps the identity record whole as one chunk with a fixed id.
func parseProfile(path, text string) []*domain.Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return []*domain.Chunk{{
		ID:         "identity:profile",
		SourceFile: path,
		Text:       trimmed,
		Kind:       domain.ChunkKindProfile,
		StartLine:  1,
		EndLine:    strings.Count(text, "\n") + 1,
	}}
}

// parseMessages splits a chat transcript into one chunk per timestamped
// message. Lines without a timestamp continue the previous message.
func parseMessages(path, text string) []*domain.Chunk {
	stem := fileStem(path)
	lines := strings.Split(text, "\n")

	chunks := make([]*domain.Chunk, 0, 16)
	var curText strings.Builder
	var curTS *time.Time
	curStart := 0

	flush := func(endLine int) {
		body := strings.TrimSpace(curText.String())
		if body == "" {
			return
		}
		chunks = append(chunks, &domain.Chunk{
			ID:         fmt.Sprintf("%s:msg:%d", stem, len(chunks)),
			SourceFile: path,
			Text:       body,
			Timestamp:  curTS,
			Kind:       domain.ChunkKindMessage,
			StartLine:  curStart,
			EndLine:    endLine,
		})
	}

	for i, line := range lines {
		lineNum := i + 1
		if ts := ParseLineTimestamp(line); ts != nil {
			flush(lineNum - 1)
			curText.Reset()
			curText.WriteString(line)
			curTS = ts
			curStart = lineNum
			continue
		}
		if curText.Len() > 0 {
			curText.WriteString("\n")
			curText.WriteString(line)
		} else {
			curText.WriteString(line)
			curTS = nil
			curStart = lineNum
		}
	}
	flush(len(lines))

	return chunks
}

// parseDocument chunks a regular document by paragraphs with a size cap.
func parseDocument(path, text string, cfg ChunkConfig) []*domain.Chunk {
	stem := fileStem(path)

	chunks := make([]*domain.Chunk, 0, 4)
	for _, piece := range splitParagraphs(text, cfg) {
		chunks = append(chunks, &domain.Chunk{
			ID:         fmt.Sprintf("%s:chunk:%d", stem, len(chunks)),
			SourceFile: path,
			Text:       piece,
			Kind:       domain.ChunkKindDocument,
		})
	}
	return chunks
}

// ParseLineTimestamp extracts a timestamp from a line, accepting ISO-like
// forms ("2025-12-22 14:05") and month-name forms ("Dec 22, 2025 14:05").
func ParseLineTimestamp(line string) *time.Time {
	if m := isoTimestampRe.FindStringSubmatch(line); m != nil {
		if ts, err := time.Parse("2006-01-02T15:04", m[1]+"T"+m[2]); err == nil {
			return &ts
		}
	}

	if m := monthTimestampRe.FindStringSubmatch(line); m != nil {
		datePart := m[1]
		timePart := m[2]
		if timePart == "" {
			timePart = "00:00"
		}
		for _, layout := range []string{"January 2, 2006 15:04", "Jan 2, 2006 15:04"} {
			if ts, err := time.Parse(layout, datePart+" "+timePart); err == nil {
				return &ts
			}
		}
	}

	return nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
