package ingest

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how documents are cut into chunks.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for document chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1000,
		MinChars:  200,
		MaxChunks: 200,
	}
}

// splitParagraphs cuts text into paragraph groups capped at cfg.MaxChars,
// preferring to break at paragraph boundaries and falling back to word
// boundaries for oversized paragraphs.
func splitParagraphs(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	chunks := make([]string, 0, 8)
	current := ""

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current = ""
	}

	for _, para := range strings.Split(clean, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		if len(current)+len(para) > cfg.MaxChars && current != "" {
			flush()
		}

		if len(para) > cfg.MaxChars {
			for _, piece := range splitAtWords(para, cfg) {
				chunks = append(chunks, piece)
				if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
					break
				}
			}
			continue
		}

		if current == "" {
			current = para
		} else {
			current += "\n\n" + para
		}
	}
	flush()

	if cfg.MaxChunks > 0 && len(chunks) > cfg.MaxChunks {
		chunks = chunks[:cfg.MaxChunks]
	}
	return chunks
}

// splitAtWords cuts a single oversized block at whitespace boundaries.
func splitAtWords(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	pieces := make([]string, 0, 4)
	start := 0

	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		start = end
	}

	return pieces
}
