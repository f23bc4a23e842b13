package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PeriodSummary is a generated natural-language digest of all chunks in a
// time bucket, used for coarse retrieval routing. A summary with a nil
// embedding scores zero similarity and is effectively excluded from ranking.
type PeriodSummary struct {
	PeriodKey   string
	SummaryText string
	ChunkIDs    []string
	StartDate   time.Time
	EndDate     time.Time
	Embedding   []float32
	// Fingerprint is a content hash of the member chunk ids. Cache entries
	// whose fingerprint no longer matches the store are regenerated.
	Fingerprint string
}

// PlaceholderSummary is stored when summary generation fails for a period.
const PlaceholderSummary = "summary generation failed"

// PeriodFingerprint computes the content hash for a period's member chunk
// ids. The ids are sorted first so the hash is independent of grouping order.
func PeriodFingerprint(chunkIDs []string) string {
	sorted := make([]string, len(chunkIDs))
	copy(sorted, chunkIDs)
	sort.Strings(sorted)

	h := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(h[:])
}

// PeriodKeyFor returns the calendar-week bucket key for a timestamp,
// e.g. "2025-W51" (ISO week). Near year-end the ISO week year can differ
// from the calendar year; the key follows the ISO week year.
func PeriodKeyFor(ts time.Time) string {
	year, week := ts.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
