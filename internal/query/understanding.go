// Package query translates loose human phrasing into structured search
// constraints: explicit time ranges and topic keywords.
package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/memoro-ai/memoro/internal/domain"
)

// DefaultYear anchors year-less phrases like "late Dec" or "Q3".
const DefaultYear = 2025

// maxTopics caps keyword extraction so downstream matching stays focused.
const maxTopics = 5

var (
	relMonthRe  = regexp.MustCompile(`(early|mid|late)\s+([a-z]+)\s*(\d{4})?`)
	quarterRe   = regexp.MustCompile(`q([1-4])\s*(\d{4})?`)
	monthYearRe = regexp.MustCompile(`([a-z]+)\s+(\d{4})`)
	wordRe      = regexp.MustCompile(`[a-z0-9_]+`)
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// holidays maps holiday names to month/day anchors. Thanksgiving is
// approximate on purpose; the ±1 day window absorbs the drift.
var holidays = []struct {
	name  string
	month time.Month
	day   int
}{
	{"christmas", time.December, 25},
	{"new year", time.January, 1},
	{"thanksgiving", time.November, 25},
}

var stopWords = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "who": {}, "how": {}, "why": {},
	"was": {}, "were": {}, "did": {}, "do": {}, "does": {},
	"the": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "of": {}, "and": {}, "or": {}, "i": {}, "you": {},
	"my": {}, "your": {}, "late": {}, "early": {}, "mid": {},
}

// Parser turns raw questions into ParsedQuery values.
type Parser struct {
	defaultYear int
}

// NewParser creates a Parser anchored at DefaultYear.
func NewParser() *Parser {
	return &Parser{defaultYear: DefaultYear}
}

// NewParserWithYear creates a Parser with an explicit anchor year.
func NewParserWithYear(year int) *Parser {
	return &Parser{defaultYear: year}
}

// Parse extracts the time range and topics from a question.
func (p *Parser) Parse(question string) domain.ParsedQuery {
	return domain.ParsedQuery{
		Query:  question,
		Range:  p.ParseDateRange(question),
		Topics: ExtractTopics(question),
	}
}

// ParseDateRange resolves time phrases into a concrete range. Holiday names
// win over relative-month phrases, which win over quarters and month+year.
// Returns nil when the question carries no time constraint.
func (p *Parser) ParseDateRange(question string) *domain.TimeRange {
	q := strings.ToLower(question)

	for _, h := range holidays {
		if !strings.Contains(q, h.name) {
			continue
		}
		year := p.defaultYear
		if h.name == "new year" && strings.Contains(q, "2026") {
			year = 2026
		}
		center := time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC)
		return &domain.TimeRange{
			Start: center.AddDate(0, 0, -1),
			End:   center.AddDate(0, 0, 1).Add(23*time.Hour + 59*time.Minute + 59*time.Second),
		}
	}

	if m := relMonthRe.FindStringSubmatch(q); m != nil {
		if month, ok := resolveMonth(m[2]); ok {
			year := p.yearOr(m[3])
			switch m[1] {
			case "early":
				return &domain.TimeRange{
					Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
					End:   time.Date(year, month, 10, 23, 59, 59, 0, time.UTC),
				}
			case "mid":
				return &domain.TimeRange{
					Start: time.Date(year, month, 10, 0, 0, 0, 0, time.UTC),
					End:   time.Date(year, month, 20, 23, 59, 59, 0, time.UTC),
				}
			default:
				return &domain.TimeRange{
					Start: time.Date(year, month, 20, 0, 0, 0, 0, time.UTC),
					End:   endOfMonth(year, month),
				}
			}
		}
	}

	if m := quarterRe.FindStringSubmatch(q); m != nil {
		qn, _ := strconv.Atoi(m[1])
		year := p.yearOr(m[2])
		startMonth := time.Month((qn-1)*3 + 1)
		return &domain.TimeRange{
			Start: time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC),
			End:   endOfMonth(year, startMonth+2),
		}
	}

	if m := monthYearRe.FindStringSubmatch(q); m != nil {
		if month, ok := resolveMonth(m[1]); ok {
			year, _ := strconv.Atoi(m[2])
			return &domain.TimeRange{
				Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
				End:   endOfMonth(year, month),
			}
		}
	}

	return nil
}

// ExtractTopics pulls up to maxTopics keywords after stop-word filtering.
// Words of three or more characters only.
func ExtractTopics(question string) []string {
	words := wordRe.FindAllString(strings.ToLower(question), -1)
	topics := make([]string, 0, maxTopics)
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		topics = append(topics, w)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics
}

// resolveMonth matches month names by their first three letters, so "dec",
// "december" and "decembr" all resolve to December.
func resolveMonth(word string) (time.Month, bool) {
	if len(word) < 3 {
		return 0, false
	}
	for i, name := range monthNames {
		if name[:3] == word[:3] {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

func endOfMonth(year int, month time.Month) time.Time {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.Add(-time.Second)
}

func (p *Parser) yearOr(s string) int {
	if s == "" {
		return p.defaultYear
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return p.defaultYear
	}
	return year
}
