package domain

import "time"

// TimeRange is an inclusive instant pair produced by query understanding.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the range.
func (r *TimeRange) Contains(ts time.Time) bool {
	if r == nil {
		return false
	}
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// ParsedQuery is the structured intent extracted from raw question text.
type ParsedQuery struct {
	Query  string
	Range  *TimeRange
	Topics []string
}
