package retrieval

import "strings"

// PersonalRules decides whether a question is about the owner themselves,
// which forces the identity record into the candidate set. The rule set is
// versioned so deployments can extend it without code changes.
type PersonalRules struct {
	Version  string
	Keywords []string
}

// DefaultPersonalRules is the built-in personal-query keyword table.
func DefaultPersonalRules() PersonalRules {
	return PersonalRules{
		Version: "v1",
		Keywords: []string{
			"you", "your",
			"location", "city", "stay", "live", "where",
			"email", "contact", "phone",
			"role", "team", "work", "timezone",
		},
	}
}

// WithKeywords returns a copy of the rule set with extra keywords appended
// under a derived version tag.
func (r PersonalRules) WithKeywords(extra ...string) PersonalRules {
	out := PersonalRules{
		Version:  r.Version + "+custom",
		Keywords: make([]string, 0, len(r.Keywords)+len(extra)),
	}
	out.Keywords = append(out.Keywords, r.Keywords...)
	out.Keywords = append(out.Keywords, extra...)
	return out
}

// Matches reports whether the question's lowercase form contains any
// personal keyword. Substring containment, not word match, so "wherever"
// still triggers "where"; the cost of a false positive is only an extra
// candidate chunk.
func (r PersonalRules) Matches(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range r.Keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
