package verify

import (
	"regexp"
	"strings"
)

// SensitiveRules detects credential/secret-like content in questions,
// answers, and citations. The rule set is versioned so deployments can
// extend it without touching gate logic.
type SensitiveRules struct {
	Version  string
	Patterns []*regexp.Regexp
	Keywords []string
}

// DefaultSensitiveRules is the built-in credential-detection table.
func DefaultSensitiveRules() SensitiveRules {
	return SensitiveRules{
		Version: "v1",
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
			regexp.MustCompile(`(?i)password[:\s]*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:\s]*\S+`),
			regexp.MustCompile(`(?i)secret[:\s]*\S+`),
			regexp.MustCompile(`(?i)token[:\s]*\S+`),
		},
		Keywords: []string{
			"password", "passwd", "pwd",
			"api_key", "api key", "apikey",
			"secret", "token",
			"credential", "credentials", "creds", "cred",
			"aws access", "aws secret", "aws key",
			"account id", "account number",
			"private key", "ssh key",
		},
	}
}

// Matches reports whether text trips any sensitive pattern or keyword.
func (r SensitiveRules) Matches(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	lower := strings.ToLower(text)
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
