package service

import (
	"strings"

	"github.com/memoro-ai/memoro/internal/domain"
)

// Classifier decides whether a question wants a broad summary or a narrow
// fact. The two modes use different evidence thresholds and entailment
// strictness, so the decision is isolated behind an interface where it can
// be tested alone or swapped for a model-based classifier.
type Classifier interface {
	Classify(question string, hasTimeRange bool) domain.AnswerMode
}

// summaryPrefixes open questions that ask what happened over a span of time.
var summaryPrefixes = []string{
	"what happened",
	"what was i working on",
}

// summaryPhrases anywhere in the question also signal a summary request.
var summaryPhrases = []string{
	"what was i doing",
}

// PrefixClassifier is the default Classifier: any question carrying an
// explicit time range, or opening with a "what happened"-style phrase, is a
// summary request; everything else is a fact request.
type PrefixClassifier struct{}

// NewPrefixClassifier creates the default classifier.
func NewPrefixClassifier() PrefixClassifier {
	return PrefixClassifier{}
}

// Classify implements Classifier.
func (PrefixClassifier) Classify(question string, hasTimeRange bool) domain.AnswerMode {
	if hasTimeRange {
		return domain.AnswerModeSummary
	}

	q := strings.ToLower(strings.TrimSpace(question))
	for _, prefix := range summaryPrefixes {
		if strings.HasPrefix(q, prefix) {
			return domain.AnswerModeSummary
		}
	}
	for _, phrase := range summaryPhrases {
		if strings.Contains(q, phrase) {
			return domain.AnswerModeSummary
		}
	}
	return domain.AnswerModeFact
}
