package domain

import (
	"fmt"
	"time"
)

// Confidence grades how well a verdict's answer is supported by evidence
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// AnswerMode classifies a question for evidence thresholds and entailment
// strictness. Summary questions aggregate; fact questions must prove.
type AnswerMode string

const (
	AnswerModeSummary AnswerMode = "summary"
	AnswerModeFact    AnswerMode = "fact"
)

// EntailmentState is the outcome of checking whether evidence semantically
// supports answering a specific question.
type EntailmentState string

const (
	EntailmentYes     EntailmentState = "yes"
	EntailmentNo      EntailmentState = "no"
	EntailmentUnknown EntailmentState = "unknown"
)

// EvidenceItem is a validated verbatim quote tied to its source chunk.
// The quote, whitespace-normalized, is always a substring of the source
// chunk's normalized text.
type EvidenceItem struct {
	ChunkID    string
	SourceFile string
	Quote      string
	Timestamp  *time.Time
}

// Citation is a user-facing receipt attached to an answer.
type Citation struct {
	Text      string     `json:"text"`
	Source    string     `json:"source"`
	ChunkID   string     `json:"chunk_id"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Verdict is the pipeline's final output.
// Invariant: Confidence == ConfidenceNone if and only if Citations is empty.
type Verdict struct {
	Answer     string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Citations  []Citation `json:"citations"`
	Reasoning  string     `json:"reasoning"`
}

// IsRefusal reports whether the verdict is a refusal or blocked response.
func (v *Verdict) IsRefusal() bool {
	return v.Confidence == ConfidenceNone
}

// ValidateVerdict checks the refusal-citation coupling invariant.
func ValidateVerdict(v *Verdict) error {
	if v == nil {
		return fmt.Errorf("verdict cannot be nil")
	}

	if v.Answer == "" {
		return fmt.Errorf("verdict Answer is required")
	}

	if !isValidConfidence(v.Confidence) {
		return fmt.Errorf("verdict Confidence is invalid: %s", v.Confidence)
	}

	if v.Confidence == ConfidenceNone && len(v.Citations) > 0 {
		return fmt.Errorf("refusal verdict must not carry citations")
	}

	if v.Confidence != ConfidenceNone && len(v.Citations) == 0 {
		return fmt.Errorf("non-refusal verdict must carry at least one citation")
	}

	return nil
}

// Refusal builds a refusal verdict with the canonical coupling of
// confidence none and zero citations.
func Refusal(answer, reasoning string) *Verdict {
	return &Verdict{
		Answer:     answer,
		Confidence: ConfidenceNone,
		Citations:  []Citation{},
		Reasoning:  reasoning,
	}
}

// isValidConfidence checks if a Confidence is valid
func isValidConfidence(c Confidence) bool {
	switch c {
	case ConfidenceNone, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}
