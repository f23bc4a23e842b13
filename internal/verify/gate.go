// Package verify is the trust boundary of the pipeline. It decides, from
// validated evidence alone, whether a question gets an answer, at what
// confidence, and with which citations — or a refusal. Every branch fails
// closed: call failures and ambiguous results degrade toward refusal or a
// quote-only answer, never toward a confident fabrication.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
)

const (
	// RefusalText is the canonical no-evidence refusal.
	RefusalText = "I do not see this in your data."
	// SensitiveQuestionText blocks questions that ask for secrets.
	SensitiveQuestionText = "I cannot share sensitive information like credentials, passwords, or API keys."
	// SensitiveAnswerText blocks generated answers that leak secrets.
	SensitiveAnswerText = "I cannot share that because it contains sensitive information."

	// QuoteOnlyPrefix opens the minimal-trust fallback answer.
	QuoteOnlyPrefix = "From my data:"
	// maxQuoteOnlyLines caps the quote-only fallback.
	maxQuoteOnlyLines = 3

	// profileSourceName marks the canonical identity record; its content is
	// the owner's intended public profile and exempt from the answer-side
	// sensitive checks and redaction.
	profileSourceName = "identity.md"

	// refusalPhrase identifies generated text that reads as a refusal.
	refusalPhrase = "do not see"

	entailmentMaxTokens = 150
	minCitationLen      = 5
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	placeholderQuotes = map[string]struct{}{
		"__": {}, "___": {}, "...": {}, "----": {}, "N/A": {}, "n/a": {},
	}
)

// Generator is the slice of the model API the gate needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error)
	GenerateJSON(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error)
}

// Gate evaluates evidence into a Verdict.
type Gate struct {
	generator Generator
	rules     SensitiveRules
}

// NewGate creates a Gate with the default sensitive rules.
func NewGate(generator Generator) *Gate {
	return &Gate{generator: generator, rules: DefaultSensitiveRules()}
}

// NewGateWithRules creates a Gate with an explicit rule set.
func NewGateWithRules(generator Generator, rules SensitiveRules) *Gate {
	return &Gate{generator: generator, rules: rules}
}

// Evaluate runs the verification state machine in strict order: sensitive
// question block, no-evidence refusal, mode branch (summary thresholds or
// fact entailment), grounded generation, post-generation sensitive scan,
// citation assembly, confidence assignment.
func (g *Gate) Evaluate(ctx context.Context, question string, items []domain.EvidenceItem, mode domain.AnswerMode) *domain.Verdict {
	if g.rules.Matches(question) {
		return domain.Refusal(SensitiveQuestionText, "Question blocked due to requesting sensitive information.")
	}

	if len(items) == 0 {
		return domain.Refusal(RefusalText, "No supporting evidence found in the data.")
	}

	var summaryBoost domain.Confidence
	if mode == domain.AnswerModeSummary {
		// Summaries aggregate rather than prove a single claim, so no
		// entailment check; confidence scales with distinct sources.
		if distinctChunkCount(items) >= 2 {
			summaryBoost = domain.ConfidenceHigh
		} else {
			summaryBoost = domain.ConfidenceMedium
		}
	} else {
		switch g.entailment(ctx, question, items) {
		case domain.EntailmentNo:
			return domain.Refusal(RefusalText, "Evidence does not support the question.")
		case domain.EntailmentUnknown:
			return g.quoteOnly(items)
		}
	}

	answer := g.generateAnswer(ctx, question, items, mode)

	if !hasProfileSource(items) && g.rules.Matches(answer) {
		return domain.Refusal(SensitiveAnswerText, "Answer blocked due to sensitive information detection.")
	}

	if strings.Contains(strings.ToLower(answer), refusalPhrase) {
		return domain.Refusal(answer, "Generated answer reads as a refusal.")
	}

	citations := g.assembleCitations(items)
	if len(citations) == 0 {
		// Everything the answer would rest on was filtered away; an
		// uncited answer cannot stand.
		return domain.Refusal(RefusalText, "No citations survived filtering.")
	}

	confidence := domain.ConfidenceMedium
	if summaryBoost != "" {
		confidence = summaryBoost
	} else if len(citations) >= 2 {
		confidence = domain.ConfidenceHigh
	}

	return &domain.Verdict{
		Answer:     answer,
		Confidence: confidence,
		Citations:  citations,
		Reasoning:  fmt.Sprintf("Based on %d valid citation(s) from retrieved context.", len(citations)),
	}
}

// entailment asks whether the evidence set semantically supports answering
// the question. Call failures and unparseable output return unknown.
func (g *Gate) entailment(ctx context.Context, question string, items []domain.EvidenceItem) domain.EntailmentState {
	quotes := make([]string, len(items))
	for i, item := range items {
		quotes[i] = "- " + item.Quote
	}

	prompt := fmt.Sprintf(
		"Does the evidence below semantically support answering this question? "+
			`Return ONLY JSON: {"state": "yes", "reason": "..."} or {"state": "no", "reason": "..."} `+
			`or {"state": "unknown", "reason": "..."}.`+"\n\n"+
			"Question: %s\n\nEvidence:\n%s\n\n"+
			"IMPORTANT: Return 'no' if the evidence is about something different than what the question asks. "+
			"Return 'unknown' only if you genuinely cannot determine.\n\nJSON:",
		question, strings.Join(quotes, "\n"),
	)

	raw, err := g.generator.GenerateJSON(ctx, prompt, openai.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   entailmentMaxTokens,
	})
	if err != nil {
		log.Printf("verify: entailment call failed: %v", err)
		return domain.EntailmentUnknown
	}

	var payload struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		log.Printf("verify: discarding unparseable entailment output: %v", err)
		return domain.EntailmentUnknown
	}

	switch domain.EntailmentState(strings.ToLower(payload.State)) {
	case domain.EntailmentYes:
		return domain.EntailmentYes
	case domain.EntailmentNo:
		return domain.EntailmentNo
	default:
		return domain.EntailmentUnknown
	}
}

// quoteOnly builds the minimal-trust fallback: verbatim quotes from up to
// three distinct chunks, no paraphrasing.
func (g *Gate) quoteOnly(items []domain.EvidenceItem) *domain.Verdict {
	seen := make(map[string]struct{})
	chosen := make([]domain.EvidenceItem, 0, maxQuoteOnlyLines)
	for _, item := range items {
		if len(chosen) >= maxQuoteOnlyLines {
			break
		}
		if _, ok := seen[item.ChunkID]; ok {
			continue
		}
		seen[item.ChunkID] = struct{}{}
		chosen = append(chosen, item)
	}

	if len(chosen) == 0 {
		return domain.Refusal(RefusalText, "Cannot verify if evidence supports the question.")
	}

	lines := make([]string, len(chosen))
	citations := make([]domain.Citation, len(chosen))
	for i, item := range chosen {
		lines[i] = "- " + item.Quote
		citations[i] = domain.Citation{
			Text:      item.Quote,
			Source:    item.SourceFile,
			ChunkID:   item.ChunkID,
			Timestamp: item.Timestamp,
		}
	}

	return &domain.Verdict{
		Answer:     QuoteOnlyPrefix + "\n" + strings.Join(lines, "\n"),
		Confidence: domain.ConfidenceMedium,
		Citations:  citations,
		Reasoning:  "Entailment unclear, returning quote-only answer.",
	}
}

// generateAnswer composes the grounded answer. Any failure or empty output
// degrades to the canonical refusal text.
func (g *Gate) generateAnswer(ctx context.Context, question string, items []domain.EvidenceItem, mode domain.AnswerMode) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("- %s (from %s)", item.Quote, item.ChunkID)
	}
	evidenceBlock := strings.Join(lines, "\n")

	var prompt string
	if mode == domain.AnswerModeSummary {
		prompt = fmt.Sprintf(
			"You are answering questions about your own work in the first person. "+
				"Use 'I' for individual actions and observations; use 'we' only when the evidence clearly shows a shared decision. "+
				"Provide a brief summary based ONLY on the evidence below. "+
				"Each point must come from the evidence. Do NOT invent facts. "+
				"Write short, clear, work-focused. "+
				"At the end, add: Sources: <chunk_ids>\n\n"+
				"Question: %s\n\nEvidence:\n%s\n\nAnswer:",
			question, evidenceBlock,
		)
	} else {
		prompt = fmt.Sprintf(
			"You are answering a specific question about your own work in the first person. Use ONLY the evidence below. "+
				"Use 'I' for individual actions and observations; use 'we' only when the evidence clearly shows a shared decision. "+
				"Do NOT invent facts. Do NOT infer beyond what is stated. "+
				"Write short, clear, work-focused. "+
				"At the end, add: Sources: <chunk_ids>\n\n"+
				"Question: %s\n\nEvidence:\n%s\n\nAnswer:",
			question, evidenceBlock,
		)
	}

	answer, err := g.generator.GenerateText(ctx, prompt, openai.CompletionOptions{Temperature: 0.0})
	if err != nil {
		log.Printf("verify: answer generation failed: %v", err)
		return RefusalText
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return RefusalText
	}
	return answer
}

// assembleCitations filters degenerate quotes, redacts email-like substrings
// outside the profile record, and drops citations that still look sensitive.
func (g *Gate) assembleCitations(items []domain.EvidenceItem) []domain.Citation {
	citations := make([]domain.Citation, 0, len(items))
	for _, item := range items {
		quote := strings.TrimSpace(item.Quote)
		if !isUsableQuote(quote) {
			continue
		}

		fromProfile := isProfileSource(item.SourceFile)
		if !fromProfile {
			quote = emailRe.ReplaceAllString(quote, "[redacted]")
			if g.rules.Matches(quote) {
				continue
			}
		}

		citations = append(citations, domain.Citation{
			Text:      quote,
			Source:    item.SourceFile,
			ChunkID:   item.ChunkID,
			Timestamp: item.Timestamp,
		})
	}
	return citations
}

// isUsableQuote rejects empty, too-short, placeholder, and punctuation-only
// quotes.
func isUsableQuote(quote string) bool {
	if len(quote) <= minCitationLen {
		return false
	}
	if _, ok := placeholderQuotes[quote]; ok {
		return false
	}
	stripped := strings.NewReplacer("_", "", ".", "", "-", "").Replace(quote)
	return strings.TrimSpace(stripped) != ""
}

func isProfileSource(sourceFile string) bool {
	return strings.Contains(sourceFile, profileSourceName)
}

func hasProfileSource(items []domain.EvidenceItem) bool {
	for _, item := range items {
		if isProfileSource(item.SourceFile) {
			return true
		}
	}
	return false
}

func distinctChunkCount(items []domain.EvidenceItem) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.ChunkID] = struct{}{}
	}
	return len(seen)
}
