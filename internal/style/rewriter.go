// Package style rewrites accepted answers in the owner's voice. It never
// touches the grounding pipeline: facts, numbers, and the citation list pass
// through unchanged, and refusals are never restyled.
package style

import (
	"context"
	"log"
	"strings"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
)

const (
	// sourcesMarker prefixes the attribution line the gate asks generation
	// to append; the rewriter must carry it through verbatim.
	sourcesMarker = "Sources:"
	// minRestyleLen skips answers too short to be worth rewriting.
	minRestyleLen = 10

	restyleMaxTokens = 120
)

// fallbackVoiceGuide is used when the identity record cannot be read.
const fallbackVoiceGuide = "A concise and direct communicator."

// Generator is the slice of the model API the rewriter needs.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error)
}

// Rewriter restyles verdict answers using the identity record as the voice
// guide.
type Rewriter struct {
	generator  Generator
	voiceGuide string
}

// NewRewriter creates a Rewriter. voiceGuide is typically the raw text of
// the identity record; an empty guide falls back to a neutral default.
func NewRewriter(generator Generator, voiceGuide string) *Rewriter {
	if strings.TrimSpace(voiceGuide) == "" {
		voiceGuide = fallbackVoiceGuide
	}
	return &Rewriter{generator: generator, voiceGuide: voiceGuide}
}

// Apply rewrites the verdict's answer text in the owner's voice. Refusals,
// quote-only answers, and very short answers are returned untouched;
// rewrite failures keep the original text. The citation list is never
// modified.
func (r *Rewriter) Apply(ctx context.Context, verdict *domain.Verdict) *domain.Verdict {
	if verdict == nil {
		return nil
	}
	if verdict.IsRefusal() {
		return verdict
	}
	answer := verdict.Answer
	if strings.HasPrefix(answer, "From my data:") {
		return verdict
	}
	if len(answer) < minRestyleLen {
		return verdict
	}

	body := answer
	sourcesLine := ""
	if idx := strings.LastIndex(answer, sourcesMarker); idx >= 0 {
		body = strings.TrimSpace(answer[:idx])
		sourcesLine = answer[idx:]
	}

	styled, err := r.generator.GenerateText(ctx, r.prompt(body), openai.CompletionOptions{
		Temperature: 0.0,
		MaxTokens:   restyleMaxTokens,
	})
	if err != nil {
		log.Printf("style: rewrite failed, keeping original answer: %v", err)
		styled = body
	}
	styled = strings.TrimSpace(styled)
	if styled == "" {
		styled = body
	}

	if sourcesLine != "" {
		styled = styled + "\n\n" + sourcesLine
	}

	out := *verdict
	out.Answer = styled
	return &out
}

func (r *Rewriter) prompt(body string) string {
	return "Style rules:\n" +
		"- Use 'I' for individual actions and observations.\n" +
		"- Use 'we' only when the evidence clearly shows a shared decision or agreement.\n" +
		"- Keep it concise, direct, work-focused.\n" +
		"- No buzzwords, no hype.\n" +
		"- Preserve all facts, numbers, and technical details exactly.\n" +
		"- Do not add any information not in the original.\n\n" +
		"Voice guide:\n" + r.voiceGuide + "\n\n" +
		"Rewrite the answer below in the owner's voice.\n" +
		"Preserve all factual meaning and numbers exactly.\n\n" +
		"Original answer:\n" + body + "\n\n" +
		"Rewritten answer:"
}
