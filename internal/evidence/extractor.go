// Package evidence reduces retrieved chunks to validated verbatim quotes.
// Every surviving quote is checked against its source chunk; text the model
// invents never leaves this package.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/retrieval"
)

const (
	// MaxItems caps how many evidence quotes one extraction may yield.
	MaxItems = 6

	// minQuoteLenSummary relaxes the length floor for broad questions.
	minQuoteLenSummary = 5
	// minQuoteLenFact is the length floor for narrow factual questions.
	minQuoteLenFact = 8
)

// StructuredGenerator is the slice of the model API extraction needs.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error)
}

// Result carries the validated evidence plus the raw model output for debug.
type Result struct {
	Items       []domain.EvidenceItem
	HasEvidence bool
	Raw         string
}

// Extractor asks the model for supporting quotes and validates each one.
type Extractor struct {
	generator StructuredGenerator
}

// NewExtractor creates an Extractor.
func NewExtractor(generator StructuredGenerator) *Extractor {
	return &Extractor{generator: generator}
}

// extractionPayload mirrors the JSON shape the model is instructed to emit.
type extractionPayload struct {
	Evidence []struct {
		ChunkIndex *int   `json:"chunk_index"`
		Quote      string `json:"quote"`
	} `json:"evidence"`
}

// Extract pulls up to MaxItems verbatim quotes supporting the question from
// the candidate chunks. A model failure or malformed output yields zero
// items, never an error; absence of evidence becomes a refusal downstream.
func (e *Extractor) Extract(ctx context.Context, question string, candidates []retrieval.Candidate, mode domain.AnswerMode) Result {
	if len(candidates) == 0 {
		return Result{Items: []domain.EvidenceItem{}}
	}

	raw, err := e.generator.GenerateJSON(ctx, extractionPrompt(question, candidates), openai.CompletionOptions{
		Temperature: 0.0,
	})
	if err != nil {
		log.Printf("evidence: extraction call failed: %v", err)
		return Result{Items: []domain.EvidenceItem{}}
	}

	items := e.validate(raw, candidates, mode)
	return Result{
		Items:       items,
		HasEvidence: len(items) > 0,
		Raw:         raw,
	}
}

// validate keeps only quotes whose index is in range, whose length meets the
// mode's floor, and which appear verbatim in their source chunk after
// whitespace normalization.
func (e *Extractor) validate(raw string, candidates []retrieval.Candidate, mode domain.AnswerMode) []domain.EvidenceItem {
	minLen := minQuoteLenFact
	if mode == domain.AnswerModeSummary {
		minLen = minQuoteLenSummary
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		log.Printf("evidence: discarding malformed extraction output: %v", err)
		return []domain.EvidenceItem{}
	}

	items := make([]domain.EvidenceItem, 0, MaxItems)
	for _, entry := range payload.Evidence {
		if len(items) >= MaxItems {
			break
		}
		if entry.ChunkIndex == nil || *entry.ChunkIndex < 0 || *entry.ChunkIndex >= len(candidates) {
			continue
		}
		quote := strings.TrimSpace(entry.Quote)
		if len(quote) < minLen {
			continue
		}

		chunk := candidates[*entry.ChunkIndex].Chunk
		if !strings.Contains(NormalizeWhitespace(chunk.Text), NormalizeWhitespace(quote)) {
			continue
		}

		items = append(items, domain.EvidenceItem{
			ChunkID:    chunk.ID,
			SourceFile: chunk.SourceFile,
			Quote:      quote,
			Timestamp:  chunk.Timestamp,
		})
	}
	return items
}

func extractionPrompt(question string, candidates []retrieval.Candidate) string {
	parts := make([]string, len(candidates))
	for i, cand := range candidates {
		parts[i] = fmt.Sprintf("[CHUNK %d] (ID: %s, File: %s)\n%s",
			i, cand.Chunk.ID, cand.Chunk.SourceFile, cand.Chunk.Text)
	}

	return fmt.Sprintf(
		"Given the question and context below, identify EXACT sentences or phrases from the context "+
			"that support an answer to the question. Extract up to %d relevant evidence items. "+
			"Output ONLY valid JSON in this format:\n"+
			`{"evidence":[{"chunk_index":0,"quote":"exact text from chunk"}]}`+"\n\n"+
			`If no evidence exists, output: {"evidence":[]}`+"\n\n"+
			"Question: %s\n\nContext:\n%s\n\nOutput JSON only:",
		MaxItems, question, strings.Join(parts, "\n\n---\n\n"),
	)
}

// NormalizeWhitespace collapses all whitespace runs to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
