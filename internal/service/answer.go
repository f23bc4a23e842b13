// Package service orchestrates the grounding pipeline: query understanding,
// retrieval, evidence extraction, verification, and styling.
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/evidence"
	"github.com/memoro-ai/memoro/internal/retrieval"
	"github.com/memoro-ai/memoro/internal/telemetry"
)

const previewLen = 200

// greetingIntents are answered directly without consulting memory.
var greetingIntents = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {},
}

var helpIntents = map[string]struct{}{
	"help":              {},
	"what can you do":   {},
	"how do you work":   {},
	"examples":          {},
	"example questions": {},
}

const greetingAnswer = "Hi. You can ask me about my work, decisions, and messages. " +
	"For example: What happened in late December around inference?"

const helpAnswer = "I answer questions about my work using only the data you provided. " +
	"If I cannot find evidence, I will refuse. " +
	"Try asking: What was I working on in Q4 2025?"

// QueryParser turns raw question text into structured intent.
type QueryParser interface {
	Parse(question string) domain.ParsedQuery
}

// Retriever produces the ranked candidate set for a parsed question.
type Retriever interface {
	Retrieve(ctx context.Context, parsed domain.ParsedQuery) retrieval.Result
}

// Extractor reduces candidates to validated verbatim quotes.
type Extractor interface {
	Extract(ctx context.Context, question string, candidates []retrieval.Candidate, mode domain.AnswerMode) evidence.Result
}

// Verifier evaluates evidence into a Verdict.
type Verifier interface {
	Evaluate(ctx context.Context, question string, items []domain.EvidenceItem, mode domain.AnswerMode) *domain.Verdict
}

// Styler rewrites an accepted answer in the owner's voice.
type Styler interface {
	Apply(ctx context.Context, verdict *domain.Verdict) *domain.Verdict
}

// AskLog records one answered question for observability.
type AskLog struct {
	ID            uuid.UUID
	Question      string
	Answer        string
	Confidence    domain.Confidence
	Mode          domain.AnswerMode
	CitationCount int
	DurationMS    int64
	CreatedAt     time.Time
}

// AskLogger persists ask logs. Logging is best-effort; failures never affect
// the verdict.
type AskLogger interface {
	Save(ctx context.Context, entry *AskLog) error
}

// AskInput is one question for the pipeline.
type AskInput struct {
	Question string `json:"question"`
	Debug    bool   `json:"debug,omitempty"`
}

// ChunkPreview is a retrieved chunk rendered for debug output.
type ChunkPreview struct {
	ID          string  `json:"id"`
	File        string  `json:"file"`
	Score       float64 `json:"score"`
	TextPreview string  `json:"text_preview"`
}

// DebugPayload exposes pipeline internals for diagnostics. It is never
// required for correctness.
type DebugPayload struct {
	ParsedQuery     ParsedQueryDebug   `json:"parsed_query"`
	Mode            domain.AnswerMode  `json:"mode"`
	Retrieval       retrieval.Metadata `json:"retrieval_metadata"`
	RetrievedChunks []ChunkPreview     `json:"retrieved_chunks"`
	Evidence        []EvidenceDebug    `json:"evidence"`
	RawExtraction   string             `json:"raw_extraction,omitempty"`
}

// ParsedQueryDebug is the debug rendering of a parsed query.
type ParsedQueryDebug struct {
	Query  string     `json:"query"`
	Start  *time.Time `json:"range_start,omitempty"`
	End    *time.Time `json:"range_end,omitempty"`
	Topics []string   `json:"topics"`
}

// EvidenceDebug is the debug rendering of one evidence item.
type EvidenceDebug struct {
	ChunkID string `json:"chunk_id"`
	File    string `json:"file"`
	Quote   string `json:"quote"`
}

// AskOutput is the pipeline's result: a verdict plus optional debug payload.
type AskOutput struct {
	Verdict *domain.Verdict
	Debug   *DebugPayload
}

// AnswerService runs one question through the full pipeline sequentially.
// It holds no per-request state; concurrent calls are safe.
type AnswerService struct {
	parser     QueryParser
	classifier Classifier
	retriever  Retriever
	extractor  Extractor
	verifier   Verifier
	styler     Styler
	askLogger  AskLogger
}

// NewAnswerService wires the pipeline stages together. styler and askLogger
// may be nil.
func NewAnswerService(parser QueryParser, classifier Classifier, retriever Retriever, extractor Extractor, verifier Verifier, styler Styler, askLogger AskLogger) *AnswerService {
	return &AnswerService{
		parser:     parser,
		classifier: classifier,
		retriever:  retriever,
		extractor:  extractor,
		verifier:   verifier,
		styler:     styler,
		askLogger:  askLogger,
	}
}

// Answer processes one question end to end.
func (s *AnswerService) Answer(ctx context.Context, input AskInput) (*AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	started := time.Now()

	if verdict := uiIntent(question); verdict != nil {
		return &AskOutput{Verdict: verdict}, nil
	}

	parsed := s.parser.Parse(question)
	mode := s.classifier.Classify(question, parsed.Range != nil)

	ctx, span := telemetry.StartSpan(ctx, "service.answer", telemetry.SpanAttributes{
		Mode:      string(mode),
		Operation: "ask",
	})
	defer span.End()

	retrieved := s.retriever.Retrieve(ctx, parsed)
	extracted := s.extractor.Extract(ctx, question, retrieved.Candidates, mode)
	verdict := s.verifier.Evaluate(ctx, question, extracted.Items, mode)
	if s.styler != nil {
		verdict = s.styler.Apply(ctx, verdict)
	}

	s.logAsk(ctx, question, verdict, mode, time.Since(started))

	out := &AskOutput{Verdict: verdict}
	if input.Debug {
		out.Debug = buildDebug(parsed, mode, retrieved, extracted)
	}
	return out, nil
}

// uiIntent answers greetings and help questions without touching memory.
func uiIntent(question string) *domain.Verdict {
	q := strings.ToLower(question)
	if _, ok := greetingIntents[q]; ok {
		return domain.Refusal(greetingAnswer, "Greeting handled as a UI intent without using memory.")
	}
	if _, ok := helpIntents[q]; ok {
		return domain.Refusal(helpAnswer, "Help intent handled as a UI intent without using memory.")
	}
	return nil
}

func (s *AnswerService) logAsk(ctx context.Context, question string, verdict *domain.Verdict, mode domain.AnswerMode, took time.Duration) {
	if s.askLogger == nil {
		return
	}
	entry := &AskLog{
		ID:            uuid.New(),
		Question:      question,
		Answer:        verdict.Answer,
		Confidence:    verdict.Confidence,
		Mode:          mode,
		CitationCount: len(verdict.Citations),
		DurationMS:    took.Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.askLogger.Save(ctx, entry); err != nil {
		log.Printf("service: failed to save ask log: %v", err)
	}
}

func buildDebug(parsed domain.ParsedQuery, mode domain.AnswerMode, retrieved retrieval.Result, extracted evidence.Result) *DebugPayload {
	dbg := &DebugPayload{
		ParsedQuery: ParsedQueryDebug{
			Query:  parsed.Query,
			Topics: parsed.Topics,
		},
		Mode:            mode,
		Retrieval:       retrieved.Metadata,
		RetrievedChunks: make([]ChunkPreview, 0, len(retrieved.Candidates)),
		Evidence:        make([]EvidenceDebug, 0, len(extracted.Items)),
		RawExtraction:   extracted.Raw,
	}
	if parsed.Range != nil {
		dbg.ParsedQuery.Start = &parsed.Range.Start
		dbg.ParsedQuery.End = &parsed.Range.End
	}

	for _, cand := range retrieved.Candidates {
		dbg.RetrievedChunks = append(dbg.RetrievedChunks, ChunkPreview{
			ID:          cand.Chunk.ID,
			File:        cand.Chunk.SourceFile,
			Score:       cand.Score,
			TextPreview: preview(cand.Chunk.Text),
		})
	}
	for _, item := range extracted.Items {
		dbg.Evidence = append(dbg.Evidence, EvidenceDebug{
			ChunkID: item.ChunkID,
			File:    item.SourceFile,
			Quote:   item.Quote,
		})
	}
	return dbg
}

func preview(text string) string {
	if len(text) <= previewLen {
		return text
	}
	return text[:previewLen] + "..."
}
