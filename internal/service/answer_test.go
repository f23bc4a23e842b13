package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/evidence"
	"github.com/memoro-ai/memoro/internal/openai"
	"github.com/memoro-ai/memoro/internal/query"
	"github.com/memoro-ai/memoro/internal/retrieval"
	"github.com/memoro-ai/memoro/internal/store"
	"github.com/memoro-ai/memoro/internal/verify"
)

// MockAskLogger is a mock implementation of AskLogger
type MockAskLogger struct {
	mock.Mock
}

func (m *MockAskLogger) Save(ctx context.Context, entry *AskLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// stubModel fakes the whole model surface with canned responses keyed by
// prompt content.
type stubModel struct {
	embedding      []float32
	embedErr       error
	jsonByMarker   map[string]string
	textByMarker   map[string]string
	defaultJSON    string
	defaultText    string
	textErr        error
}

func (s *stubModel) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	return s.embedding, nil
}

func (s *stubModel) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.embedding
	}
	return out, nil
}

func (s *stubModel) GenerateJSON(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	for marker, resp := range s.jsonByMarker {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return s.defaultJSON, nil
}

func (s *stubModel) GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	if s.textErr != nil {
		return "", s.textErr
	}
	for marker, resp := range s.textByMarker {
		if strings.Contains(prompt, marker) {
			return resp, nil
		}
	}
	return s.defaultText, nil
}

// stubRouter routes every query to all given periods.
type stubRouter struct {
	periods []*domain.PeriodSummary
}

func (s *stubRouter) FindRelevantPeriods(ctx context.Context, emb []float32, n int) ([]*domain.PeriodSummary, error) {
	if n > len(s.periods) {
		n = len(s.periods)
	}
	return s.periods[:n], nil
}

func coldStartStore() *store.ChunkStore {
	ts1 := time.Date(2025, 10, 6, 9, 0, 0, 0, time.UTC)
	ts2 := time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC)
	return store.New([]*domain.Chunk{
		{ID: "slack:msg:0", SourceFile: "slack.md", Text: "it took about 6-9 minutes to get the first successful response", Timestamp: &ts1, Kind: domain.ChunkKindMessage},
		{ID: "slack:msg:1", SourceFile: "slack.md", Text: "invoke failures spiked during the rollout window", Timestamp: &ts2, Kind: domain.ChunkKindMessage},
	})
}

// newPipeline wires a real pipeline over stubbed model calls.
func newPipeline(model *stubModel, chunks *store.ChunkStore) *AnswerService {
	router := &stubRouter{periods: []*domain.PeriodSummary{
		{PeriodKey: "2025-W41", ChunkIDs: []string{"slack:msg:0"}},
		{PeriodKey: "2025-W42", ChunkIDs: []string{"slack:msg:1"}},
	}}
	return NewAnswerService(
		query.NewParser(),
		NewPrefixClassifier(),
		retrieval.NewRetriever(chunks, router, model),
		evidence.NewExtractor(model),
		verify.NewGate(model),
		nil,
		nil,
	)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newPipeline(&stubModel{}, coldStartStore())
	_, err := svc.Answer(context.Background(), AskInput{Question: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
}

func TestAnswerGreetingIntent(t *testing.T) {
	svc := newPipeline(&stubModel{embedErr: errors.New("must not be called")}, coldStartStore())

	for _, q := range []string{"hi", "Hello", "HEY"} {
		out, err := svc.Answer(context.Background(), AskInput{Question: q})
		require.NoError(t, err)
		assert.Contains(t, out.Verdict.Answer, "ask me about my work")
		assert.Equal(t, domain.ConfidenceNone, out.Verdict.Confidence)
		assert.Empty(t, out.Verdict.Citations)
	}
}

func TestAnswerHelpIntent(t *testing.T) {
	svc := newPipeline(&stubModel{embedErr: errors.New("must not be called")}, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "what can you do"})
	require.NoError(t, err)
	assert.Contains(t, out.Verdict.Answer, "refuse")
	assert.Equal(t, domain.ConfidenceNone, out.Verdict.Confidence)
}

func TestAnswerNoEvidenceRefusal(t *testing.T) {
	// Scenario: nothing color-related exists; extraction finds nothing.
	model := &stubModel{
		embedding:   []float32{1, 0},
		defaultJSON: `{"evidence":[]}`,
	}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "What is my favorite color?"})
	require.NoError(t, err)
	assert.Equal(t, verify.RefusalText, out.Verdict.Answer)
	assert.Equal(t, domain.ConfidenceNone, out.Verdict.Confidence)
	assert.Empty(t, out.Verdict.Citations)
	require.NoError(t, domain.ValidateVerdict(out.Verdict))
}

func TestAnswerGroundedFact(t *testing.T) {
	// Scenario: cold-start duration is backed by a verbatim quote.
	model := &stubModel{
		embedding: []float32{1, 0},
		jsonByMarker: map[string]string{
			"identify EXACT": `{"evidence":[{"chunk_index":0,"quote":"it took about 6-9 minutes to get the first successful response"}]}`,
			"semantically support": `{"state":"yes","reason":"duration is stated"}`,
		},
		defaultText: "Cold start took about 6-9 minutes. Sources: slack:msg:0",
	}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?"})
	require.NoError(t, err)

	assert.NotEqual(t, verify.RefusalText, out.Verdict.Answer)
	assert.Contains(t, out.Verdict.Answer, "6-9 minutes")
	require.NotEmpty(t, out.Verdict.Citations)
	assert.Contains(t, []domain.Confidence{domain.ConfidenceMedium, domain.ConfidenceHigh}, out.Verdict.Confidence)
	require.NoError(t, domain.ValidateVerdict(out.Verdict))
}

func TestAnswerEntailmentNoRefuses(t *testing.T) {
	// Scenario: evidence about invoke failures cannot answer a question
	// about customer complaints.
	model := &stubModel{
		embedding: []float32{1, 0},
		jsonByMarker: map[string]string{
			"identify EXACT": `{"evidence":[{"chunk_index":0,"quote":"invoke failures spiked during the rollout window"}]}`,
			"semantically support": `{"state":"no","reason":"evidence is about internal errors"}`,
		},
	}
	// Seed retrieval so candidate 0 is the invoke-failures chunk.
	ts := time.Date(2025, 10, 14, 9, 0, 0, 0, time.UTC)
	chunks := store.New([]*domain.Chunk{
		{ID: "slack:msg:1", SourceFile: "slack.md", Text: "invoke failures spiked during the rollout window", Timestamp: &ts, Kind: domain.ChunkKindMessage},
	})
	svc := newPipeline(model, chunks)

	out, err := svc.Answer(context.Background(), AskInput{Question: "What customer complaints did we receive?"})
	require.NoError(t, err)
	assert.Equal(t, verify.RefusalText, out.Verdict.Answer)
	assert.Equal(t, domain.ConfidenceNone, out.Verdict.Confidence)
	require.NoError(t, domain.ValidateVerdict(out.Verdict))
}

func TestAnswerSummaryModeHighConfidence(t *testing.T) {
	// Scenario: explicit Q4 2025 range with evidence from two distinct
	// weekly sources.
	model := &stubModel{
		embedding: []float32{1, 0},
		jsonByMarker: map[string]string{
			"identify EXACT": `{"evidence":[
				{"chunk_index":0,"quote":"it took about 6-9 minutes to get the first successful response"},
				{"chunk_index":1,"quote":"invoke failures spiked during the rollout window"}
			]}`,
		},
		defaultText: "I measured cold start and chased invoke failures. Sources: slack:msg:0, slack:msg:1",
	}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "What was I working on in Q4 2025?"})
	require.NoError(t, err)

	assert.Equal(t, domain.ConfidenceHigh, out.Verdict.Confidence)
	assert.Len(t, out.Verdict.Citations, 2)
	require.NoError(t, domain.ValidateVerdict(out.Verdict))
}

func TestAnswerMalformedExtractionRefuses(t *testing.T) {
	// Scenario: extraction output is garbage; the pipeline refuses no
	// matter how relevant the chunks were.
	model := &stubModel{
		embedding:   []float32{1, 0},
		defaultJSON: "sorry, here is some prose instead of JSON",
	}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?"})
	require.NoError(t, err)
	assert.Equal(t, verify.RefusalText, out.Verdict.Answer)
	assert.Equal(t, domain.ConfidenceNone, out.Verdict.Confidence)
}

func TestAnswerDebugPayload(t *testing.T) {
	model := &stubModel{
		embedding: []float32{1, 0},
		jsonByMarker: map[string]string{
			"identify EXACT": `{"evidence":[{"chunk_index":0,"quote":"it took about 6-9 minutes to get the first successful response"}]}`,
			"semantically support": `{"state":"yes"}`,
		},
		defaultText: "Cold start took about 6-9 minutes. Sources: slack:msg:0",
	}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?", Debug: true})
	require.NoError(t, err)

	require.NotNil(t, out.Debug)
	assert.Equal(t, "How long did cold start take?", out.Debug.ParsedQuery.Query)
	assert.Equal(t, domain.AnswerModeFact, out.Debug.Mode)
	assert.NotEmpty(t, out.Debug.RetrievedChunks)
	require.Len(t, out.Debug.Evidence, 1)
	assert.Equal(t, "slack:msg:0", out.Debug.Evidence[0].ChunkID)
	assert.NotEmpty(t, out.Debug.RawExtraction)
}

func TestAnswerDebugOmittedByDefault(t *testing.T) {
	model := &stubModel{embedding: []float32{1, 0}, defaultJSON: `{"evidence":[]}`}
	svc := newPipeline(model, coldStartStore())

	out, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?"})
	require.NoError(t, err)
	assert.Nil(t, out.Debug)
}

func TestAnswerSavesAskLog(t *testing.T) {
	model := &stubModel{embedding: []float32{1, 0}, defaultJSON: `{"evidence":[]}`}

	logger := new(MockAskLogger)
	logger.On("Save", mock.Anything, mock.MatchedBy(func(e *AskLog) bool {
		return e.Question == "How long did cold start take?" &&
			e.Confidence == domain.ConfidenceNone &&
			e.CitationCount == 0
	})).Return(nil)

	router := &stubRouter{}
	svc := NewAnswerService(
		query.NewParser(),
		NewPrefixClassifier(),
		retrieval.NewRetriever(coldStartStore(), router, model),
		evidence.NewExtractor(model),
		verify.NewGate(model),
		nil,
		logger,
	)

	_, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?"})
	require.NoError(t, err)
	logger.AssertExpectations(t)
}

func TestAnswerAskLogFailureIsNonFatal(t *testing.T) {
	model := &stubModel{embedding: []float32{1, 0}, defaultJSON: `{"evidence":[]}`}
	logger := new(MockAskLogger)
	logger.On("Save", mock.Anything, mock.Anything).Return(errors.New("db down"))

	router := &stubRouter{}
	svc := NewAnswerService(
		query.NewParser(),
		NewPrefixClassifier(),
		retrieval.NewRetriever(coldStartStore(), router, model),
		evidence.NewExtractor(model),
		verify.NewGate(model),
		nil,
		logger,
	)

	out, err := svc.Answer(context.Background(), AskInput{Question: "How long did cold start take?"})
	require.NoError(t, err)
	require.NotNil(t, out.Verdict)
}
