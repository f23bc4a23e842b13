package style

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/openai"
)

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateText(ctx context.Context, prompt string, opts openai.CompletionOptions) (string, error) {
	args := m.Called(ctx, prompt, opts)
	return args.String(0), args.Error(1)
}

func verdict(answer string) *domain.Verdict {
	return &domain.Verdict{
		Answer:     answer,
		Confidence: domain.ConfidenceHigh,
		Citations: []domain.Citation{
			{Text: "quote one", Source: "slack.md", ChunkID: "slack:msg:0"},
			{Text: "quote two", Source: "slack.md", ChunkID: "slack:msg:1"},
		},
		Reasoning: "Based on 2 valid citation(s) from retrieved context.",
	}
}

func TestApplyRestyles(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("I shipped the deploy and it took 6-9 minutes.", nil)

	r := NewRewriter(gen, "Concise, direct.")
	in := verdict("The deploy took about 6-9 minutes to complete.\n\nSources: slack:msg:0, slack:msg:1")
	out := r.Apply(context.Background(), in)

	assert.Contains(t, out.Answer, "I shipped the deploy")
	// The Sources line survives rewriting verbatim.
	assert.Contains(t, out.Answer, "Sources: slack:msg:0, slack:msg:1")
	// Citations pass through untouched.
	assert.Equal(t, in.Citations, out.Citations)
	assert.Equal(t, in.Confidence, out.Confidence)
}

func TestApplySkipsRefusals(t *testing.T) {
	gen := new(MockGenerator)
	r := NewRewriter(gen, "")

	// Includes the sensitive-block answers: any confidence-none verdict
	// stays untouched no matter how its text reads.
	for _, answer := range []string{
		"I do not see this in your data.",
		"Sorry, I don't see that anywhere.",
		"I cannot share sensitive information like credentials, passwords, or API keys.",
		"I cannot share that because it contains sensitive information.",
	} {
		v := domain.Refusal(answer, "no evidence")
		out := r.Apply(context.Background(), v)
		assert.Equal(t, v, out)
	}
	gen.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplySkipsQuoteOnly(t *testing.T) {
	gen := new(MockGenerator)
	r := NewRewriter(gen, "")

	in := verdict("From my data:\n- it took about 6-9 minutes")
	out := r.Apply(context.Background(), in)

	assert.Equal(t, in, out)
	gen.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplySkipsShortAnswers(t *testing.T) {
	gen := new(MockGenerator)
	r := NewRewriter(gen, "")

	in := verdict("Yes.")
	out := r.Apply(context.Background(), in)

	assert.Equal(t, in, out)
	gen.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyFailureKeepsOriginal(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model unavailable"))

	r := NewRewriter(gen, "")
	in := verdict("The deploy took about 6-9 minutes.\n\nSources: slack:msg:0")
	out := r.Apply(context.Background(), in)

	assert.Contains(t, out.Answer, "The deploy took about 6-9 minutes.")
	assert.Contains(t, out.Answer, "Sources: slack:msg:0")
}

func TestApplyEmptyRewriteKeepsOriginal(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("   ", nil)

	r := NewRewriter(gen, "")
	in := verdict("The deploy took about 6-9 minutes.")
	out := r.Apply(context.Background(), in)

	assert.Equal(t, "The deploy took about 6-9 minutes.", out.Answer)
}

func TestApplyNilVerdict(t *testing.T) {
	r := NewRewriter(new(MockGenerator), "")
	require.Nil(t, r.Apply(context.Background(), nil))
}
