package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/service"
)

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Answer(ctx context.Context, input service.AskInput) (*service.AskOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AskOutput), args.Error(1)
}

func newTestVerdict() *domain.Verdict {
	ts := time.Date(2025, 12, 22, 10, 15, 0, 0, time.UTC)
	return &domain.Verdict{
		Answer:     "I shipped the batching change on Monday.\n\nSources: slack:msg:0",
		Confidence: domain.ConfidenceHigh,
		Citations: []domain.Citation{
			{Text: "shipped the batching change", Source: "slack.md", ChunkID: "slack:msg:0", Timestamp: &ts},
			{Text: "latency dropped after the rollout", Source: "notes.md", ChunkID: "notes:chunk:2"},
		},
		Reasoning: "Evidence verified against retrieved chunks.",
	}
}

func TestAskHandler_Success(t *testing.T) {
	mockSvc := new(MockAnswerService)
	handler := NewAskHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, mock.MatchedBy(func(input service.AskInput) bool {
		return input.Question == "what did I ship?" && !input.Debug
	})).Return(&service.AskOutput{Verdict: newTestVerdict()}, nil)

	body := `{"question":"what did I ship?"}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "high", resp.Data.Confidence)
	assert.Len(t, resp.Data.Citations, 2)
	assert.Equal(t, "slack:msg:0", resp.Data.Citations[0].ChunkID)
	assert.Equal(t, "2025-12-22T10:15:00Z", resp.Data.Citations[0].Timestamp)
	assert.Empty(t, resp.Data.Citations[1].Timestamp)
	assert.Nil(t, resp.Data.Debug)
	mockSvc.AssertExpectations(t)
}

func TestAskHandler_DebugPassthrough(t *testing.T) {
	mockSvc := new(MockAnswerService)
	handler := NewAskHandler(mockSvc)

	out := &service.AskOutput{
		Verdict: newTestVerdict(),
		Debug: &service.DebugPayload{
			Mode: domain.AnswerModeFact,
		},
	}
	mockSvc.On("Answer", mock.Anything, mock.MatchedBy(func(input service.AskInput) bool {
		return input.Debug
	})).Return(out, nil)

	body := `{"question":"what did I ship?","debug":true}`
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data AskResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Debug)
	assert.Equal(t, domain.AnswerModeFact, resp.Data.Debug.Mode)
}

func TestAskHandler_InvalidBody(t *testing.T) {
	mockSvc := new(MockAnswerService)
	handler := NewAskHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	mockSvc.AssertNotCalled(t, "Answer")
}

func TestAskHandler_MissingQuestion(t *testing.T) {
	mockSvc := new(MockAnswerService)
	handler := NewAskHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":""}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question is required")
	mockSvc.AssertNotCalled(t, "Answer")
}

func TestAskHandler_ServiceError(t *testing.T) {
	mockSvc := new(MockAnswerService)
	handler := NewAskHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyQuestion)

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"   "}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "question cannot be empty")
}
