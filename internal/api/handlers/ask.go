package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/memoro-ai/memoro/internal/api"
	"github.com/memoro-ai/memoro/internal/domain"
	"github.com/memoro-ai/memoro/internal/service"
)

type AnswerService interface {
	Answer(ctx context.Context, input service.AskInput) (*service.AskOutput, error)
}

type AskHandler struct {
	svc AnswerService
}

func NewAskHandler(svc AnswerService) *AskHandler {
	return &AskHandler{svc: svc}
}

type AskRequest struct {
	Question string `json:"question"`
	Debug    bool   `json:"debug"`
}

type CitationResponse struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	ChunkID   string `json:"chunk_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

type AskResponse struct {
	Answer     string                `json:"answer"`
	Confidence string                `json:"confidence"`
	Citations  []CitationResponse    `json:"citations"`
	Reasoning  string                `json:"reasoning,omitempty"`
	Debug      *service.DebugPayload `json:"debug,omitempty"`
}

func verdictToResponse(v *domain.Verdict, debug *service.DebugPayload) *AskResponse {
	citations := make([]CitationResponse, len(v.Citations))
	for i, c := range v.Citations {
		citations[i] = CitationResponse{
			Text:    c.Text,
			Source:  c.Source,
			ChunkID: c.ChunkID,
		}
		if c.Timestamp != nil {
			citations[i].Timestamp = c.Timestamp.Format(time.RFC3339)
		}
	}
	return &AskResponse{
		Answer:     v.Answer,
		Confidence: string(v.Confidence),
		Citations:  citations,
		Reasoning:  v.Reasoning,
		Debug:      debug,
	}
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	out, err := h.svc.Answer(r.Context(), service.AskInput{
		Question: req.Question,
		Debug:    req.Debug,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, verdictToResponse(out.Verdict, out.Debug))
}
