package handlers

import (
	"context"
	"net/http"

	"github.com/memoro-ai/memoro/internal/api"
	"github.com/memoro-ai/memoro/internal/domain"
)

const summaryPreviewLen = 240

type PeriodIndex interface {
	Periods(ctx context.Context) ([]*domain.PeriodSummary, error)
}

type PeriodsHandler struct {
	index PeriodIndex
}

func NewPeriodsHandler(index PeriodIndex) *PeriodsHandler {
	return &PeriodsHandler{index: index}
}

type PeriodResponse struct {
	PeriodKey      string `json:"period_key"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	ChunkCount     int    `json:"chunk_count"`
	SummaryPreview string `json:"summary_preview"`
}

type PeriodListResponse struct {
	Periods []PeriodResponse `json:"periods"`
	Count   int              `json:"count"`
}

func (h *PeriodsHandler) List(w http.ResponseWriter, r *http.Request) {
	periods, err := h.index.Periods(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]PeriodResponse, len(periods))
	for i, p := range periods {
		responses[i] = PeriodResponse{
			PeriodKey:      p.PeriodKey,
			StartDate:      p.StartDate.Format("2006-01-02"),
			EndDate:        p.EndDate.Format("2006-01-02"),
			ChunkCount:     len(p.ChunkIDs),
			SummaryPreview: previewSummary(p.SummaryText),
		}
	}

	api.Success(w, http.StatusOK, PeriodListResponse{
		Periods: responses,
		Count:   len(responses),
	})
}

func previewSummary(text string) string {
	if len(text) <= summaryPreviewLen {
		return text
	}
	return text[:summaryPreviewLen] + "..."
}
