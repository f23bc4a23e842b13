package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/memoro-ai/memoro/internal/domain"
)

// PeriodIndex is the slice of the coarse index the refresh job needs.
type PeriodIndex interface {
	Refresh(ctx context.Context) error
	Periods(ctx context.Context) ([]*domain.PeriodSummary, error)
}

// SummaryRefreshProcessor rebuilds the period index on each poll. Periods
// whose member chunks are unchanged come back from the cache; periods left
// with a placeholder summary by an earlier model failure are retried.
type SummaryRefreshProcessor struct {
	index PeriodIndex
}

func NewSummaryRefreshProcessor(index PeriodIndex) *SummaryRefreshProcessor {
	return &SummaryRefreshProcessor{index: index}
}

// ProcessJobs implements the JobProcessor interface.
func (p *SummaryRefreshProcessor) ProcessJobs(ctx context.Context) error {
	if err := p.index.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh period index: %w", err)
	}

	periods, err := p.index.Periods(ctx)
	if err != nil {
		return fmt.Errorf("failed to list periods after refresh: %w", err)
	}

	pending := 0
	for _, s := range periods {
		if s.SummaryText == domain.PlaceholderSummary {
			pending++
		}
	}
	if pending > 0 {
		log.Printf("Period refresh left %d of %d summaries pending", pending, len(periods))
	}
	return nil
}
