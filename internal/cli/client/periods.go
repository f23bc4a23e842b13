package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Period represents one entry in the periods API response.
type Period struct {
	PeriodKey      string `json:"period_key"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	ChunkCount     int    `json:"chunk_count"`
	SummaryPreview string `json:"summary_preview"`
}

// PeriodListResponse represents the periods API response.
type PeriodListResponse struct {
	Periods []Period `json:"periods"`
	Count   int      `json:"count"`
}

// PeriodsCmd creates the periods command.
func PeriodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "List indexed periods",
		Long:  "Lists the weekly periods in the index with their summaries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPeriods(cmd, outputJSON)
		},
	}
}

func runPeriods(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/periods")
	if err != nil {
		return fmt.Errorf("failed to list periods: %w", err)
	}

	var listResp PeriodListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse periods: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if listResp.Count == 0 {
		fmt.Println("no periods indexed")
		return nil
	}

	for _, p := range listResp.Periods {
		fmt.Printf("%s  %s .. %s  %d chunks\n", p.PeriodKey, p.StartDate, p.EndDate, p.ChunkCount)
		if p.SummaryPreview != "" {
			fmt.Printf("    %s\n", p.SummaryPreview)
		}
	}

	return nil
}
