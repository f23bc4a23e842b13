package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AskRequest represents the ask API request.
type AskRequest struct {
	Question string `json:"question"`
	Debug    bool   `json:"debug,omitempty"`
}

// AskCitation represents one citation in an answer.
type AskCitation struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	ChunkID   string `json:"chunk_id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AskResponse represents the ask API response.
type AskResponse struct {
	Answer     string          `json:"answer"`
	Confidence string          `json:"confidence"`
	Citations  []AskCitation   `json:"citations"`
	Reasoning  string          `json:"reasoning,omitempty"`
	Debug      json.RawMessage `json:"debug,omitempty"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about your data",
		Long:  "Asks a question against the ingested corpus and prints the cited answer.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], debug, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Include pipeline internals in the response")

	return cmd
}

func runAsk(cmd *cobra.Command, question string, debug, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/ask", AskRequest{Question: question, Debug: debug})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(askResp.Answer)
	fmt.Printf("\nconfidence: %s\n", askResp.Confidence)

	if len(askResp.Citations) > 0 {
		fmt.Println("citations:")
		for _, c := range askResp.Citations {
			if c.Timestamp != "" {
				fmt.Printf("  - [%s] %s (%s)\n", c.Source, c.Text, c.Timestamp)
			} else {
				fmt.Printf("  - [%s] %s\n", c.Source, c.Text)
			}
		}
	}

	if debug && len(askResp.Debug) > 0 {
		pretty, _ := json.MarshalIndent(json.RawMessage(askResp.Debug), "", "  ")
		fmt.Printf("\ndebug:\n%s\n", string(pretty))
	}

	return nil
}
