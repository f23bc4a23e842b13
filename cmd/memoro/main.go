package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memoro-ai/memoro/internal/cli"
	"github.com/memoro-ai/memoro/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "memoro",
		Short: "Memoro CLI - ask questions about your own data",
		Long: `Memoro CLI asks questions against your ingested personal corpus.

Environment variables:
  MEMORO_API_TOKEN  API token (only needed when the server requires auth)
  MEMORO_API_URL    API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.PeriodsCmd())
	rootCmd.AddCommand(client.HealthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
