package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memoro-ai/memoro/internal/cli"
	"github.com/memoro-ai/memoro/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memorod",
		Short: "Memoro daemon",
		Long:  "Memoro daemon for serving the ask API and managing the period index",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IndexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
