package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitCmd creates the init command.
func InitCmd() *cobra.Command {
	var (
		apiURL   string
		apiToken string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Save client configuration",
		Long:  "Saves the server URL and API token to the global config file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(apiURL, apiToken)
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "Server base URL")
	cmd.Flags().StringVar(&apiToken, "token", "", "API token (leave empty for unauthenticated servers)")

	return cmd
}

func runInit(apiURL, apiToken string) error {
	config := &GlobalConfig{
		APIURL:   apiURL,
		APIToken: apiToken,
	}

	if err := SaveGlobalConfig(config); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Verify the server is reachable before declaring success
	api, err := NewAPIClientWithConfig(apiToken, apiURL)
	if err != nil {
		return err
	}
	if _, err := api.Get("/health"); err != nil {
		fmt.Printf("config saved to %s (warning: server unreachable: %v)\n", configPath, err)
		return nil
	}

	fmt.Printf("config saved to %s\n", configPath)
	return nil
}
