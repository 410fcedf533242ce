// Package app wires the command-line interface for erbil-api.
package app

import (
	"github.com/spf13/cobra"
)

var (
	configFile string

	// RootCmd is the root command for erbil-api.
	RootCmd = &cobra.Command{
		Use:   "erbil-api",
		Short: "Flight-board API for Erbil International Airport",
		Long: `erbil-api scrapes the Erbil International Airport flight board,
caches the schedule in memory, and serves it over a small JSON API with
arrival/departure filtering and a manual-refresh endpoint.

Examples:
  # Run the API server
  erbil-api serve

  # Scrape the board once and print it
  erbil-api fetch

  # Use a config file (source URL, cache TTL, page-shape profile)
  erbil-api serve --config /etc/erbil-api.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(fetchCmd)
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
