package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sh3rwan/erbil-api/internal/config"
	"github.com/sh3rwan/erbil-api/internal/scrape"
	"github.com/sh3rwan/erbil-api/pkg/models"
)

var fetchJSON bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrape the flight board once and print the result",
	Long: `fetch runs a single scrape against the configured source URL and prints
the extracted records. Output is a table on a terminal and JSON when piped
(or when --json is set), so it slots into shell pipelines and cron checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		clientOpts := []scrape.Option{
			scrape.WithTimeout(cfg.FetchTimeout),
			scrape.WithProfile(cfg.Profile),
		}
		if cfg.UserAgent != "" {
			clientOpts = append(clientOpts, scrape.WithUserAgent(cfg.UserAgent))
		}
		client := scrape.NewClient(cfg.SourceURL, clientOpts...)

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout+5*time.Second)
		defer cancel()

		records, err := client.Fetch(ctx)
		if err != nil {
			return err
		}

		if fetchJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		printTable(records)
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "always emit JSON, even on a terminal")
}

func printTable(records []models.FlightRecord) {
	if len(records) == 0 {
		fmt.Println("No flights extracted.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tTIME\tFLIGHT\tCITY\tAIRLINE\tSTATUS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Kind, r.ScheduledAt.Format("Mon 15:04"), r.FlightNumber, r.City, r.Airline, r.Status)
	}
	w.Flush()
	fmt.Printf("\n%d flights\n", len(records))
}
