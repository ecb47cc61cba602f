package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the latest dashboard statistics snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			db, err := opts.openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.GetDashboardStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stats == nil {
				fmt.Fprintln(out, "no statistics recorded yet; run the daemon or a crawl first")
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(out, "URLs crawled:     %d\n", stats.TotalURLsCrawled)
			fmt.Fprintf(out, "Backlinks found:  %d\n", stats.TotalBacklinksFound)
			fmt.Fprintf(out, "Unique domains:   %d\n", stats.UniqueDomains)
			fmt.Fprintf(out, "Crawl rate:       %.1f pages/hour\n", stats.CrawlRatePerHour)
			fmt.Fprintf(out, "Backlink rate:    %.1f links/hour\n", stats.BacklinkRatePerHour)
			fmt.Fprintf(out, "Catalog size:     %.2f MB\n", stats.DatabaseSizeMB)
			fmt.Fprintf(out, "Current mode:     %s\n", stats.CurrentMode)
			fmt.Fprintf(out, "Next mode switch: %s\n", stats.NextModeSwitch.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Last updated:     %s\n", stats.LastUpdated.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")

	return cmd
}
