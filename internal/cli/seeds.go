package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/supervisor"
	"github.com/rat-crawler/ratcrawler/internal/urlutil"
)

func newSeedsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Manage the stored seed list",
	}
	cmd.AddCommand(
		newSeedsAddCommand(opts),
		newSeedsListCommand(opts),
		newSeedsImportCommand(opts),
	)
	return cmd
}

func newSeedsAddCommand(opts *rootOptions) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "add <url>...",
		Short: "Add seed URLs to the catalog",
		Args:  cobra.MinimumNArgs(1),
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

			added := 0
			for _, raw := range args {
				normalized, err := urlutil.Normalize(raw)
				if err != nil || !urlutil.IsCrawlable(normalized) {
					return fmt.Errorf("%q is not a crawlable URL", raw)
				}
				if err := db.UpsertSeed(normalized, priority); err != nil {
					return err
				}
				added++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d seeds\n", added)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 5, "seed priority (higher is crawled sooner)")

	return cmd
}

func newSeedsListCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored seeds by priority",
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

			seeds, err := db.Seeds(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(seeds) == 0 {
				fmt.Fprintln(out, "no seeds stored")
				return nil
			}
			for _, sd := range seeds {
				last := "never"
				if sd.LastCrawled != nil {
					last = sd.LastCrawled.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(out, "priority=%d crawls=%d last_crawled=%s %s\n",
					sd.Priority, sd.CrawlCount, last, sd.URL)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum seeds to list")

	return cmd
}

func newSeedsImportCommand(opts *rootOptions) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import seeds from a JSON array file",
		Long: `Import reads a JSON array of URL strings, the same format the daemon
bootstraps from, and upserts each crawlable entry as a seed. Entries
that do not parse as crawlable URLs are skipped.`,
		Args: cobra.ExactArgs(1),
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

			urls, err := supervisor.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			imported, skipped := 0, 0
			for _, raw := range urls {
				normalized, err := urlutil.Normalize(raw)
				if err != nil || !urlutil.IsCrawlable(normalized) {
					skipped++
					continue
				}
				if err := db.UpsertSeed(normalized, priority); err != nil {
					return err
				}
				imported++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d seeds (%d skipped)\n", imported, skipped)
			return nil
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 5, "priority assigned to imported seeds")

	return cmd
}
