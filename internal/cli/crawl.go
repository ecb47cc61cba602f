package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/crawler"
)

// seedBatch is how many stored seeds a one-shot crawl picks up when no
// URLs are given on the command line.
const seedBatch = 50

func newCrawlCommand(opts *rootOptions) *cobra.Command {
	var (
		urls          []string
		maxPages      int
		maxDepth      int
		respectRobots bool
	)

	cmd := &cobra.Command{
		Use:   "crawl [url]...",
		Short: "Run one crawl session",
		Long: `Crawl runs a single session from the given seed URLs and prints a
summary. Without URLs it crawls the highest-priority seeds stored in
the catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.MaxPages = maxPages
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("respect-robots-txt") {
				cfg.RespectRobotsTxt = respectRobots
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := opts.openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			seeds := append([]string{}, urls...)
			seeds = append(seeds, args...)
			if len(seeds) == 0 {
				stored, err := db.Seeds(seedBatch)
				if err != nil {
					return err
				}
				for _, sd := range stored {
					seeds = append(seeds, sd.URL)
				}
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no seed URLs: pass --url or add some with \"ratcrawler seeds add\"")
			}

			eng := crawler.NewEngine(cfg, db)
			defer eng.Close()

			result, err := eng.Run(cmd.Context(), seeds)
			if err != nil {
				return err
			}
			printCrawlResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "seed URL (repeatable)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget for this session (overrides the config)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "link depth limit (overrides the config)")
	cmd.Flags().BoolVar(&respectRobots, "respect-robots-txt", true, "consult robots.txt before fetching")

	return cmd
}

func printCrawlResult(w io.Writer, r *crawler.Result) {
	fmt.Fprintf(w, "Session:         %s\n", r.SessionID)
	fmt.Fprintf(w, "Status:          %s\n", r.Status)
	fmt.Fprintf(w, "Pages crawled:   %d\n", r.PagesCrawled)
	fmt.Fprintf(w, "Pages unchanged: %d\n", r.PagesUnchanged)
	fmt.Fprintf(w, "Errors:          %d\n", r.ErrorCount)
	fmt.Fprintf(w, "Robots skipped:  %d\n", r.RobotsSkipped)
	fmt.Fprintf(w, "Non-HTML:        %d\n", r.NonHTMLSkipped)
	fmt.Fprintf(w, "URLs queued:     %d (%d duplicates dropped)\n", r.URLsQueued, r.Duplicates)
	fmt.Fprintf(w, "Duration:        %s\n", r.Duration.Round(time.Millisecond))
}
