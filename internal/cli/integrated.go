package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/supervisor"
)

func newIntegratedCommand(opts *rootOptions) *cobra.Command {
	var maxAnalyses int

	cmd := &cobra.Command{
		Use:   "integrated <url>...",
		Short: "Crawl, then analyze backlinks for the crawled pages",
		Long: `Integrated runs one crawl session from the given seeds and then runs
backlink discovery on the pages that session stored, capped at
max_backlink_analyses. Source hosts of discovered backlinks are
promoted to seeds for later sessions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-analyses") {
				cfg.MaxBacklinkAnalyses = maxAnalyses
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := opts.openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			sup := supervisor.New(cfg, db)
			defer sup.Close()

			res, err := sup.RunIntegrated(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printCrawlResult(out, res.Crawl)
			fmt.Fprintln(out)
			printIntegratedReport(out, res.Report)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAnalyses, "max-analyses", 0, "pages analyzed for backlinks (overrides the config)")

	return cmd
}

func newDomainCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain <domain>",
		Short: "Crawl one domain and analyze its backlink profile",
		Args:  cobra.ExactArgs(1),
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

			sup := supervisor.New(cfg, db)
			defer sup.Close()

			da, err := sup.AnalyzeDomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Domain:           %s\n", da.Domain)
			fmt.Fprintf(out, "Pages crawled:    %d\n", da.PagesCrawled)
			fmt.Fprintf(out, "Crawl errors:     %d\n", da.CrawlErrors)
			fmt.Fprintf(out, "Domain authority: %.1f\n", da.DomainAuthority)
			fmt.Fprintln(out)
			printAnalysis(out, da.Backlinks)
			return nil
		},
	}

	return cmd
}

func printIntegratedReport(w io.Writer, rep *supervisor.CrawlReport) {
	fmt.Fprintf(w, "Analyses completed: %d\n", rep.BacklinkAnalysesCompleted)
	fmt.Fprintf(w, "Backlinks found:    %d\n", rep.TotalBacklinksFound)
	fmt.Fprintf(w, "Unique domains:     %d\n", rep.TotalUniqueDomains)
	fmt.Fprintf(w, "Spam backlinks:     %d\n", rep.TotalSpamBacklinks)
	fmt.Fprintf(w, "Avg authority:      %.1f\n", rep.AverageDomainAuthority)
	fmt.Fprintf(w, "Crawl errors:       %d\n", rep.CrawlErrors)
}
