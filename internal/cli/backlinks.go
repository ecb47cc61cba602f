package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/backlink"
	"github.com/rat-crawler/ratcrawler/internal/report"
)

func newBacklinksCommand(opts *rootOptions) *cobra.Command {
	var (
		maxDepth int
		topN     int
	)

	cmd := &cobra.Command{
		Use:   "backlinks <url>...",
		Short: "Discover backlinks pointing at the given URLs",
		Long: `Backlinks runs BFS discovery around each target URL, stores every
backlink it finds, recomputes the domain and page scores, and prints
the per-target analysis followed by the catalog-wide totals.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-depth") {
				cfg.MaxDepth = maxDepth
			}

			db, err := opts.openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			eng := backlink.NewEngine(cfg, db)
			defer eng.Close()

			out := cmd.OutOrStdout()
			for _, target := range args {
				analysis, _, err := eng.DiscoverBacklinks(cmd.Context(), target, cfg.MaxDepth)
				if err != nil {
					return fmt.Errorf("backlink discovery for %s: %w", target, err)
				}
				printAnalysis(out, analysis)
			}

			rep, err := report.BuildBacklinkReport(db, topN)
			if err != nil {
				return err
			}
			printBacklinkReport(out, rep)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "BFS depth limit (overrides the config)")
	cmd.Flags().IntVar(&topN, "top", 10, "how many top domains and pages to print")

	return cmd
}

func printAnalysis(w io.Writer, a *backlink.Analysis) {
	fmt.Fprintf(w, "Target:           %s\n", a.TargetURL)
	fmt.Fprintf(w, "Backlinks:        %d\n", a.TotalBacklinks)
	fmt.Fprintf(w, "Unique domains:   %d\n", a.UniqueDomains)
	fmt.Fprintf(w, "Spam backlinks:   %d\n", a.SpamBacklinks)
	fmt.Fprintf(w, "Domain authority: %.1f\n", a.DomainAuthority)
	fmt.Fprintf(w, "PageRank:         %.1f\n", a.PageRankScore)
	fmt.Fprintf(w, "Pages visited:    %d\n", a.PagesVisited)
	fmt.Fprintf(w, "Duration:         %s\n", a.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
}

func printBacklinkReport(w io.Writer, rep *report.BacklinkReport) {
	fmt.Fprintf(w, "Catalog totals:   %d backlinks from %d domains (%d spam, %d nofollow)\n",
		rep.TotalBacklinks, rep.UniqueDomains, rep.SpamBacklinks, rep.NofollowBacklinks)
	if len(rep.TopDomains) > 0 {
		fmt.Fprintln(w, "Top domains by authority:")
		for i, ds := range rep.TopDomains {
			fmt.Fprintf(w, "  %2d. %-42s %6.1f  (%d backlinks)\n",
				i+1, ds.Domain, ds.AuthorityScore, ds.TotalBacklinks)
		}
	}
	if len(rep.TopPages) > 0 {
		fmt.Fprintln(w, "Top pages by rank:")
		for i, ps := range rep.TopPages {
			fmt.Fprintf(w, "  %2d. %-58s %6.1f\n", i+1, ps.URL, ps.Score)
		}
	}
}
