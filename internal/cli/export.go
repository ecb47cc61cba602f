package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/report"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format    string
		outPath   string
		table     string
		maxRows   int
		delimiter string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export catalog tables to CSV, XLSX or JSON",
		Long: `Export materializes a catalog table (pages, backlinks or domains) as
a file. With --table all it writes one XLSX workbook holding every
table on its own sheet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			db, err := opts.openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			gen := report.NewGenerator(db)

			if table == "all" {
				if report.Format(format) != report.FormatXLSX {
					return fmt.Errorf("--table all writes a single xlsx workbook; pick one table for %s", format)
				}
				if err := report.ExportWorkbook(gen, outPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote workbook %s\n", outPath)
				return nil
			}

			ds, err := gen.Generate(report.Table(table), 0)
			if err != nil {
				return err
			}

			options := report.DefaultOptions()
			options.Format = report.Format(format)
			options.FilePath = outPath
			options.MaxRows = maxRows
			if delimiter != "" {
				options.Delimiter = []rune(delimiter)[0]
			}
			if err := report.NewExporter(options).Export(ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(ds.Rows), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format (csv, xlsx, json)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file path")
	cmd.Flags().StringVarP(&table, "table", "t", "all", "table to export (pages, backlinks, domains, all)")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "cap on exported rows (0 = all)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "CSV field delimiter (default comma)")

	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var (
		topN   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print aggregate crawl and backlink reports",
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

			crawlRep, err := report.BuildCrawlReport(db)
			if err != nil {
				return err
			}
			backlinkRep, err := report.BuildBacklinkReport(db, topN)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"crawl":    crawlRep,
					"backlink": backlinkRep,
				})
			}

			fmt.Fprintf(out, "Sessions:          %d\n", crawlRep.TotalSessions)
			for _, status := range sortedKeys(crawlRep.SessionsByStatus) {
				fmt.Fprintf(out, "  %-16s %d\n", status, crawlRep.SessionsByStatus[status])
			}
			fmt.Fprintf(out, "Pages:             %d\n", crawlRep.TotalPages)
			fmt.Fprintf(out, "Errors:            %d\n", crawlRep.TotalErrors)
			for _, errType := range sortedKeys(crawlRep.ErrorsByType) {
				fmt.Fprintf(out, "  %-16s %d\n", errType, crawlRep.ErrorsByType[errType])
			}
			fmt.Fprintf(out, "Avg response time: %.0f ms\n", crawlRep.AvgResponseTimeMS)
			fmt.Fprintf(out, "Avg word count:    %.0f\n", crawlRep.AvgWordCount)
			fmt.Fprintln(out)
			printBacklinkReport(out, backlinkRep)
			return nil
		},
	}

	cmd.Flags().IntVar(&topN, "top", 10, "how many top domains and pages to include")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as JSON")

	return cmd
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
