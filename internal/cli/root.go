// Package cli wires the engines, the supervisor and the catalog surfaces
// into a cobra command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/config"
	"github.com/rat-crawler/ratcrawler/internal/storage"
)

// rootOptions holds the global flag values shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	logJSON    bool
}

// Execute runs the command line and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command context so long-running commands shut down
// cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	var (
		daemonMode    bool
		dashboardOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ratcrawler",
		Short: "Autonomous web crawler and backlink discovery daemon",
		Long: `ratcrawler crawls the web from a prioritized seed list, discovers
backlinks pointing at the pages it finds, and stores everything in a
single SQLite catalog. Run it as a daemon that alternates between
crawling and backlink discovery on an hourly schedule, or invoke the
engines one-shot from the subcommands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case daemonMode:
				return runDaemon(cmd.Context(), opts, 0, false)
			case dashboardOnly:
				return runDashboard(cmd.Context(), opts, 0, false)
			default:
				return cmd.Help()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a JSON config file")
	pf.StringVar(&opts.dbPath, "db", "", "path of the SQLite catalog (overrides the config)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")

	cmd.Flags().BoolVar(&daemonMode, "daemon", false, "run the supervisor daemon (same as the daemon command)")
	cmd.Flags().BoolVar(&dashboardOnly, "dashboard-only", false, "serve the dashboard without running any engine")

	cmd.AddCommand(
		newCrawlCommand(opts),
		newBacklinksCommand(opts),
		newIntegratedCommand(opts),
		newDomainCommand(opts),
		newDaemonCommand(opts),
		newDashboardCommand(opts),
		newSeedsCommand(opts),
		newExportCommand(opts),
		newReportCommand(opts),
		newStatsCommand(opts),
		newConfigCommand(opts),
	)

	return cmd
}

func (o *rootOptions) setupLogging() error {
	level, err := logrus.ParseLevel(o.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", o.logLevel)
	}
	logrus.SetLevel(level)
	if o.logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// loadConfig resolves the effective configuration: file if given, defaults
// otherwise, with the --db override applied on top.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if o.dbPath != "" {
		cfg.DatabasePath = o.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCatalog opens and migrates the catalog. Failure here is fatal to the
// command.
func (o *rootOptions) openCatalog(cfg *config.Config) (*storage.Database, error) {
	db, err := storage.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", cfg.DatabasePath, err)
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize catalog %s: %w", cfg.DatabasePath, err)
	}
	return db, nil
}
