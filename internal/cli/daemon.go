package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rat-crawler/ratcrawler/internal/dashboard"
	"github.com/rat-crawler/ratcrawler/internal/supervisor"
)

func newDaemonCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the supervisor daemon with the dashboard",
		Long: `Daemon runs the hour-of-day supervisor loop (crawling, backlink
discovery, idle) and serves the read-only dashboard alongside it.
It runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), opts, port, cmd.Flags().Changed("port"))
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "dashboard listen port (0 picks a free port, overrides the config)")

	return cmd
}

func newDashboardCommand(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only stats dashboard",
		Long: `Dashboard serves crawl statistics from the catalog over HTTP without
running any engine. Useful next to a daemon on another machine sharing
the same catalog file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), opts, port, cmd.Flags().Changed("port"))
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (0 picks a free port, overrides the config)")

	return cmd
}

func runDaemon(ctx context.Context, opts *rootOptions, port int, havePort bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if havePort {
		cfg.DashboardPort = port
	}

	db, err := opts.openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sup := supervisor.New(cfg, db)
	defer sup.Close()
	dash := dashboard.New(db, cfg.DashboardPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return dash.Run(gctx) })
	return g.Wait()
}

func runDashboard(ctx context.Context, opts *rootOptions, port int, havePort bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if havePort {
		cfg.DashboardPort = port
	}

	db, err := opts.openCatalog(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return dashboard.New(db, cfg.DashboardPort).Run(ctx)
}
