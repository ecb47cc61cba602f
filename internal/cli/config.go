package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rat-crawler/ratcrawler/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and scaffold configuration files",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigShowCommand(opts),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		outPath string
		preset  string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with one of the presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := presetConfig(preset)
			if err != nil {
				return err
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
				}
			}
			if err := cfg.Save(outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", preset, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "ratcrawler.json", "where to write the config file")
	cmd.Flags().StringVar(&preset, "preset", "default", "config preset (default, conservative, aggressive)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	return cmd
}

func presetConfig(name string) (*config.Config, error) {
	switch name {
	case "default":
		return config.DefaultConfig(), nil
	case "conservative":
		return config.ConservativeConfig(), nil
	case "aggressive":
		return config.AggressiveConfig(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q (default, conservative, aggressive)", name)
	}
}
