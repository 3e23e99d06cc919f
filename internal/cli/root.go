// Package cli defines the orbitcam command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"orbitcam/internal/config"
)

type rootOptions struct {
	configPath string
	baseDir    string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "orbitcam",
		Short: "Time-boxed capture, classify and record loop for an orbiting camera",
		Long: `orbitcam captures geotagged images at a fixed interval, classifies each one
with an on-device model, resolves the position to a country and city, and
appends one row per capture to a CSV record log until the run budget is spent.

Configuration comes from defaults, an optional YAML file (--config), the
environment (and a .env file), and finally command-line flags.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.baseDir, "base-dir", "", "Base directory for all relative paths (overrides BASE_DIR)")

	cmd.AddCommand(
		newRunCmd(opts),
		newLocateCmd(opts),
		newRecordsCmd(opts),
		newExportCmd(opts),
		newCatalogCmd(opts),
	)

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.baseDir != "" {
		cfg.BaseDirectory = o.baseDir
	}
	return cfg, nil
}
