package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"orbitcam/internal/app"
	"orbitcam/internal/config"
	"orbitcam/internal/repository/sqlite"
)

func newCatalogCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the observation catalog",
	}

	cmd.AddCommand(newCatalogRebuildCmd(root), newCatalogStatsCmd(root))
	return cmd
}

func openCatalog(cfg *config.Config) (*sqlite.DB, error) {
	if cfg.CatalogPath == "" {
		return nil, fmt.Errorf("catalog disabled (CATALOG_PATH is empty)")
	}
	path := cfg.Resolve(cfg.CatalogPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	return sqlite.New(path)
}

func newCatalogRebuildCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-index the image archive and record log into the catalog",
		Long: `Replaces every catalog row with observations recovered from the record log.
Each row is matched to its archived image by timestamp, and the coordinates
are read back from the image's GPS tags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			db, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			imageDir := cfg.Resolve(cfg.ImageDirectory)
			dataFile := cfg.Resolve(cfg.DataFile)
			slog.Info("Rebuilding catalog", "images", imageDir, "records", dataFile)

			result, err := app.RebuildCatalog(sqlite.NewObservationRepository(db), imageDir, dataFile, app.RebuildRunID(time.Now()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Inserted %d observations\n", result.Inserted)
			if result.Untagged > 0 {
				fmt.Fprintf(out, "  %d images without readable GPS tags\n", result.Untagged)
			}
			if result.Unmatched > 0 {
				fmt.Fprintf(out, "  %d images without a record\n", result.Unmatched)
			}
			if result.Skipped > 0 {
				fmt.Fprintf(out, "  %d entries skipped (bad timestamp)\n", result.Skipped)
			}
			return nil
		},
	}
}

func newCatalogStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			db, err := openCatalog(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := sqlite.NewObservationRepository(db).GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Observations: %d (%d discarded) across %d runs\n", stats.Total, stats.Discarded, stats.Runs)
			if !stats.FirstCapture.IsZero() {
				fmt.Fprintf(out, "Captured between %s and %s\n",
					stats.FirstCapture.Format(time.RFC3339), stats.LastCapture.Format(time.RFC3339))
			}
			printCounts(cmd, "Per label", stats.PerLabel)
			printCounts(cmd, "Per country", stats.PerCountry)
			return nil
		},
	}
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, counts[k])
	}
}
