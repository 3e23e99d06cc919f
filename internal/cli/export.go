package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"orbitcam/internal/export"
	"orbitcam/internal/records"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write the record log as a Parquet file",
		Example: `  orbitcam export --out data.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			recs, err := records.ReadAll(cfg.Resolve(cfg.DataFile))
			if err != nil {
				return err
			}
			if err := export.WriteParquet(out, recs); err != nil {
				return err
			}

			slog.Info("Export complete", "records", len(recs), "out", out)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(recs), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output Parquet file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
