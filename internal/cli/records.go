package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orbitcam/internal/records"
)

func newRecordsCmd(root *rootOptions) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print the record log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			recs, err := records.ReadAll(cfg.Resolve(cfg.DataFile))
			if err != nil {
				return err
			}
			if tail > 0 && len(recs) > tail {
				recs = recs[len(recs)-tail:]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(records.Header, "\t"))
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.Timestamp, rec.Country, rec.City, rec.Label)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Only print the last N records")

	return cmd
}
