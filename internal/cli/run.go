package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"orbitcam/internal/app"
	"orbitcam/internal/pipeline"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		budget   time.Duration
		interval time.Duration
		listen   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture loop until the budget is spent",
		Example: `  # Default budget (170m) and interval (9s)
  orbitcam run

  # Short bench run with the status server enabled
  LOCATION_SOURCE=static STATIC_LAT=44.43 STATIC_LON=26.1 orbitcam run --budget 5m --listen :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("budget") {
				cfg.RunBudget = budget
			}
			if cmd.Flags().Changed("interval") {
				cfg.CaptureInterval = interval
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			stats := application.Run(cmd.Context())
			printSummary(cmd, application.RunID(), stats)
			return nil
		},
	}

	cmd.Flags().DurationVar(&budget, "budget", 0, "Total run time (overrides RUN_BUDGET)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Pause after every iteration (overrides CAPTURE_INTERVAL)")
	cmd.Flags().StringVar(&listen, "listen", "", "Status server address, empty to disable (overrides LISTEN_ADDR)")

	return cmd
}

func printSummary(cmd *cobra.Command, runID string, stats pipeline.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s finished\n", runID)
	fmt.Fprintf(out, "  iterations: %d\n", stats.Iterations)
	fmt.Fprintf(out, "  recorded:   %d\n", stats.Recorded)
	fmt.Fprintf(out, "  discarded:  %d\n", stats.Discarded)
	for _, kind := range []pipeline.Kind{pipeline.KindCapture, pipeline.KindClassify, pipeline.KindResolve, pipeline.KindPersist} {
		if n := stats.Failures[kind]; n > 0 {
			fmt.Fprintf(out, "  %s failures: %d\n", kind, n)
		}
	}
}
