// File: cmd/demo.go
package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/monitor"
	"github.com/xkilldash9x/authsim/internal/observability"
)

// newDemoCmd creates the `demo` command: a short, fixed run for a first look.
func newDemoCmd(stores storeProvider) *cobra.Command {
	var (
		count    int
		interval time.Duration
	)

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Runs a few detections and prints each verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			runID := uuid.NewString()
			sink, cleanup, err := stores.Sink(ctx, cfg, runID, logger)
			if err != nil {
				return fmt.Errorf("failed to open detection sinks: %w", err)
			}
			defer cleanup()

			m, err := newMonitor(ctx, cfg, sink, logger)
			if err != nil {
				return err
			}
			loop, err := monitor.NewLoop(m, interval, count, runID, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Behavioural monitoring demo using %s\n", m.ModelName())
			loop.OnDetection = func(tick int, rec schemas.DetectionRecord) {
				printDetection(out, tick, rec)
			}

			m.Start()
			summary := loop.Run(ctx)
			m.Stop()

			printSummary(out, summary)
			fmt.Fprintf(out, "Detections appended to %s\n", cfg.Monitor.LogFile)
			return ctx.Err()
		},
	}

	demoCmd.Flags().IntVar(&count, "count", 3, "number of detections to run")
	demoCmd.Flags().DurationVar(&interval, "interval", time.Second, "time between detections")
	return demoCmd
}
