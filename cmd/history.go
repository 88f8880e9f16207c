// File: cmd/history.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/observability"
	"github.com/xkilldash9x/authsim/internal/reporting"
	"github.com/xkilldash9x/authsim/internal/store"
)

// newHistoryCmd creates the `history` command. Without --run it reads the tail of
// the CSV log; with --run it queries the database for that run.
func newHistoryCmd(stores storeProvider) *cobra.Command {
	var (
		runID  string
		limit  int
		format string
		output string
	)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Prints recorded detections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			var records []schemas.DetectionRecord
			if runID != "" {
				reader, cleanup, err := stores.Reader(ctx, cfg, logger)
				if err != nil {
					return err
				}
				defer cleanup()
				if records, err = reader.DetectionsByRun(ctx, runID, limit); err != nil {
					return err
				}
			} else {
				if !fileExists(cfg.Monitor.LogFile) {
					fmt.Fprintf(cmd.OutOrStdout(), "No detections recorded yet (%s does not exist)\n", cfg.Monitor.LogFile)
					return nil
				}
				csvLog, err := store.NewCSVLog(cfg.Monitor.LogFile, logger)
				if err != nil {
					return err
				}
				if records, err = csvLog.ReadAll(ctx); err != nil {
					return err
				}
				if len(records) > limit {
					records = records[len(records)-limit:]
				}
			}

			reporter, err := reporting.New(format, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			for _, rec := range records {
				if err := reporter.Write(rec); err != nil {
					reporter.Close()
					return fmt.Errorf("failed to write report: %w", err)
				}
			}
			return reporter.Close()
		},
	}

	historyCmd.Flags().StringVar(&runID, "run", "", "run id to query from the postgres store")
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum detections to print")
	historyCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	historyCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default is stdout)")
	return historyCmd
}
