// File: cmd/monitor.go
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/botsim"
	"github.com/xkilldash9x/authsim/internal/monitor"
	"github.com/xkilldash9x/authsim/internal/observability"
)

// newMonitorCmd creates and configures the `monitor` command.
func newMonitorCmd(v *viper.Viper, stores storeProvider) *cobra.Command {
	var withBot bool

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Runs the detection loop until interrupted",
		Long: `Runs one detection per interval and appends each verdict to the detection log.
Use --ticks to stop after a fixed number of detections and --with-bot to run the
bot simulator alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
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
			loop, err := monitor.NewLoop(m, cfg.Monitor.Interval, cfg.Monitor.MaxTicks, runID, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			loop.OnDetection = func(tick int, rec schemas.DetectionRecord) {
				printDetection(out, tick, rec)
			}

			m.Start()
			defer m.Stop()

			var summary monitor.Summary
			if !withBot {
				summary = loop.Run(ctx)
			} else {
				bot, err := botsim.New(cfg.Bot.Duration, cfg.Bot.Step, nil, logger)
				if err != nil {
					return err
				}
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					_, err := bot.Run(gctx)
					return err
				})
				g.Go(func() error {
					summary = loop.Run(gctx)
					bot.Stop()
					return nil
				})
				if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
					return err
				}
			}

			printSummary(out, summary)
			logger.Info("Monitoring finished", zap.String("run_id", summary.RunID), zap.String("log_file", cfg.Monitor.LogFile))
			return ctx.Err()
		},
	}

	monitorCmd.Flags().Int("ticks", 0, "stop after this many detections (0 runs until interrupted)")
	monitorCmd.Flags().Duration("interval", 0, "time between detections (default from config, 2s)")
	monitorCmd.Flags().String("user", "", "user id recorded with each detection")
	monitorCmd.Flags().String("log-file", "", "CSV detection log path")
	monitorCmd.Flags().BoolVar(&withBot, "with-bot", false, "run the bot simulator alongside the monitor")

	bindFlag(v, "monitor.max_ticks", monitorCmd, "ticks")
	bindFlag(v, "monitor.interval", monitorCmd, "interval")
	bindFlag(v, "monitor.user_id", monitorCmd, "user")
	bindFlag(v, "monitor.log_file", monitorCmd, "log-file")

	return monitorCmd
}

// bindFlag lets a flag override key. Viper only prefers the flag once it is set on
// the command line, so the flag's zero default never shadows config.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		panic(fmt.Sprintf("flag %q is not defined on %q", name, cmd.Name()))
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %q: %v", name, err))
	}
}

func printDetection(w io.Writer, tick int, rec schemas.DetectionRecord) {
	fmt.Fprintf(w, "Detection %d: %s (score %.4f) at %s\n", tick, rec.Prediction, rec.Score, rec.Timestamp.Format("15:04:05"))
}

func printSummary(w io.Writer, s monitor.Summary) {
	fmt.Fprintf(w, "Run %s: %d ticks, %d detections (%d flagged), %d failures\n",
		s.RunID, s.Ticks, s.Detections, s.Improper, s.Failures)
}
