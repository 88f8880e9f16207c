// File: cmd/train.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authsim/internal/observability"
	"github.com/xkilldash9x/authsim/internal/trainer"
)

// newTrainCmd creates the `train` command, which writes the model files the
// monitor looks for.
func newTrainCmd() *cobra.Command {
	opts := trainer.DefaultOptions()
	var outDir string

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Trains models on synthetic human and bot behaviour",
		Long: `Synthesises labelled human and bot telemetry, fits a standard scaler and trains a
random forest, a gradient boosted ensemble and an isolation forest. Each model is
written with its scaler to the model directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.Model.Dir
			}

			logger.Info("Training models", zap.Int("samples_per_class", opts.Samples), zap.Uint64("seed", opts.Seed))
			bundle, err := trainer.Train(ctx, opts, logger)
			if err != nil {
				return err
			}

			written, err := trainer.Save(bundle, cfg.Model, outDir, logger)
			if err != nil {
				return fmt.Errorf("failed to save models: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, path := range written {
				fmt.Fprintf(out, "wrote %s\n", path)
			}
			return nil
		},
	}

	trainCmd.Flags().IntVar(&opts.Samples, "samples", opts.Samples, "rows to synthesise per class")
	trainCmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed for data and models")
	trainCmd.Flags().IntVar(&opts.Forest.Trees, "trees", opts.Forest.Trees, "trees in the random forest")
	trainCmd.Flags().IntVar(&opts.Boost.Rounds, "rounds", opts.Boost.Rounds, "boosting rounds")
	trainCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default is model.dir)")
	return trainCmd
}
