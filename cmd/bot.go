// File: cmd/bot.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/authsim/internal/botsim"
	"github.com/xkilldash9x/authsim/internal/observability"
)

// newBotCmd creates the `bot` command, which runs the bot simulator on its own.
func newBotCmd(v *viper.Viper) *cobra.Command {
	botCmd := &cobra.Command{
		Use:   "bot",
		Short: "Runs the bot activity simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			bot, err := botsim.New(cfg.Bot.Duration, cfg.Bot.Step, nil, observability.GetLogger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulating bot activity for %s...\n", cfg.Bot.Duration)
			res, err := bot.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Bot simulation completed after %s (%d steps)\n", res.Elapsed, res.Steps)
			return nil
		},
	}

	botCmd.Flags().Duration("duration", 0, "how long to simulate (default from config, 15s)")
	botCmd.Flags().Duration("step", 0, "sleep granularity (default from config, 500ms)")
	bindFlag(v, "bot.duration", botCmd, "duration")
	bindFlag(v, "bot.step", botCmd, "step")
	return botCmd
}
