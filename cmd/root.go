// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/authsim/internal/config"
	"github.com/xkilldash9x/authsim/internal/observability"
)

type configKey struct{}

// NewRootCommand builds a fresh command tree with its own viper instance, so flags
// and config never leak between invocations.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewStoreProvider())
}

func newRootCommand(stores storeProvider) *cobra.Command {
	var cfgFile string
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:   "authsim",
		Short: "authsim simulates a behavioural bot detector.",
		Long: `authsim fabricates behavioural telemetry (mouse speed, typing speed, tab switching,
clicks, typing errors, window focus), scores it with a trained classifier and
appends every verdict to a CSV log.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				// Make sure the failure is still reported somewhere readable.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "authsim"})
				return err
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting authsim", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.authsim/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "authsim version %s\n" .Version}}`)

	rootCmd.AddCommand(
		newMonitorCmd(v, stores),
		newDemoCmd(stores),
		newTrainCmd(),
		newBotCmd(v),
		newHistoryCmd(stores),
	)
	return rootCmd
}

// Execute runs the command tree and logs any failure.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Info("Shutting down")
		} else {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		}
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// loadConfig reads the config file, if any, and environment overrides into v.
func loadConfig(v *viper.Viper, cfgFile string) (*config.Config, error) {
	if cfgFile != "" {
		expanded, err := homedir.Expand(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("could not resolve config path '%s': %w", cfgFile, err)
		}
		v.SetConfigFile(expanded)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".authsim"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AUTHSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	return config.NewConfigFromViper(v)
}

// configFrom returns the configuration installed by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// fileExists is used by commands that treat a missing file as "nothing yet".
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
