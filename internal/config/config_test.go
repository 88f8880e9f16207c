// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "authsim", cfg.Logger.ServiceName)
	assert.Equal(t, "cloud_user", cfg.Monitor.UserID)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "detections_log.csv", cfg.Monitor.LogFile)
	assert.Equal(t, 15*time.Second, cfg.Bot.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Bot.Step)
	assert.True(t, cfg.Model.Fallback.Enabled)
	assert.Equal(t, uint64(42), cfg.Model.Fallback.Seed)
	assert.Equal(t, 100, cfg.Model.Fallback.Samples)
	assert.Equal(t, 10, cfg.Model.Fallback.Trees)
	assert.False(t, cfg.Store.Postgres.Enabled)

	// The candidate order decides which model wins when several exist.
	require.Len(t, cfg.Model.Candidates, 3)
	assert.Equal(t, ModelCandidate{Name: "RandomForest", Path: "rf_model.json"}, cfg.Model.Candidates[0])
	assert.Equal(t, ModelCandidate{Name: "XGBoost", Path: "xgb_model.json"}, cfg.Model.Candidates[1])
	assert.Equal(t, ModelCandidate{Name: "IsolationForest", Path: "iso_model.json"}, cfg.Model.Candidates[2])

	baselines := cfg.Simulator.Baselines()
	require.Len(t, baselines, 6)
	assert.Equal(t, FeatureBaseline{Mean: 150, StdDev: 50}, baselines[0])
	assert.Equal(t, FeatureBaseline{Mean: 0.05, StdDev: 0.03}, baselines[4])

	require.NoError(t, cfg.Validate(), "defaults must always validate")
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("yaml overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		yaml := []byte(`
monitor:
  user_id: analyst
  interval: 250ms
  max_ticks: 4
model:
  fallback:
    trees: 3
bot:
  duration: 1s
`)
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "analyst", cfg.Monitor.UserID)
		assert.Equal(t, 250*time.Millisecond, cfg.Monitor.Interval)
		assert.Equal(t, 4, cfg.Monitor.MaxTicks)
		assert.Equal(t, 3, cfg.Model.Fallback.Trees)
		assert.Equal(t, time.Second, cfg.Bot.Duration)
		// Untouched keys keep their defaults.
		assert.Equal(t, 500*time.Millisecond, cfg.Bot.Step)
	})

	t.Run("home directory is expanded", func(t *testing.T) {
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory available")
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("model.dir", "~/authsim-models")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "authsim-models"), cfg.Model.Dir)
	})

	t.Run("database url comes from the environment", func(t *testing.T) {
		t.Setenv("AUTHSIM_DATABASE_URL", "postgres://u:p@localhost/authsim")
		v := viper.New()
		SetDefaults(v)
		v.Set("store.postgres.enabled", true)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@localhost/authsim", cfg.Store.Postgres.URL)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("monitor.interval", "0s")

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interval must be a positive duration")
	})
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Monitor Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()

		noUser := *cfg
		noUser.Monitor.UserID = ""
		err := noUser.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user_id must not be empty")

		negativeTicks := *cfg
		negativeTicks.Monitor.MaxTicks = -1
		err = negativeTicks.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_ticks must not be negative")

		noLog := *cfg
		noLog.Monitor.LogFile = ""
		err = noLog.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log_file must not be empty")
	})

	t.Run("Model Validation", func(t *testing.T) {
		valid := NewDefaultConfig().Model
		assert.NoError(t, valid.Validate())

		badCandidate := valid
		badCandidate.Candidates = []ModelCandidate{{Name: "RandomForest"}}
		err := badCandidate.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "candidates[0] requires both name and path")

		fewSamples := valid
		fewSamples.Fallback.Samples = 1
		err = fewSamples.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fallback.samples must be at least 2")

		// A disabled fallback is never checked.
		disabled := fewSamples
		disabled.Fallback.Enabled = false
		assert.NoError(t, disabled.Validate())
	})

	t.Run("Simulator Validation", func(t *testing.T) {
		sim := NewDefaultConfig().Simulator
		sim.TabSwitchRate.StdDev = -0.1
		err := sim.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "feature 2 has a negative stddev")
	})

	t.Run("Bot Validation", func(t *testing.T) {
		bot := BotConfig{Duration: time.Second, Step: 0}
		err := bot.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step must be a positive duration")
	})

	t.Run("Postgres requires url", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Store.Postgres.Enabled = true
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.postgres.url is required")
	})
}
