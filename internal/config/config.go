// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`
	Model     ModelConfig     `mapstructure:"model" yaml:"model"`
	Simulator SimulatorConfig `mapstructure:"simulator" yaml:"simulator"`
	Bot       BotConfig       `mapstructure:"bot" yaml:"bot"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// MonitorConfig configures the detection loop.
type MonitorConfig struct {
	UserID   string        `mapstructure:"user_id" yaml:"user_id"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// MaxTicks bounds the loop. Zero runs until interrupted.
	MaxTicks int    `mapstructure:"max_ticks" yaml:"max_ticks"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
}

// ModelCandidate names one model file the loader will try.
type ModelCandidate struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"`
}

// ModelConfig controls where models are looked up and how the demo fallback is built.
type ModelConfig struct {
	Dir          string           `mapstructure:"dir" yaml:"dir"`
	Candidates   []ModelCandidate `mapstructure:"candidates" yaml:"candidates"`
	ModelSuffix  string           `mapstructure:"model_suffix" yaml:"model_suffix"`
	ScalerSuffix string           `mapstructure:"scaler_suffix" yaml:"scaler_suffix"`
	Fallback     FallbackConfig   `mapstructure:"fallback" yaml:"fallback"`
}

// FallbackConfig describes the demo classifier trained when no model file loads.
type FallbackConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Seed     uint64 `mapstructure:"seed" yaml:"seed"`
	Samples  int    `mapstructure:"samples" yaml:"samples"`
	Trees    int    `mapstructure:"trees" yaml:"trees"`
	MaxDepth int    `mapstructure:"max_depth" yaml:"max_depth"`
}

// FeatureBaseline is the mean and spread of one simulated metric.
type FeatureBaseline struct {
	Mean   float64 `mapstructure:"mean" yaml:"mean"`
	StdDev float64 `mapstructure:"stddev" yaml:"stddev"`
}

// SimulatorConfig tunes the synthetic feature generator.
type SimulatorConfig struct {
	// Seed of zero means seed from the clock.
	Seed                 uint64          `mapstructure:"seed" yaml:"seed"`
	AvgMouseSpeed        FeatureBaseline `mapstructure:"avg_mouse_speed" yaml:"avg_mouse_speed"`
	AvgTypingSpeed       FeatureBaseline `mapstructure:"avg_typing_speed" yaml:"avg_typing_speed"`
	TabSwitchRate        FeatureBaseline `mapstructure:"tab_switch_rate" yaml:"tab_switch_rate"`
	MouseClickRate       FeatureBaseline `mapstructure:"mouse_click_rate" yaml:"mouse_click_rate"`
	KeyboardErrorRate    FeatureBaseline `mapstructure:"keyboard_error_rate" yaml:"keyboard_error_rate"`
	ActiveWindowDuration FeatureBaseline `mapstructure:"active_window_duration" yaml:"active_window_duration"`
}

// BotConfig configures the auxiliary bot simulator.
type BotConfig struct {
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
	Step     time.Duration `mapstructure:"step" yaml:"step"`
}

// PostgresConfig holds the connection details for the optional detection table.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// StoreConfig groups the detection sinks beyond the CSV log.
type StoreConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "authsim")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Monitor --
	v.SetDefault("monitor.user_id", "cloud_user")
	v.SetDefault("monitor.interval", "2s")
	v.SetDefault("monitor.max_ticks", 0)
	v.SetDefault("monitor.log_file", "detections_log.csv")

	// -- Model --
	v.SetDefault("model.dir", "models")
	v.SetDefault("model.candidates", []map[string]string{
		{"name": "RandomForest", "path": "rf_model.json"},
		{"name": "XGBoost", "path": "xgb_model.json"},
		{"name": "IsolationForest", "path": "iso_model.json"},
	})
	v.SetDefault("model.model_suffix", "_model.json")
	v.SetDefault("model.scaler_suffix", "_scaler.json")
	v.SetDefault("model.fallback.enabled", true)
	v.SetDefault("model.fallback.seed", 42)
	v.SetDefault("model.fallback.samples", 100)
	v.SetDefault("model.fallback.trees", 10)
	v.SetDefault("model.fallback.max_depth", 0)

	// -- Simulator --
	v.SetDefault("simulator.seed", 0)
	v.SetDefault("simulator.avg_mouse_speed.mean", 150.0)
	v.SetDefault("simulator.avg_mouse_speed.stddev", 50.0)
	v.SetDefault("simulator.avg_typing_speed.mean", 200.0)
	v.SetDefault("simulator.avg_typing_speed.stddev", 80.0)
	v.SetDefault("simulator.tab_switch_rate.mean", 0.5)
	v.SetDefault("simulator.tab_switch_rate.stddev", 0.2)
	v.SetDefault("simulator.mouse_click_rate.mean", 2.0)
	v.SetDefault("simulator.mouse_click_rate.stddev", 1.0)
	v.SetDefault("simulator.keyboard_error_rate.mean", 0.05)
	v.SetDefault("simulator.keyboard_error_rate.stddev", 0.03)
	v.SetDefault("simulator.active_window_duration.mean", 10.0)
	v.SetDefault("simulator.active_window_duration.stddev", 5.0)

	// -- Bot --
	v.SetDefault("bot.duration", "15s")
	v.SetDefault("bot.step", "500ms")

	// -- Store --
	v.SetDefault("store.postgres.enabled", false)
	v.SetDefault("store.postgres.url", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The connection string usually carries a password, so allow it from the environment.
	_ = v.BindEnv("store.postgres.url", "AUTHSIM_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading "~" in every configured filesystem path.
func (c *Config) expandPaths() error {
	paths := []*string{&c.Model.Dir, &c.Monitor.LogFile, &c.Logger.LogFile}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not resolve path '%s': %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor configuration invalid: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model configuration invalid: %w", err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("simulator configuration invalid: %w", err)
	}
	if err := c.Bot.Validate(); err != nil {
		return fmt.Errorf("bot configuration invalid: %w", err)
	}
	if c.Store.Postgres.Enabled && c.Store.Postgres.URL == "" {
		return fmt.Errorf("store.postgres.url is required when the postgres sink is enabled")
	}
	return nil
}

// Validate checks the MonitorConfig settings.
func (m *MonitorConfig) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("user_id must not be empty")
	}
	if m.Interval <= 0 {
		return fmt.Errorf("interval must be a positive duration")
	}
	if m.MaxTicks < 0 {
		return fmt.Errorf("max_ticks must not be negative")
	}
	if m.LogFile == "" {
		return fmt.Errorf("log_file must not be empty")
	}
	return nil
}

// Validate checks the ModelConfig settings.
func (m *ModelConfig) Validate() error {
	for i, c := range m.Candidates {
		if c.Name == "" || c.Path == "" {
			return fmt.Errorf("candidates[%d] requires both name and path", i)
		}
	}
	if m.ModelSuffix == "" || m.ScalerSuffix == "" {
		return fmt.Errorf("model_suffix and scaler_suffix are required")
	}
	if !m.Fallback.Enabled {
		return nil
	}
	if m.Fallback.Samples < 2 {
		return fmt.Errorf("fallback.samples must be at least 2")
	}
	if m.Fallback.Trees <= 0 {
		return fmt.Errorf("fallback.trees must be a positive integer")
	}
	if m.Fallback.MaxDepth < 0 {
		return fmt.Errorf("fallback.max_depth must not be negative")
	}
	return nil
}

// Baselines returns the six baselines in feature order.
func (s *SimulatorConfig) Baselines() []FeatureBaseline {
	return []FeatureBaseline{
		s.AvgMouseSpeed,
		s.AvgTypingSpeed,
		s.TabSwitchRate,
		s.MouseClickRate,
		s.KeyboardErrorRate,
		s.ActiveWindowDuration,
	}
}

// Validate checks the SimulatorConfig settings.
func (s *SimulatorConfig) Validate() error {
	for i, b := range s.Baselines() {
		if b.StdDev < 0 {
			return fmt.Errorf("feature %d has a negative stddev", i)
		}
	}
	return nil
}

// Validate checks the BotConfig settings.
func (b *BotConfig) Validate() error {
	if b.Duration < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	if b.Step <= 0 {
		return fmt.Errorf("step must be a positive duration")
	}
	return nil
}
