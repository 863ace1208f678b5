// Package config handles configuration loading and management for rounds.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/openrounds/rounds/internal/eval"
)

// Config holds all configuration for rounds.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Traces    TracesConfig    `mapstructure:"traces"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Eval      EvalConfig      `mapstructure:"eval"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is the Claude model name; empty uses the client default.
	Model string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// TracesConfig holds trace persistence settings.
type TracesConfig struct {
	// Dir is where trace JSON files are written.
	Dir string `mapstructure:"dir"`
	// DBPath is the SQLite trace store; empty uses the XDG default.
	DBPath string `mapstructure:"db_path"`
}

// RetryConfig holds specialist retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// EvalConfig holds evaluation scoring parameters. Dimension weights and the
// equivalence heuristics are tunable here rather than baked into the engine.
type EvalConfig struct {
	Dimensions           map[string]DimensionConfig `mapstructure:"dimensions"`
	EquivalenceGroups    [][]string                 `mapstructure:"equivalence_groups"`
	SubstitutionCredit   float64                    `mapstructure:"substitution_credit"`
	AcceptableSimilarity float64                    `mapstructure:"acceptable_similarity"`
	JudgeSplit           float64                    `mapstructure:"judge_split"`
}

// DimensionConfig sets one scoring dimension's weight and pass target.
type DimensionConfig struct {
	Weight float64 `mapstructure:"weight"`
	Target float64 `mapstructure:"target"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// ScoringConfig converts the loaded eval section into the engine's config,
// filling anything unset from the engine defaults.
func (c *Config) ScoringConfig() eval.Config {
	out := eval.DefaultConfig()
	if len(c.Eval.Dimensions) > 0 {
		out.Dimensions = make(map[string]eval.DimensionConfig, len(c.Eval.Dimensions))
		for name, d := range c.Eval.Dimensions {
			out.Dimensions[name] = eval.DimensionConfig{Weight: d.Weight, Target: d.Target}
		}
	}
	if len(c.Eval.EquivalenceGroups) > 0 {
		out.EquivalenceGroups = c.Eval.EquivalenceGroups
	}
	if c.Eval.SubstitutionCredit > 0 {
		out.SubstitutionCredit = c.Eval.SubstitutionCredit
	}
	if c.Eval.AcceptableSimilarity > 0 {
		out.AcceptableSimilarity = c.Eval.AcceptableSimilarity
	}
	if c.Eval.JudgeSplit > 0 {
		out.JudgeSplit = c.Eval.JudgeSplit
	}
	return out
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.rounds.yaml in current directory or parent)
// 3. User config (~/.config/rounds/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides (ROUNDS_RETRY_MAX_ATTEMPTS etc.)
	v.SetEnvPrefix("ROUNDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ROUNDS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Traces.Dir = expandEnv(cfg.Traces.Dir)
	cfg.Traces.DBPath = expandEnv(cfg.Traces.DBPath)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Traces.Dir = expandEnv(cfg.Traces.Dir)
	cfg.Traces.DBPath = expandEnv(cfg.Traces.DBPath)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("traces.dir", cfg.Traces.Dir)
	v.Set("traces.db_path", cfg.Traces.DBPath)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.base_delay", cfg.Retry.BaseDelay.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("traces.dir", defaultTracesDir())
	v.SetDefault("traces.db_path", "")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")

	v.SetDefault("tui.refresh_rate", "100ms")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Traces: TracesConfig{Dir: defaultTracesDir()},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
		},
		TUI: TUIConfig{RefreshRate: 100 * time.Millisecond},
	}
}

// defaultTracesDir returns the XDG data directory for trace JSON files.
func defaultTracesDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "rounds", "traces")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "rounds", "traces")
	}
	return filepath.Join(home, ".local", "share", "rounds", "traces")
}

// getUserConfigDir returns the XDG config directory for rounds.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "rounds")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "rounds")
	}
	return filepath.Join(home, ".config", "rounds")
}

// findProjectConfig searches for .rounds.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".rounds.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
