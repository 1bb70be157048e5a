// Package config handles configuration loading for cascade.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for cascade.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Review    ReviewConfig    `mapstructure:"review"`
	Durable   DurableConfig   `mapstructure:"durable"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for cascades built from config.
type DefaultsConfig struct {
	// Actor is the identity reported on cascade events.
	Actor string `mapstructure:"actor"`
	// UseDefaultTimeouts applies the fixed per-tier timeout table.
	UseDefaultTimeouts bool `mapstructure:"use_default_timeouts"`
	// TotalTimeout bounds a whole run. Zero means unbounded.
	TotalTimeout time.Duration `mapstructure:"total_timeout"`
}

// TimeoutsConfig holds per-tier attempt timeout overrides.
type TimeoutsConfig struct {
	Code       time.Duration `mapstructure:"code"`
	Generative time.Duration `mapstructure:"generative"`
	Agentic    time.Duration `mapstructure:"agentic"`
	Human      time.Duration `mapstructure:"human"`
}

// RetryConfig holds per-tier retry settings.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// ReviewConfig holds human-review settings.
type ReviewConfig struct {
	// Dir is the root of the file-based review queue.
	Dir string `mapstructure:"dir"`
}

// DurableConfig holds durable step host settings.
type DurableConfig struct {
	// DBPath is the checkpoint database location.
	DBPath string `mapstructure:"db_path"`
}

// GatewayConfig holds AI-gateway settings for the generative tier.
type GatewayConfig struct {
	ID        string `mapstructure:"id"`
	AccountID string `mapstructure:"account_id"`
	CacheTTL  int    `mapstructure:"cache_ttl"`
	SkipCache bool   `mapstructure:"skip_cache"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CASCADE_*)
// 2. Project config (.cascade.yaml in current directory or parent)
// 3. User config (~/.config/cascade/config.yaml)
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

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CASCADE")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("durable.db_path", "CASCADE_DB_PATH")
	v.BindEnv("review.dir", "CASCADE_REVIEW_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

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

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("defaults.actor", "")
	v.SetDefault("defaults.use_default_timeouts", true)
	v.SetDefault("defaults.total_timeout", "0")

	v.SetDefault("retry.max_retries", 0)
	v.SetDefault("retry.base_delay", "100ms")

	v.SetDefault("review.dir", defaultReviewDir())
	v.SetDefault("durable.db_path", defaultDBPath())

	v.SetDefault("gateway.cache_ttl", 0)
	v.SetDefault("gateway.skip_cache", false)
}

// getUserConfigDir returns the XDG config directory for cascade.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cascade")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "cascade")
	}
	return filepath.Join(home, ".config", "cascade")
}

// defaultDataDir returns the XDG data directory for cascade.
func defaultDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "cascade")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", "cascade")
	}
	return filepath.Join(home, ".local", "share", "cascade")
}

func defaultReviewDir() string {
	return filepath.Join(defaultDataDir(), "reviews")
}

func defaultDBPath() string {
	return filepath.Join(defaultDataDir(), "steps.db")
}

// findProjectConfig searches for .cascade.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".cascade.yaml")
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
