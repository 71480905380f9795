// Package config loads the orchestrator's configuration surface (§6): the
// iteration/retry/timeout knobs the request orchestrator reads plus the
// single Anthropic provider block, via viper the way the teacher loads its
// much larger multi-provider config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AnthropicConfig configures the one concrete LLM transport this tree
// exercises.
type AnthropicConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	Credentials string `mapstructure:"credentials"` // "auto", "api_key", "env", "oauth_env", "oauth"
}

// Config is the orchestrator's full config surface, per §6's table:
// max_iterations, max_retries, tool_strict_validation, request_delay,
// global_request_timeout, debug_metrics, plus provider selection.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`

	MaxIterations        int  `mapstructure:"max_iterations"`
	RequestDelaySeconds  int  `mapstructure:"request_delay"`
	GlobalRequestTimeout int  `mapstructure:"global_request_timeout"`
	MaxRetries           int  `mapstructure:"max_retries"`
	ToolStrictValidation bool `mapstructure:"tool_strict_validation"`
	DebugMetrics         bool `mapstructure:"debug_metrics"`
}

// Defaults mirrors §6's documented defaults and valid ranges.
func Defaults() map[string]any {
	return map[string]any{
		"max_iterations":         15,
		"request_delay":          0,
		"global_request_timeout": 0, // 0 = disabled
		"max_retries":            3,
		"tool_strict_validation": false,
		"debug_metrics":          false,
		"anthropic.model":        "claude-sonnet-4-5",
		"anthropic.credentials":  "auto",
	}
}

// Load reads config.yaml from the XDG config directory (or the working
// directory), falling back to Defaults() for anything unset, and expands
// ${VAR}/$VAR references in the Anthropic api_key field.
func Load() (*Config, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	for key, value := range Defaults() {
		viper.SetDefault(key, value)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate enforces §6's documented ranges, returning an error for the
// first value out of range; nothing is clamped.
func (c *Config) validate() error {
	if c.MaxIterations < 1 || c.MaxIterations > 100 {
		return fmt.Errorf("max_iterations must be between 1 and 100, got %d", c.MaxIterations)
	}
	if c.RequestDelaySeconds < 0 || c.RequestDelaySeconds > 60 {
		return fmt.Errorf("request_delay must be between 0 and 60 seconds, got %d", c.RequestDelaySeconds)
	}
	if c.GlobalRequestTimeout < 0 {
		return fmt.Errorf("global_request_timeout must be >= 0, got %d", c.GlobalRequestTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for this tool.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "term-llm"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "term-llm"), nil
}

// GetConfigPath returns the path where the config file should be located.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Exists reports whether a config file is present at GetConfigPath.
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
