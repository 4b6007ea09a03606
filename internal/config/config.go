// Package config loads daybook settings from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/resolve"
)

const (
	configDir  = ".daybook"
	configFile = "config"
)

// Sync holds the sync-related settings.
type Sync struct {
	Enabled    bool              `mapstructure:"enabled"`
	ServerURL  string            `mapstructure:"server_url"`
	APIKey     string            `mapstructure:"api_key"`
	DeviceID   string            `mapstructure:"device_id"`
	DebounceMS int               `mapstructure:"debounce_ms"`
	Policies   map[string]string `mapstructure:"policies"`
}

// Config is the resolved application configuration.
type Config struct {
	BaseDir  string `mapstructure:"-"`
	UserID   string `mapstructure:"user_id"`
	LogLevel string `mapstructure:"log_level"`
	Sync     Sync   `mapstructure:"sync"`
}

// Load reads config from <baseDir>/.daybook/config.yaml, overlaid by
// DAYBOOK_* environment variables. A missing file yields defaults.
func Load(baseDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(baseDir, configDir))
	v.SetEnvPrefix("DAYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.debounce_ms", 2000)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.BaseDir = baseDir
	return &cfg, nil
}

// Save writes the config back to disk.
func (c *Config) Save() error {
	dir := filepath.Join(c.BaseDir, configDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.Set("user_id", c.UserID)
	v.Set("log_level", c.LogLevel)
	v.Set("sync.enabled", c.Sync.Enabled)
	v.Set("sync.server_url", c.Sync.ServerURL)
	v.Set("sync.api_key", c.Sync.APIKey)
	v.Set("sync.device_id", c.Sync.DeviceID)
	v.Set("sync.debounce_ms", c.Sync.DebounceMS)
	if len(c.Sync.Policies) > 0 {
		v.Set("sync.policies", c.Sync.Policies)
	}
	if err := v.WriteConfigAs(filepath.Join(dir, configFile+".yaml")); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Debounce returns the sync debounce as a duration.
func (c *Config) Debounce() time.Duration {
	if c.Sync.DebounceMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Sync.DebounceMS) * time.Millisecond
}

// PolicyTable resolves the per-collection conflict policies, starting from
// the defaults and applying any configured overrides.
func (c *Config) PolicyTable() resolve.PolicyTable {
	table := resolve.DefaultPolicies()
	for name, policy := range c.Sync.Policies {
		col := models.Collection(name)
		p := resolve.Policy(policy)
		if models.IsValidCollection(col) && resolve.IsValidPolicy(p) {
			table[col] = p
		}
	}
	return table
}

// IsAuthenticated reports whether a user is configured.
func (c *Config) IsAuthenticated() bool {
	return c.UserID != ""
}
