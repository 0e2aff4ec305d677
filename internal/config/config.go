// Package config loads layered settings for ndx-pose sessions.
//
// Values are resolved in order: built-in defaults, then an ndx-pose.yaml file
// (the working directory first, then $XDG_CONFIG_HOME/ndx-pose), then
// NDXPOSE_* environment variables. Nested keys map to env names with dots
// replaced by underscores, so log.level is NDXPOSE_LOG_LEVEL.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/rly/ndx-pose/internal/pose"
)

const (
	// FileName is the config file searched for, without extension.
	FileName = "ndx-pose"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "NDXPOSE"
	// AppDir is the directory under the XDG config home.
	AppDir = "ndx-pose"
)

// Keys.
const (
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyCountMismatch = "policy.count_mismatch"
	KeyBusyTimeoutMS = "store.busy_timeout_ms"
)

// Config is the resolved configuration.
type Config struct {
	Log    LogConfig
	Policy PolicyConfig
	Store  StoreConfig

	// File is the config file that was read, or "" when none was found.
	File string
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level      string
	Format     string // json or console
	File       string // rotating file sink; empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
}

// PolicyConfig controls object-model policies.
type PolicyConfig struct {
	// CountMismatch is how video/device count disagreements are reported.
	CountMismatch pose.Strictness
}

// StoreConfig controls the container file backend.
type StoreConfig struct {
	BusyTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyCountMismatch, "warn")
	v.SetDefault(KeyBusyTimeoutMS, 5000)
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in config: %v", err))
	}
	return cfg
}

// Load resolves configuration from the search path and the environment.
func Load() (*Config, error) {
	xdg.Reload()

	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppDir))
	return load(v)
}

// LoadFile resolves configuration from an explicit file and the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	strictness, err := pose.ParseStrictness(v.GetString(KeyCountMismatch))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyCountMismatch, err)
	}
	format := strings.ToLower(v.GetString(KeyLogFormat))
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("invalid %s %q (must be json or console)", KeyLogFormat, format)
	}
	busy := v.GetInt(KeyBusyTimeoutMS)
	if busy < 0 {
		return nil, fmt.Errorf("invalid %s %d (must not be negative)", KeyBusyTimeoutMS, busy)
	}
	return &Config{
		Log: LogConfig{
			Level:      v.GetString(KeyLogLevel),
			Format:     format,
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
		},
		Policy: PolicyConfig{CountMismatch: strictness},
		Store:  StoreConfig{BusyTimeout: time.Duration(busy) * time.Millisecond},
	}, nil
}

// Construction returns the user construction mode with the configured
// count-mismatch policy and notifier n.
func (c *Config) Construction(n pose.Notifier) pose.Construction {
	return pose.User().WithStrictness(c.Policy.CountMismatch).WithNotifier(n)
}
