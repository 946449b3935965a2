package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	appDirName = "chirpwire"

	defaultBaseURL   = "https://api.twitter.com/2"
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// SetDefaults registers built-in defaults on the given viper instance.
// Called once by the CLI before any config file or env layering.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", defaultBaseURL)
	v.SetDefault("api.upload_url", defaultUploadURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_attempts", 5)
	v.SetDefault("rate_limit.permissive", false)
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("logging.level", "info")
}

// DefaultStorePath returns the per-user database location, used when no
// store path is configured explicitly.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, "chirpwire.db"), nil
}

// DefaultConfigFile returns the path probed for the optional YAML
// config file.
func DefaultConfigFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, "config.yaml"), nil
}

// Load unmarshals the layered configuration from the given viper
// instance and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.Path) == "" && strings.TrimSpace(cfg.Store.URL) == "" {
		path, err := DefaultStorePath()
		if err != nil {
			return nil, err
		}
		cfg.Store.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that do not depend on the remote API.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	if strings.TrimSpace(c.API.UploadURL) == "" {
		return errors.New("api.upload_url is required")
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if c.API.MaxAttempts <= 0 {
		return errors.New("api.max_attempts must be positive")
	}
	return nil
}
