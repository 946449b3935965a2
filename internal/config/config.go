// Package config provides chirpwire's configuration model.
//
// Values are layered: built-in defaults, an optional YAML config file
// under the user config directory, then CHIRPWIRE_* environment
// variables and flags bound through viper.
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds remote API endpoints and application credentials.
type APIConfig struct {
	// Key and Secret are the application's consumer credentials. Both
	// are required; the access token pair is acquired interactively and
	// cached in the store.
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`

	BaseURL   string `mapstructure:"base_url"`
	UploadURL string `mapstructure:"upload_url"`

	// Timeout bounds a single HTTP exchange. It is deliberately
	// conservative so a hung connection cannot be mistaken for a
	// legitimate rate-limit wait.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxAttempts caps dispatch attempts when the server keeps
	// answering 429.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// RateLimitConfig controls local quota enforcement.
type RateLimitConfig struct {
	// Permissive restores the legacy observe-only behavior: the local
	// admission check is logged but never blocks a request, leaving the
	// server's 429 as the only enforcement. Strict blocking is the
	// default.
	Permissive bool `mapstructure:"permissive"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}
