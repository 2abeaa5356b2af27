// Package config provides Viper-based configuration loading for the session
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SessionConfig holds WebSocket session listener settings.
type SessionConfig struct {
	// Host is the bind address for the WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the WebSocket listener.
	Port int `mapstructure:"port"`
	// SendBuffer is the per-client outbound queue bound. When a slow client's
	// queue is full, further broadcasts to it are dropped rather than
	// blocking the room.
	SendBuffer int `mapstructure:"send_buffer"`
	// HandshakeTimeout caps how long a client may take to send its two
	// handshake frames. Zero disables the deadline.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// WriteTimeout is the per-frame write deadline for outbound messages.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (s SessionConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RoomConfig holds room lifecycle settings.
type RoomConfig struct {
	// IdleTimeout is how long a room may sit with zero clients before the
	// reaper destroys it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// SweepInterval is how often the reaper scans for idle rooms.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DirectoryConfig holds settings for the external account/game directory.
type DirectoryConfig struct {
	// BaseURL is the directory service root, without a trailing slash.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout for directory calls.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Session   SessionConfig   `mapstructure:"session"`
	Room      RoomConfig      `mapstructure:"room"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateSession(c.Session); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRoom(c.Room); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDirectory(c.Directory); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSession(s SessionConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("session.port must be 1-65535, got %d", s.Port))
	}
	if s.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("session.send_buffer must be >= 1, got %d", s.SendBuffer))
	}
	if s.HandshakeTimeout < 0 {
		errs = append(errs, "session.handshake_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "session.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRoom(r RoomConfig) error {
	var errs []string
	if r.IdleTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("room.idle_timeout must be positive, got %s", r.IdleTimeout))
	}
	if r.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("room.sweep_interval must be positive, got %s", r.SweepInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDirectory(d DirectoryConfig) error {
	var errs []string
	if d.BaseURL == "" {
		errs = append(errs, "directory.base_url must not be empty")
	}
	if strings.HasSuffix(d.BaseURL, "/") {
		errs = append(errs, "directory.base_url must not end with a slash")
	}
	if d.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("directory.timeout must be positive, got %s", d.Timeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with RC_ prefix
	v.SetEnvPrefix("RC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.host", "0.0.0.0")
	v.SetDefault("session.port", 9000)
	v.SetDefault("session.send_buffer", 100)
	v.SetDefault("session.handshake_timeout", "30s")
	v.SetDefault("session.write_timeout", "10s")

	v.SetDefault("room.idle_timeout", "30m")
	v.SetDefault("room.sweep_interval", "5m")

	v.SetDefault("directory.base_url", "http://localhost:8000")
	v.SetDefault("directory.timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
