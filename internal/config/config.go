// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config with defaults; Load layers file and env on top.
//   - Validation failures wrap ErrInvalidConfig, loader failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// InboxSize bounds the event loop inbox.
	InboxSize int `koanf:"inbox_size"`

	// DedupeSize bounds the number of remembered feed delivery ids.
	DedupeSize int `koanf:"dedupe_size"`

	// FollowStorePath is the YAML file holding followed teams. Empty keeps
	// the follow set in memory only.
	FollowStorePath string `koanf:"follow_store_path"`

	// SurfaceBuffer is the per-websocket outbound op buffer.
	SurfaceBuffer int `koanf:"surface_buffer"`

	// WriteTimeoutMS bounds a single websocket write.
	WriteTimeoutMS int `koanf:"write_timeout_ms"`

	// ActiveEvents seeds the active event set at startup.
	ActiveEvents []string `koanf:"active_events"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		InboxSize:       4096,
		DedupeSize:      10_000,
		FollowStorePath: "",
		SurfaceBuffer:   512,
		WriteTimeoutMS:  3000,
		ActiveEvents:    nil,
	}
}

// Validate checks invariants the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.InboxSize <= 0:
		return fmt.Errorf("%w: inbox_size must be positive", ErrInvalidConfig)
	case c.SurfaceBuffer <= 0:
		return fmt.Errorf("%w: surface_buffer must be positive", ErrInvalidConfig)
	case c.WriteTimeoutMS <= 0:
		return fmt.Errorf("%w: write_timeout_ms must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}
