// Package config manages application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ironsheep/comment-image-mcp/internal/imaging"
)

// Log levels accepted by log_level.
const (
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
)

// Config represents the application configuration.
type Config struct {
	LogLevel           string            `yaml:"log_level"`
	AnimatedExtensions []string          `yaml:"animated_extensions"`
	Debounce           string            `yaml:"debounce"`
	Variables          map[string]string `yaml:"variables,omitempty"`
	Cache              CacheConfig       `yaml:"cache"`
	Limits             LimitsConfig      `yaml:"limits"`
}

// CacheConfig controls the shared decode cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// LimitsConfig bounds decode memory. Files declaring more pixels fail to
// load with a decode failure instead of exhausting memory.
type LimitsConfig struct {
	MaxPixels          int64 `yaml:"max_pixels"`
	MaxAnimationPixels int64 `yaml:"max_animation_pixels"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:           LogLevelInfo,
		AnimatedExtensions: append([]string(nil), imaging.DefaultAnimatedExtensions...),
		Debounce:           "100ms",
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: imaging.DefaultCacheEntries,
		},
		Limits: LimitsConfig{
			MaxPixels:          imaging.DefaultMaxPixels,
			MaxAnimationPixels: imaging.DefaultMaxAnimationPixels,
		},
	}
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", LogLevelInfo, LogLevelDebug:
	default:
		return fmt.Errorf("invalid log_level %q: must be %s or %s", c.LogLevel, LogLevelInfo, LogLevelDebug)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("invalid cache.max_entries %d: must not be negative", c.Cache.MaxEntries)
	}
	if c.Limits.MaxPixels < 0 || c.Limits.MaxAnimationPixels < 0 {
		return fmt.Errorf("invalid limits: max_pixels and max_animation_pixels must not be negative")
	}
	return nil
}

// IsDebug reports whether debug logging is enabled.
func (c *Config) IsDebug() bool {
	return strings.EqualFold(c.LogLevel, LogLevelDebug)
}

// DebounceDuration parses Debounce. An empty value disables debouncing.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Debounce) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.Debounce))
	if err != nil {
		return 0, fmt.Errorf("invalid debounce %q: %w", c.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid debounce %q: must not be negative", c.Debounce)
	}
	return d, nil
}

// CacheEntries returns the decode cache size, or 0 when caching is off.
func (c *Config) CacheEntries() int {
	if !c.Cache.Enabled {
		return 0
	}
	if c.Cache.MaxEntries == 0 {
		return imaging.DefaultCacheEntries
	}
	return c.Cache.MaxEntries
}
