package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != LogLevelInfo {
		t.Errorf("expected log level 'info', got %s", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.AnimatedExtensions, []string{".gif"}) {
		t.Errorf("expected animated extensions [.gif], got %v", cfg.AnimatedExtensions)
	}
	if d, err := cfg.DebounceDuration(); err != nil || d != 100*time.Millisecond {
		t.Errorf("expected debounce 100ms, got %v (%v)", d, err)
	}
	if cfg.CacheEntries() != 64 {
		t.Errorf("expected 64 cache entries, got %d", cfg.CacheEntries())
	}
	if cfg.Limits.MaxPixels != 64<<20 {
		t.Errorf("expected max_pixels %d, got %d", 64<<20, cfg.Limits.MaxPixels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"debug level", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
		{"empty level", func(c *Config) { c.LogLevel = "" }, ""},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"empty debounce", func(c *Config) { c.Debounce = "" }, ""},
		{"bad debounce", func(c *Config) { c.Debounce = "soon" }, "debounce"},
		{"negative debounce", func(c *Config) { c.Debounce = "-1s" }, "debounce"},
		{"negative cache", func(c *Config) { c.Cache.MaxEntries = -1 }, "max_entries"},
		{"negative pixel limit", func(c *Config) { c.Limits.MaxPixels = -1 }, "max_pixels"},
		{"zero pixel limit uses default", func(c *Config) { c.Limits.MaxAnimationPixels = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_CacheEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = false
	if cfg.CacheEntries() != 0 {
		t.Errorf("disabled cache should report 0 entries, got %d", cfg.CacheEntries())
	}

	cfg.Cache = CacheConfig{Enabled: true, MaxEntries: 0}
	if cfg.CacheEntries() != 64 {
		t.Errorf("zero max_entries should fall back to 64, got %d", cfg.CacheEntries())
	}
}

func TestLoader_SaveAndLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewLoaderWithPath(configPath)

	cfg := DefaultConfig()
	cfg.LogLevel = LogLevelDebug
	cfg.Variables = map[string]string{"SolutionDir": "/work"}

	if err := loader.Save(cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := os.Stat(loader.ConfigPath()); err != nil {
		t.Errorf("expected config file to exist after save: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !loaded.IsDebug() {
		t.Errorf("expected debug log level, got %s", loaded.LogLevel)
	}
	if loaded.Variables["SolutionDir"] != "/work" {
		t.Errorf("expected SolutionDir '/work', got %v", loaded.Variables)
	}
}

func TestLoader_LoadNonExistent(t *testing.T) {
	loader := NewLoaderWithPath(filepath.Join(t.TempDir(), "nonexistent", "config.yaml"))

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("expected no error for non-existent file, got: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoader_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `animated_extensions: [".gif", ".webp"]
cache:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := NewLoaderWithPath(configPath).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !reflect.DeepEqual(cfg.AnimatedExtensions, []string{".gif", ".webp"}) {
		t.Errorf("unexpected animated extensions %v", cfg.AnimatedExtensions)
	}
	if cfg.CacheEntries() != 0 {
		t.Errorf("cache should be disabled, got %d entries", cfg.CacheEntries())
	}
	if cfg.LogLevel != LogLevelInfo || cfg.Debounce != "100ms" {
		t.Errorf("missing keys should keep defaults, got level=%s debounce=%s", cfg.LogLevel, cfg.Debounce)
	}
}

func TestLoader_ExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_SOLUTION_DIR", "/home/dev/solution")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `variables:
  SolutionDir: ${TEST_SOLUTION_DIR}
  Unset: ${TEST_NOT_SET_ANYWHERE}
debounce: 250ms
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := NewLoaderWithPath(configPath).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Variables["SolutionDir"] != "/home/dev/solution" {
		t.Errorf("expected expanded SolutionDir, got %q", cfg.Variables["SolutionDir"])
	}
	if cfg.Variables["Unset"] != "" {
		t.Errorf("unset variable should expand to empty, got %q", cfg.Variables["Unset"])
	}
	if d, _ := cfg.DebounceDuration(); d != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", d)
	}
}

func TestLoader_InvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "log_level: [unterminated"},
		{"bad value", "log_level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if _, err := NewLoaderWithPath(configPath).Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoader_Init(t *testing.T) {
	loader := NewLoaderWithPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err := loader.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := loader.Init(); err == nil {
		t.Error("second Init should refuse to overwrite")
	}
}
