package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

const (
	// ConfigDirName is the directory under $HOME holding config.yaml.
	ConfigDirName = ".comment-image-mcp"
	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.yaml"
)

// envRef matches ${NAME} in the raw file. The values under variables often
// point at checkouts, e.g. `ProjectDir: ${HOME}/src/app`.
var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Loader reads and writes one configuration file.
type Loader struct {
	path string
}

// NewLoader returns a loader for ~/.comment-image-mcp/config.yaml.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewLoaderWithPath(filepath.Join(home, ConfigDirName, ConfigFileName)), nil
}

// NewLoaderWithPath returns a loader for the file given with --config.
func NewLoaderWithPath(path string) *Loader {
	return &Loader{path: path}
}

// ConfigPath returns the configuration file path.
func (l *Loader) ConfigPath() string {
	return l.path
}

// Load returns the configuration. Keys missing from the file, and the whole
// file when it does not exist, take their DefaultConfig values, so a file
// holding only `debounce: 250ms` keeps the default cache and animated
// extensions.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", l.path, err)
	}
	return cfg, nil
}

// Save writes cfg, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Init writes the defaults and refuses to replace an existing file.
func (l *Loader) Init() error {
	if _, err := os.Stat(l.path); err == nil {
		return fmt.Errorf("config file already exists: %s", l.path)
	}
	return l.Save(DefaultConfig())
}

// expandEnv substitutes ${NAME} references. Unset names become empty.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}
