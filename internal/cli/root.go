// Package cli implements the comment-image-mcp command line.
package cli

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ironsheep/comment-image-mcp/internal/config"
	"github.com/spf13/cobra"
)

// LogLevelEnv overrides log_level from the config file.
const LogLevelEnv = "COMMENT_IMAGE_LOG_LEVEL"

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "comment-image-mcp",
	Short: "MCP server that shows live-reloading images from source comments",
	Long: `comment-image-mcp resolves image URLs written in source-code comments,
decodes them and watches the files, telling the host editor to repaint when
an image changes on disk.

Without a subcommand it runs the MCP server on stdin/stdout.

Configuration file: ~/.comment-image-mcp/config.yaml
Environment:
  COMMENT_IMAGE_LOG_LEVEL=debug    Enable debug logging`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.comment-image-mcp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: info or debug")
}

// SetVersion sets the build information reported by --version.
func SetVersion(v, built, commit string) {
	version = v
	buildTime = built
	gitCommit = commit
	rootCmd.Version = v
	rootCmd.SetVersionTemplate(fmt.Sprintf("comment-image-mcp %s\n  Build time: %s\n  Git commit: %s\n", v, built, commit))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogging sends logs to stderr; stdout is for the MCP protocol.
func setupLogging(cmd *cobra.Command, args []string) error {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return nil
}

// newLoader returns the loader for --config or the default location.
func newLoader() (*config.Loader, error) {
	if configPath != "" {
		return config.NewLoaderWithPath(configPath), nil
	}
	return config.NewLoader()
}

// loadConfig loads the configuration and applies the log level overrides:
// the --log-level flag wins over the environment, which wins over the file.
func loadConfig() (*config.Config, error) {
	loader, err := newLoader()
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if level := os.Getenv(LogLevelEnv); level != "" {
		cfg.LogLevel = level
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
