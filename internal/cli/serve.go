package cli

import (
	"fmt"
	"log"

	"github.com/ironsheep/comment-image-mcp/internal/expand"
	"github.com/ironsheep/comment-image-mcp/internal/resource"
	"github.com/ironsheep/comment-image-mcp/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	Long: `Run the MCP server. The host editor starts this process and talks
JSON-RPC 2.0 over stdin/stdout; logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}

	if cfg.IsDebug() {
		log.Printf("Comment Image MCP Server v%s (built %s, commit %s)", version, buildTime, gitCommit)
		log.Printf("Animated extensions %v, debounce %s, cache %d", cfg.AnimatedExtensions, debounce, cfg.CacheEntries())
	}

	srv, err := server.New(server.Options{
		Registry: resource.RegistryOptions{
			Expander:           expand.NewVariables(cfg.Variables),
			AnimatedExtensions: cfg.AnimatedExtensions,
			CacheEntries:       cfg.CacheEntries(),
			MaxPixels:          cfg.Limits.MaxPixels,
			MaxAnimationPixels: cfg.Limits.MaxAnimationPixels,
			Debounce:           debounce,
		},
		Version: version,
		Debug:   cfg.IsDebug(),
		In:      cmd.InOrStdin(),
		Out:     cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
