package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/ironsheep/comment-image-mcp/internal/expand"
	"github.com/ironsheep/comment-image-mcp/internal/imaging"
	"github.com/ironsheep/comment-image-mcp/internal/resource"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	inspectSource string
	inspectScale  float64
	inspectWatch  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Resolve, decode and describe a comment image",
	Long: `Resolve an image URL the way the server does, decode it and print
its metadata as YAML. Relative URLs resolve against the directory of
--source, or the working directory when --source is not given.

With --watch the command keeps running and prints the new state every time
the file changes on disk, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectSource, "source", "s", "", "source file containing the comment")
	inspectCmd.Flags().Float64Var(&inspectScale, "scale", 1.0, "display scale")
	inspectCmd.Flags().BoolVarP(&inspectWatch, "watch", "w", false, "keep watching the file for changes")

	rootCmd.AddCommand(inspectCmd)
}

// inspectReport is the YAML printed by inspect.
type inspectReport struct {
	URL           string                  `yaml:"url"`
	ResolvedPath  string                  `yaml:"resolved_path"`
	Scale         float64                 `yaml:"scale"`
	EffectiveSize imaging.Size            `yaml:"effective_size"`
	Image         *imaging.ImageInfo      `yaml:"image,omitempty"`
	Placeholder   *imaging.ColorFrequency `yaml:"placeholder_color,omitempty"`
	Error         string                  `yaml:"error,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	debounce, err := cfg.DebounceDuration()
	if err != nil {
		return err
	}

	source := inspectSource
	if source == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		// Any file name inside wd resolves relative URLs against wd.
		source = filepath.Join(wd, "inspect")
	}

	out := &reportWriter{w: cmd.OutOrStdout()}
	registry, err := resource.NewRegistry(resource.RegistryOptions{
		Expander:           expand.NewVariables(cfg.Variables),
		AnimatedExtensions: cfg.AnimatedExtensions,
		CacheEntries:       cfg.CacheEntries(),
		MaxPixels:          cfg.Limits.MaxPixels,
		MaxAnimationPixels: cfg.Limits.MaxAnimationPixels,
		Debounce:           debounce,
		Logger:             log.Default(),
		OnInvalidate: func(slot string, r *resource.Resource) {
			if err := out.write(r); err != nil {
				log.Printf("Failed to write report: %v", err)
			}
		},
	})
	if err != nil {
		return err
	}
	defer registry.Close()

	r, loadErr := registry.Set("inspect", args[0], args[0], inspectScale, source)
	if r == nil {
		return loadErr
	}
	if err := out.write(r); err != nil {
		return err
	}
	if !inspectWatch {
		return loadErr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	log.Printf("Watching %s, press Ctrl+C to stop", args[0])
	<-ctx.Done()
	return nil
}

// reportWriter serialises reports from the command goroutine and the
// registry loop.
type reportWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (rw *reportWriter) write(r *resource.Resource) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return writeReport(rw.w, r)
}

func writeReport(w io.Writer, r *resource.Resource) error {
	v := r.View()
	report := inspectReport{
		Scale:         v.Scale,
		EffectiveSize: v.Size,
		Image:         imaging.Info(v.Decoded),
	}
	if v.Reference != nil {
		report.URL = v.Reference.ExpandedURL
		report.ResolvedPath = v.Reference.ResolvedPath
	}
	if c, ok := imaging.DominantColor(v.Decoded); ok {
		report.Placeholder = &c
	}
	if v.LastError != nil {
		report.Error = v.LastError.Error()
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := fmt.Fprintf(w, "---\n%s", data); err != nil {
		return err
	}
	return nil
}
