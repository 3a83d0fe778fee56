package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/comment-image-mcp/internal/expand"
	"github.com/ironsheep/comment-image-mcp/internal/filewatch"
	"github.com/ironsheep/comment-image-mcp/internal/imaging"
)

// FileWatch is the single-file watch capability a Resource rebinds.
// *filewatch.Watch satisfies it.
type FileWatch interface {
	Configure(dir, pattern string) error
	Disable()
	OnModified(h filewatch.Handler)
	OnRenamed(h filewatch.Handler)
	Stop() error
}

// Dispatcher is the execution context that owns display state.
// *dispatch.Loop satisfies it.
type Dispatcher interface {
	Post(fn func()) bool
	Do(ctx context.Context, fn func()) error
}

// Decoder loads an image file. *imaging.Decoder satisfies it.
type Decoder interface {
	Decode(path string) (*imaging.Decoded, error)
}

// Reference records one configuration request. It is never modified; the
// next Configure produces a new one.
type Reference struct {
	RawURL         string
	ExpandedURL    string
	OriginalURL    string
	ResolvedPath   string
	Scale          float64
	SourceFilePath string
}

// Options configures a Resource.
type Options struct {
	// Decoder defaults to an imaging.Decoder with the default animated set.
	Decoder Decoder

	// OnInvalidate is called on the dispatcher after a file change swapped
	// in a new image. The host should repaint. It may read the Resource but
	// must not call Configure or SetScale.
	OnInvalidate func(r *Resource)

	// Logger receives reload failures and watch errors. Nil discards them.
	Logger *log.Logger
}

// snapshot is the immutable published state read by the rendering side.
type snapshot struct {
	ref     *Reference
	decoded *imaging.Decoded
	scale   float64
	size    imaging.Size
	lastErr error
}

// Resource is a reloadable image shown for one comment-image reference.
//
// All mutation happens in tasks on the Dispatcher: Configure and SetScale
// run there synchronously through Do, file-change notifications are handed
// over with Post. Readers never block; they load the latest immutable
// snapshot.
type Resource struct {
	expander     expand.Expander
	watch        FileWatch
	loop         Dispatcher
	decoder      Decoder
	onInvalidate func(*Resource)
	logger       *log.Logger

	state     atomic.Pointer[snapshot]
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// Owned by the dispatcher.
	target      *Reference
	targetScale float64
}

// New creates a Resource and registers its change handlers on watch.
func New(expander expand.Expander, watch FileWatch, loop Dispatcher, opts Options) (*Resource, error) {
	if expander == nil {
		return nil, errors.New("variable expander is required")
	}
	if watch == nil {
		return nil, errors.New("file watch is required")
	}
	if loop == nil {
		return nil, errors.New("dispatcher is required")
	}

	decoder := opts.Decoder
	if decoder == nil {
		decoder = imaging.NewDecoder(imaging.DecoderOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Resource{
		expander:     expander,
		watch:        watch,
		loop:         loop,
		decoder:      decoder,
		onInvalidate: opts.OnInvalidate,
		logger:       logger,
	}
	r.state.Store(&snapshot{})

	// Modified and renamed-to are handled identically.
	watch.OnModified(r.handleFileEvent)
	watch.OnRenamed(r.handleFileEvent)
	return r, nil
}

// Configure points the resource at a new image and loads it.
//
// On failure the previously displayed image, reference and scale are kept
// and a *LoadError describes the cause. Configure must not be called from a
// task running on the resource's dispatcher.
func (r *Resource) Configure(rawURL, originalURL string, scale float64, sourceFilePath string) error {
	return r.ConfigureContext(context.Background(), rawURL, originalURL, scale, sourceFilePath)
}

// ConfigureContext is Configure with a context bounding the wait for the
// dispatcher. A configuration that is already queued still runs when ctx
// ends.
func (r *Resource) ConfigureContext(ctx context.Context, rawURL, originalURL string, scale float64, sourceFilePath string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	var err error
	if doErr := r.loop.Do(ctx, func() {
		err = r.configure(rawURL, originalURL, scale, sourceFilePath)
	}); doErr != nil {
		return doErr
	}
	return err
}

// TrySet is the boolean form of Configure used by hosts that want a flag
// plus the failure cause.
func (r *Resource) TrySet(rawURL, originalURL string, scale float64, sourceFilePath string) (bool, error) {
	err := r.Configure(rawURL, originalURL, scale, sourceFilePath)
	return err == nil, err
}

// SetScale changes the display scale without decoding. Without an image the
// value is remembered and applied to the next one.
func (r *Resource) SetScale(scale float64) error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.loop.Do(context.Background(), func() {
		r.targetScale = scale
		cur := r.state.Load()
		next := *cur
		next.scale = scale
		next.size = imaging.EffectiveSize(cur.decoded, scale)
		r.state.Store(&next)
	})
}

// configure runs on the dispatcher.
func (r *Resource) configure(rawURL, originalURL string, scale float64, sourceFilePath string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if sourceFilePath == "" {
		return invalidReference(rawURL, "source file path is empty")
	}

	expanded := r.expander.Expand(rawURL)
	resolved, local, err := Resolve(expanded, sourceFilePath)
	if err != nil {
		return invalidReference(expanded, err.Error())
	}

	ref := &Reference{
		RawURL:         rawURL,
		ExpandedURL:    expanded,
		OriginalURL:    originalURL,
		ResolvedPath:   resolved,
		Scale:          scale,
		SourceFilePath: sourceFilePath,
	}

	// Rebind before decoding so a file that appears in between is seen.
	r.rebind(resolved, local)
	r.target = ref
	r.targetScale = scale

	decoded, err := r.load(resolved, local)
	if err != nil {
		r.recordError(err)
		return err
	}

	r.state.Store(&snapshot{
		ref:     ref,
		decoded: decoded,
		scale:   scale,
		size:    imaging.EffectiveSize(decoded, scale),
	})
	return nil
}

func (r *Resource) rebind(resolved string, local bool) {
	if !local {
		r.watch.Disable()
		return
	}
	dir, name := filepath.Dir(resolved), filepath.Base(resolved)
	if err := r.watch.Configure(dir, name); err != nil {
		r.logger.Printf("resource: cannot watch %s: %v", resolved, err)
	}
}

func (r *Resource) load(resolved string, local bool) (*imaging.Decoded, error) {
	if !local {
		scheme, _, _ := strings.Cut(resolved, ":")
		return nil, &LoadError{
			Kind: DecodeFailure,
			URL:  resolved,
			Err:  fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme),
		}
	}
	decoded, err := r.decoder.Decode(resolved)
	if err != nil {
		return nil, classify(resolved, err)
	}
	return decoded, nil
}

// recordError publishes err as the last error while keeping the image.
func (r *Resource) recordError(err error) {
	next := *r.state.Load()
	next.lastErr = err
	r.state.Store(&next)
}

// handleFileEvent is called from the watcher goroutine.
func (r *Resource) handleFileEvent(path string) {
	if path == "" || r.closed.Load() {
		return
	}
	r.loop.Post(func() { r.reload(path) })
}

// reload runs on the dispatcher.
func (r *Resource) reload(path string) {
	if r.closed.Load() || r.target == nil {
		return
	}
	if filepath.Clean(path) != r.target.ResolvedPath {
		// Late event for a binding that has since been replaced.
		return
	}

	decoded, err := r.load(r.target.ResolvedPath, true)
	if err != nil {
		r.logger.Printf("resource: reload %s: %v", r.target.ResolvedPath, err)
		r.recordError(err)
		return
	}

	cur := r.state.Load()
	if cur.decoded == decoded && cur.ref == r.target && cur.scale == r.targetScale && cur.lastErr == nil {
		return
	}
	r.state.Store(&snapshot{
		ref:     r.target,
		decoded: decoded,
		scale:   r.targetScale,
		size:    imaging.EffectiveSize(decoded, r.targetScale),
	})

	if r.onInvalidate != nil {
		r.onInvalidate(r)
	}
}

// Close detaches the change handlers and stops the watch. Notifications
// already queued become no-ops. Close is idempotent.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.watch.OnModified(nil)
		r.watch.OnRenamed(nil)
		r.closeErr = r.watch.Stop()
	})
	return r.closeErr
}

// View is one consistent reading of the displayed state.
type View struct {
	Reference *Reference
	Decoded   *imaging.Decoded
	Scale     float64
	Size      imaging.Size
	LastError error
}

// View returns the displayed state as of a single snapshot, for callers
// that need the image and its scale to agree.
func (r *Resource) View() View {
	st := r.state.Load()
	return View{
		Reference: st.ref,
		Decoded:   st.decoded,
		Scale:     st.scale,
		Size:      st.size,
		LastError: st.lastErr,
	}
}

// Closed reports whether Close has been called.
func (r *Resource) Closed() bool { return r.closed.Load() }

// Reference returns the reference of the displayed image, or nil.
func (r *Resource) Reference() *Reference { return r.state.Load().ref }

// URL returns the expanded URL of the displayed image.
func (r *Resource) URL() string {
	if ref := r.Reference(); ref != nil {
		return ref.ExpandedURL
	}
	return ""
}

// OriginalURL returns the pre-expansion URL of the displayed image.
func (r *Resource) OriginalURL() string {
	if ref := r.Reference(); ref != nil {
		return ref.OriginalURL
	}
	return ""
}

// ResolvedPath returns the path or URI the displayed image was loaded from.
func (r *Resource) ResolvedPath() string {
	if ref := r.Reference(); ref != nil {
		return ref.ResolvedPath
	}
	return ""
}

// Decoded returns the displayed image, or nil.
func (r *Resource) Decoded() *imaging.Decoded { return r.state.Load().decoded }

// Scale returns the last scale applied to the displayed state.
func (r *Resource) Scale() float64 { return r.state.Load().scale }

// EffectiveSize returns the display size of the current image and scale.
func (r *Resource) EffectiveSize() imaging.Size { return r.state.Load().size }

// LastError returns the most recent load failure, cleared by the next
// successful load.
func (r *Resource) LastError() error { return r.state.Load().lastErr }

// String returns the URL of the displayed image.
func (r *Resource) String() string { return r.URL() }
