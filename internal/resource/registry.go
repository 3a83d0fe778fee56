package resource

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/ironsheep/comment-image-mcp/internal/dispatch"
	"github.com/ironsheep/comment-image-mcp/internal/expand"
	"github.com/ironsheep/comment-image-mcp/internal/filewatch"
	"github.com/ironsheep/comment-image-mcp/internal/imaging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Expander resolves $(Name) tokens. Defaults to expand.Identity.
	Expander expand.Expander

	// AnimatedExtensions overrides imaging.DefaultAnimatedExtensions.
	AnimatedExtensions []string

	// CacheEntries bounds the shared decode cache. Zero disables caching.
	CacheEntries int

	// MaxPixels and MaxAnimationPixels bound decode memory; zero keeps the
	// imaging defaults.
	MaxPixels          int64
	MaxAnimationPixels int64

	// Debounce coalesces bursts of file events per path.
	Debounce time.Duration

	// OnInvalidate is called on the registry loop after a file change
	// replaced the image shown in slot.
	OnInvalidate func(slot string, r *Resource)

	Logger *log.Logger
}

// Registry maps host slot identifiers to resources that share one file
// watcher, one dispatch loop and one decode cache.
type Registry struct {
	hub      *filewatch.Hub
	loop     *dispatch.Loop
	decoder  *imaging.Decoder
	cache    *imaging.Cache
	expander expand.Expander
	notify   func(string, *Resource)
	logger   *log.Logger

	mu     sync.Mutex
	slots  map[string]*Resource
	closed bool
}

// NewRegistry creates the shared watcher and loop.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	expander := opts.Expander
	if expander == nil {
		expander = expand.Identity
	}

	hub, err := filewatch.NewHub(filewatch.Options{Debounce: opts.Debounce, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	var cache *imaging.Cache
	if opts.CacheEntries > 0 {
		cache = imaging.NewCache(opts.CacheEntries)
	}

	return &Registry{
		hub:  hub,
		loop: dispatch.NewWithOptions(dispatch.Options{Logger: logger}),
		decoder: imaging.NewDecoder(imaging.DecoderOptions{
			AnimatedExtensions: opts.AnimatedExtensions,
			Cache:              cache,
			MaxPixels:          opts.MaxPixels,
			MaxAnimationPixels: opts.MaxAnimationPixels,
		}),
		cache:    cache,
		expander: expander,
		notify:   opts.OnInvalidate,
		logger:   logger,
		slots:    make(map[string]*Resource),
	}, nil
}

// Set configures the resource for slot, creating it on first use. A failed
// first configuration still keeps the slot so a later file change can fill
// it.
func (g *Registry) Set(slot, rawURL, originalURL string, scale float64, sourceFilePath string) (*Resource, error) {
	if slot == "" {
		return nil, errors.New("slot is required")
	}
	r, err := g.obtain(slot)
	if err != nil {
		return nil, err
	}
	return r, r.Configure(rawURL, originalURL, scale, sourceFilePath)
}

// SetScale changes the scale of the resource in slot.
func (g *Registry) SetScale(slot string, scale float64) (*Resource, error) {
	r, ok := g.Get(slot)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return r, r.SetScale(scale)
}

// Get returns the resource for slot.
func (g *Registry) Get(slot string) (*Resource, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.slots[slot]
	return r, ok
}

// Dispose closes and forgets the resource for slot.
func (g *Registry) Dispose(slot string) error {
	g.mu.Lock()
	r, ok := g.slots[slot]
	delete(g.slots, slot)
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	return r.Close()
}

// Slots returns the held slot identifiers in sorted order.
func (g *Registry) Slots() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	slots := make([]string, 0, len(g.slots))
	for slot := range g.slots {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Len returns the number of held slots.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// WatchedDirs lists the directories currently watched on behalf of slots.
func (g *Registry) WatchedDirs() []string { return g.hub.WatchedDirs() }

// CachedImages returns the number of decoded images held by the cache.
func (g *Registry) CachedImages() int { return g.cache.Len() }

// Close disposes every slot, then stops the loop and the watcher.
func (g *Registry) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	slots := g.slots
	g.slots = make(map[string]*Resource)
	g.mu.Unlock()

	var errs []error
	for _, r := range slots {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.loop.Close()
	if err := g.hub.Close(); err != nil {
		errs = append(errs, err)
	}
	g.cache.Clear()
	return errors.Join(errs...)
}

func (g *Registry) obtain(slot string) (*Resource, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrClosed
	}
	if r, ok := g.slots[slot]; ok {
		return r, nil
	}

	opts := Options{Decoder: g.decoder, Logger: g.logger}
	if g.notify != nil {
		notify := g.notify
		opts.OnInvalidate = func(r *Resource) { notify(slot, r) }
	}
	r, err := New(g.expander, g.hub.NewWatch(), g.loop, opts)
	if err != nil {
		return nil, err
	}
	g.slots[slot] = r
	return r, nil
}
