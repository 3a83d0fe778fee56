package filewatch

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrHubClosed is returned by operations on a closed Hub.
	ErrHubClosed = errors.New("file watch hub closed")

	// ErrStopped is returned by operations on a stopped Watch.
	ErrStopped = errors.New("file watch stopped")
)

// EventKind classifies a change to a bound file.
type EventKind int

const (
	// Modified means the bound file's contents or attributes changed.
	Modified EventKind = iota
	// Renamed means a file was created or renamed onto the bound name.
	Renamed
)

func (k EventKind) String() string {
	switch k {
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Options controls Hub behavior.
type Options struct {
	// Debounce coalesces bursts of events for the same path. Zero delivers
	// every event immediately.
	Debounce time.Duration

	// Logger receives watcher errors and debug lines. Nil discards them.
	Logger *log.Logger
}

// Hub multiplexes one fsnotify watcher across many Watch bindings.
type Hub struct {
	fsw    *fsnotify.Watcher
	logger *log.Logger

	mu        sync.Mutex
	dirs      map[string]int
	watches   map[*Watch]struct{}
	debouncer *debouncer
	closed    bool

	done chan struct{}
}

// NewHub creates a Hub and starts its event loop.
func NewHub(opts Options) (*Hub, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	h := &Hub{
		fsw:     fsw,
		logger:  logger,
		dirs:    make(map[string]int),
		watches: make(map[*Watch]struct{}),
		done:    make(chan struct{}),
	}
	if opts.Debounce > 0 {
		h.debouncer = newDebouncer(opts.Debounce)
	}

	go h.run()
	return h, nil
}

// NewWatch creates an unbound Watch attached to h.
func (h *Hub) NewWatch() *Watch {
	w := &Watch{hub: h}
	h.mu.Lock()
	if h.closed {
		w.stopped = true
	} else {
		h.watches[w] = struct{}{}
	}
	h.mu.Unlock()
	return w
}

// WatchedDirs returns the directories currently registered with fsnotify.
func (h *Hub) WatchedDirs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	dirs := make([]string, 0, len(h.dirs))
	for dir := range h.dirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Close stops event processing. Watches created from h become inert.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.debouncer.stop()
	h.debouncer = nil
	h.mu.Unlock()

	close(h.done)
	return h.fsw.Close()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			h.handleEvent(event)
		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			// Overflow and similar errors are not fatal; keep watching.
			h.logger.Printf("filewatch: watcher error: %v", err)
		}
	}
}

func classify(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Renamed, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return Modified, true
	default:
		return 0, false
	}
}

func (h *Hub) handleEvent(event fsnotify.Event) {
	kind, ok := classify(event.Op)
	if !ok || event.Name == "" {
		return
	}
	path := filepath.Clean(event.Name)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.debouncer != nil {
		h.debouncer.schedule(path, kind, h.flush)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	h.deliver(path, kind)
}

func (h *Hub) flush(path string) {
	h.mu.Lock()
	if h.closed || h.debouncer == nil {
		h.mu.Unlock()
		return
	}
	kind, ok := h.debouncer.pop(path)
	h.mu.Unlock()
	if ok {
		h.deliver(path, kind)
	}
}

type target struct {
	watch      *Watch
	generation uint64
}

func (h *Hub) deliver(path string, kind EventKind) {
	dir, name := filepath.Dir(path), filepath.Base(path)

	h.mu.Lock()
	var targets []target
	for w := range h.watches {
		if w.matchesLocked(dir, name) {
			targets = append(targets, target{watch: w, generation: w.generation})
		}
	}
	h.mu.Unlock()

	for _, t := range targets {
		t.watch.dispatch(t.generation, path, kind)
	}
}

// acquireDirLocked registers dir with fsnotify if it is not watched yet.
// Callers hold h.mu.
func (h *Hub) acquireDirLocked(dir string) error {
	if h.dirs[dir] == 0 {
		if err := h.fsw.Add(dir); err != nil {
			return err
		}
		h.logger.Printf("filewatch: watching %s", dir)
	}
	h.dirs[dir]++
	return nil
}

// releaseDirLocked drops one reference to dir. Callers hold h.mu.
func (h *Hub) releaseDirLocked(dir string) {
	n := h.dirs[dir]
	if n == 0 {
		return
	}
	if n > 1 {
		h.dirs[dir] = n - 1
		return
	}
	delete(h.dirs, dir)
	// fsnotify drops watches on deleted directories by itself.
	if err := h.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		h.logger.Printf("filewatch: remove %s: %v", dir, err)
	}
}
