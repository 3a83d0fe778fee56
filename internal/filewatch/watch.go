package filewatch

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
)

// Handler receives the full path of the file that triggered an event.
type Handler func(path string)

// Binding describes what a Watch currently monitors.
type Binding struct {
	Directory string
	Pattern   string
	Enabled   bool
}

// Watch monitors one file pattern in one directory.
//
// Binding state lives under the hub lock; deliverMu serialises handler
// invocation against rebinding. Lock order is deliverMu, then hub.mu.
type Watch struct {
	hub       *Hub
	deliverMu sync.Mutex

	binding    Binding
	generation uint64
	onModified Handler
	onRenamed  Handler
	stopped    bool
}

// OnModified sets the handler for modified events.
func (w *Watch) OnModified(h Handler) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()
	if !w.stopped {
		w.onModified = h
	}
}

// OnRenamed sets the handler for renamed-to events.
func (w *Watch) OnRenamed(h Handler) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()
	if !w.stopped {
		w.onRenamed = h
	}
}

// Configure points the watch at pattern inside dir and enables it.
//
// Any previous binding is disabled first. If the directory cannot be
// watched the new binding is still recorded, left disabled, and the error
// returned; a later Enable may succeed once the directory exists.
func (w *Watch) Configure(dir, pattern string) error {
	if dir == "" || pattern == "" {
		return errors.New("directory and pattern are required")
	}

	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()

	if err := w.usableLocked(); err != nil {
		return err
	}
	w.disableLocked()
	w.binding = Binding{Directory: filepath.Clean(dir), Pattern: pattern}
	return w.enableLocked()
}

// Enable arms the current binding.
func (w *Watch) Enable() error {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()

	if err := w.usableLocked(); err != nil {
		return err
	}
	if w.binding.Directory == "" {
		return errors.New("watch has no binding")
	}
	return w.enableLocked()
}

// Disable stops delivery for the current binding but keeps it for a later
// Enable.
func (w *Watch) Disable() {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()
	w.disableLocked()
}

// Binding returns a copy of the current binding.
func (w *Watch) Binding() Binding {
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()
	return w.binding
}

// Stop disables the watch, drops its handlers and detaches it from the hub.
// Stop is idempotent.
func (w *Watch) Stop() error {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()

	if w.stopped {
		return nil
	}
	if !w.hub.closed {
		w.disableLocked()
	}
	w.binding.Enabled = false
	w.generation++
	w.onModified = nil
	w.onRenamed = nil
	w.stopped = true
	delete(w.hub.watches, w)
	return nil
}

func (w *Watch) usableLocked() error {
	if w.stopped {
		return ErrStopped
	}
	if w.hub.closed {
		return ErrHubClosed
	}
	return nil
}

func (w *Watch) enableLocked() error {
	if w.binding.Enabled {
		return nil
	}
	if err := w.hub.acquireDirLocked(w.binding.Directory); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.binding.Directory, err)
	}
	w.binding.Enabled = true
	w.generation++
	return nil
}

func (w *Watch) disableLocked() {
	if !w.binding.Enabled {
		return
	}
	w.hub.releaseDirLocked(w.binding.Directory)
	w.binding.Enabled = false
	w.generation++
}

func (w *Watch) matchesLocked(dir, name string) bool {
	if w.stopped || !w.binding.Enabled || w.binding.Directory != dir {
		return false
	}
	if w.binding.Pattern == name {
		return true
	}
	ok, err := filepath.Match(w.binding.Pattern, name)
	return err == nil && ok
}

// dispatch runs the handler for kind if the watch is still on generation.
func (w *Watch) dispatch(generation uint64, path string, kind EventKind) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.hub.mu.Lock()
	if w.stopped || w.hub.closed || w.generation != generation {
		w.hub.mu.Unlock()
		return
	}
	handler := w.onModified
	if kind == Renamed {
		handler = w.onRenamed
	}
	w.hub.mu.Unlock()

	if handler != nil {
		handler(path)
	}
}
