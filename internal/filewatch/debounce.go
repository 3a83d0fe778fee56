package filewatch

import (
	"time"
)

type debounceEntry struct {
	timer *time.Timer
	kind  EventKind
}

// debouncer coalesces events per path. Only the Hub touches it, under h.mu.
type debouncer struct {
	duration time.Duration
	entries  map[string]debounceEntry
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		entries:  make(map[string]debounceEntry),
	}
}

// schedule records kind for path and (re)starts its timer. A Renamed event
// is not downgraded by later Modified events in the same burst.
func (d *debouncer) schedule(path string, kind EventKind, flush func(string)) {
	if d == nil {
		return
	}
	entry, pending := d.entries[path]
	if !pending || kind == Renamed {
		entry.kind = kind
	}
	if entry.timer == nil {
		entry.timer = time.AfterFunc(d.duration, func() {
			flush(path)
		})
	} else {
		entry.timer.Reset(d.duration)
	}
	d.entries[path] = entry
}

func (d *debouncer) pop(path string) (EventKind, bool) {
	if d == nil {
		return 0, false
	}
	entry, ok := d.entries[path]
	if !ok {
		return 0, false
	}
	delete(d.entries, path)
	return entry.kind, true
}

func (d *debouncer) stop() {
	if d == nil {
		return
	}
	for _, entry := range d.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	d.entries = nil
}
