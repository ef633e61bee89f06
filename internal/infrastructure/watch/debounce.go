// Package watch re-runs work when watched files change on disk.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers per key into a single callback.
type Debouncer struct {
	window   time.Duration
	callback func(key string)

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration, callback func(key string)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*time.Timer),
	}
}

// Trigger restarts the window for key. The callback fires once the window
// elapses with no further triggers for that key.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	d.pending[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.pending, key)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.callback(key)
		}
	})
}

// Stop cancels every pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, t := range d.pending {
		t.Stop()
		delete(d.pending, key)
	}
}
