package daemon

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce delays a callback for each path until no event for that path
// arrived for the configured duration.
type Debounce struct {
	duration time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewDebounce creates a debouncer.
func NewDebounce(duration time.Duration) *Debounce {
	return &Debounce{
		duration: duration,
		pending:  make(map[string]*time.Timer),
	}
}

// Add schedules fn for the event's path, restarting the quiet period if
// the path already has one pending.
func (d *Debounce) Add(event fsnotify.Event, fn func(fsnotify.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	name := filepath.Clean(event.Name)
	if timer, ok := d.pending[name]; ok {
		timer.Reset(d.duration)
		return
	}
	d.pending[name] = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		delete(d.pending, name)
		stopped := d.stopped
		d.mu.Unlock()

		if !stopped {
			fn(event)
		}
	})
}

// Cancel drops a pending callback for path.
func (d *Debounce) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := filepath.Clean(path)
	if timer, ok := d.pending[name]; ok {
		timer.Stop()
		delete(d.pending, name)
	}
}

// Pending returns the number of scheduled callbacks.
func (d *Debounce) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending callback. Later Adds are ignored.
func (d *Debounce) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for name, timer := range d.pending {
		timer.Stop()
		delete(d.pending, name)
	}
}

func isOp(orig, compareTo fsnotify.Op) bool {
	return orig&compareTo == compareTo
}
