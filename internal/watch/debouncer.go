package watch

import (
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// Debouncer coalesces changes that arrive within a quiet window into a single
// partial request. MaxDelay bounds how long a steady stream of changes can
// postpone the request.
type Debouncer struct {
	window   time.Duration
	maxDelay time.Duration
	emit     func(scheduler.Request)

	mu      sync.Mutex
	timer   *time.Timer
	first   time.Time
	tasks   map[string]struct{}
	paths   map[string]struct{}
	events  int
	stopped bool
}

// NewDebouncer creates a debouncer that hands each coalesced request to emit.
// A maxDelay of zero defaults to ten quiet windows.
func NewDebouncer(window, maxDelay time.Duration, emit func(scheduler.Request)) *Debouncer {
	if maxDelay <= 0 {
		maxDelay = 10 * window
	}
	return &Debouncer{
		window:   window,
		maxDelay: maxDelay,
		emit:     emit,
		tasks:    make(map[string]struct{}),
		paths:    make(map[string]struct{}),
	}
}

// Add records a change affecting tasks. Changes affecting no task are dropped.
func (d *Debouncer) Add(path string, tasks []string) {
	if len(tasks) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	now := time.Now()
	if d.events == 0 {
		d.first = now
	}
	d.events++
	d.paths[path] = struct{}{}
	for _, id := range tasks {
		d.tasks[id] = struct{}{}
	}

	wait := d.window
	if deadline := d.first.Add(d.maxDelay); now.Add(wait).After(deadline) {
		wait = max(deadline.Sub(now), 0)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.Flush)
}

// Flush emits the pending request immediately, if there is one.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.events == 0 || d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	req := scheduler.Request{
		Mode:   scheduler.ModePartial,
		Tasks:  sortedKeys(d.tasks),
		Paths:  sortedKeys(d.paths),
		Reason: "change",
	}
	clear(d.tasks)
	clear(d.paths)
	d.events = 0
	d.mu.Unlock()

	d.emit(req)
}

// Pending reports whether changes are waiting for the quiet window to elapse.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events > 0
}

// Stop discards pending changes and disables the debouncer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
