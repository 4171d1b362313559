package watch

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// RunFunc executes one request.
type RunFunc func(ctx context.Context, req scheduler.Request)

// Dispatcher runs requests one at a time. A request submitted while another
// is running is queued; further submissions merge into the queued one, so at
// most one request waits and none is dropped.
type Dispatcher struct {
	run RunFunc

	mu      sync.Mutex
	queued  *scheduler.Request
	running bool
	wake    chan struct{}
	idle    *sync.Cond
	runs    int
}

// NewDispatcher creates a dispatcher that hands requests to run.
func NewDispatcher(run RunFunc) *Dispatcher {
	d := &Dispatcher{run: run, wake: make(chan struct{}, 1)}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Submit queues req, merging it with any request already waiting. It never blocks.
func (d *Dispatcher) Submit(req scheduler.Request) {
	d.mu.Lock()
	if d.queued == nil {
		d.queued = &req
	} else {
		merged := Merge(*d.queued, req)
		d.queued = &merged
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run processes requests until ctx is canceled. The in-flight request, if
// any, completes before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}

		for {
			d.mu.Lock()
			req := d.queued
			d.queued = nil
			if req == nil {
				d.mu.Unlock()
				break
			}
			d.running = true
			d.mu.Unlock()

			d.run(ctx, *req)

			d.mu.Lock()
			d.running = false
			d.runs++
			d.idle.Broadcast()
			d.mu.Unlock()

			if ctx.Err() != nil {
				return
			}
		}
	}
}

// Busy reports whether a request is running or queued.
func (d *Dispatcher) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running || d.queued != nil
}

// Runs returns the number of completed requests.
func (d *Dispatcher) Runs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs
}

// WaitRuns blocks until at least n requests have completed.
func (d *Dispatcher) WaitRuns(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.runs < n {
		d.idle.Wait()
	}
}

// Merge combines two requests into one covering both. A full request
// absorbs a partial one.
func Merge(a, b scheduler.Request) scheduler.Request {
	out := scheduler.Request{Mode: scheduler.ModePartial, Reason: b.Reason}
	if a.Mode == scheduler.ModeFull || b.Mode == scheduler.ModeFull {
		out.Mode = scheduler.ModeFull
	}
	if out.Mode == scheduler.ModePartial {
		out.Tasks = union(a.Tasks, b.Tasks)
	}
	out.Paths = union(a.Paths, b.Paths)
	if out.Reason == "" {
		out.Reason = a.Reason
	}
	return out
}

func union(a, b []string) []string {
	out := slices.Concat(a, b)
	slices.Sort(out)
	return slices.Compact(out)
}
