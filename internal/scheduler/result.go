package scheduler

import (
	"time"

	"git.home.luguber.info/inful/assetflow/internal/task"
)

// Mode selects which part of the graph a request covers.
type Mode string

const (
	// ModeFull runs the entire graph.
	ModeFull Mode = "full"
	// ModePartial runs the requested tasks and their transitive successors.
	ModePartial Mode = "partial"
)

// Request names the tasks to execute. It is consumed by exactly one Run.
type Request struct {
	Mode  Mode
	Tasks []string
	// Paths and Reason describe what triggered the request. They are carried
	// through to the result for reload notification and logging.
	Paths  []string
	Reason string
}

// FullRequest returns a request for the whole graph.
func FullRequest(reason string) Request {
	return Request{Mode: ModeFull, Reason: reason}
}

// Status is the outcome of one task in a run.
type Status string

const (
	StatusSucceeded               Status = "succeeded"
	StatusFailed                  Status = "failed"
	StatusSkippedUnchanged        Status = "skipped-unchanged"
	StatusSkippedDependencyFailed Status = "skipped-dependency-failed"
)

// TaskResult is the outcome of one task.
type TaskResult struct {
	ID     string
	Kind   task.Kind
	Level  int
	Status Status
	// Reason is why the incremental filter let the task run, or "forced"
	// when a predecessor ran in the same run.
	Reason   string
	Err      error
	Message  string
	FailedAt time.Time
	Duration time.Duration
	Outputs  []string
	Bytes    int64
}

// RunResult aggregates the task outcomes of one run.
type RunResult struct {
	ID         string
	Request    Request
	StartedAt  time.Time
	FinishedAt time.Time
	// Canceled is set when the context was canceled before every level ran.
	Canceled bool
	// Tasks are ordered by level, then graph order.
	Tasks []TaskResult
}

// Mode returns the request mode.
func (r *RunResult) Mode() Mode {
	return r.Request.Mode
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Get returns the outcome of one task.
func (r *RunResult) Get(id string) (TaskResult, bool) {
	for _, tr := range r.Tasks {
		if tr.ID == id {
			return tr, true
		}
	}
	return TaskResult{}, false
}

// Status returns the status of one task, or "" when it was not part of the run.
func (r *RunResult) Status(id string) Status {
	tr, _ := r.Get(id)
	return tr.Status
}

// Failed returns the tasks whose action failed.
func (r *RunResult) Failed() []TaskResult {
	return r.filter(func(tr TaskResult) bool { return tr.Status == StatusFailed })
}

// Executed returns the tasks whose action was invoked.
func (r *RunResult) Executed() []TaskResult {
	return r.filter(func(tr TaskResult) bool {
		return tr.Status == StatusSucceeded || tr.Status == StatusFailed
	})
}

// AllUnchanged reports whether no task was executed and none was skipped
// because of a failure.
func (r *RunResult) AllUnchanged() bool {
	for _, tr := range r.Tasks {
		if tr.Status != StatusSkippedUnchanged {
			return false
		}
	}
	return true
}

// OK reports whether the run completed without failures.
func (r *RunResult) OK() bool {
	return !r.Canceled && len(r.Failed()) == 0
}

// Counts returns the number of tasks per status.
func (r *RunResult) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, tr := range r.Tasks {
		counts[tr.Status]++
	}
	return counts
}

// Bytes returns the total output size reported by executed tasks.
func (r *RunResult) Bytes() int64 {
	var n int64
	for _, tr := range r.Tasks {
		n += tr.Bytes
	}
	return n
}

func (r *RunResult) filter(keep func(TaskResult) bool) []TaskResult {
	var out []TaskResult
	for _, tr := range r.Tasks {
		if keep(tr) {
			out = append(out, tr)
		}
	}
	return out
}
