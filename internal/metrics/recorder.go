package metrics

import "time"

// TaskResultLabel is the per-task outcome label.
type TaskResultLabel string

const (
	TaskSucceeded        TaskResultLabel = "succeeded"
	TaskFailed           TaskResultLabel = "failed"
	TaskSkippedUnchanged TaskResultLabel = "skipped_unchanged"
	TaskSkippedDepFailed TaskResultLabel = "skipped_dependency_failed"
)

// RunOutcomeLabel is the overall outcome of one scheduler run.
type RunOutcomeLabel string

const (
	RunSucceeded RunOutcomeLabel = "succeeded"
	RunFailed    RunOutcomeLabel = "failed"
	RunUnchanged RunOutcomeLabel = "unchanged"
	RunCanceled  RunOutcomeLabel = "canceled"
)

// Recorder defines the observability hooks. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveTaskDuration(task string, d time.Duration)
	IncTaskResult(task string, result TaskResultLabel)
	ObserveRunDuration(mode string, d time.Duration)
	IncRunOutcome(mode string, outcome RunOutcomeLabel)
	IncReloadBroadcast(scope string)
	IncWatchEvents(n int)
	SetReloadClients(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveTaskDuration(string, time.Duration)  {}
func (NoopRecorder) IncTaskResult(string, TaskResultLabel)      {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)   {}
func (NoopRecorder) IncRunOutcome(string, RunOutcomeLabel)      {}
func (NoopRecorder) IncReloadBroadcast(string)                  {}
func (NoopRecorder) IncWatchEvents(int)                         {}
func (NoopRecorder) SetReloadClients(int)                       {}
