package events

import "time"

// RunEvent is implemented by every run lifecycle event.
type RunEvent interface {
	RunIdentifier() string
}

// RunStarted is published before the first level of a run executes.
type RunStarted struct {
	RunID     string
	Mode      string
	Tasks     []string
	Reason    string
	StartedAt time.Time
}

// TaskFinished is published once per task in a run, including skipped ones.
type TaskFinished struct {
	RunID      string
	Task       string
	Kind       string
	Level      int
	Status     string
	Message    string
	Duration   time.Duration
	Bytes      int64
	FinishedAt time.Time
}

// RunFinished is published after the last level of a run.
type RunFinished struct {
	RunID      string
	Mode       string
	Status     string
	Counts     map[string]int
	Duration   time.Duration
	FinishedAt time.Time
}

// ChangesDetected is published by the watcher when a debounced batch of
// filesystem changes maps to at least one task.
type ChangesDetected struct {
	Paths      []string
	Tasks      []string
	DetectedAt time.Time
}

func (e RunStarted) RunIdentifier() string   { return e.RunID }
func (e TaskFinished) RunIdentifier() string { return e.RunID }
func (e RunFinished) RunIdentifier() string  { return e.RunID }
