package history

import (
	"context"
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/assetflow/internal/events"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

// StatusRunning marks a run with no finish event, either in flight or
// interrupted before it completed.
const StatusRunning = "running"

// TaskSummary is the recorded outcome of one task.
type TaskSummary struct {
	Task     string        `json:"task"`
	Kind     string        `json:"kind"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
	Bytes    int64         `json:"bytes"`
}

// RunSummary is the read model of one run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Mode       string         `json:"mode"`
	Reason     string         `json:"reason,omitempty"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Tasks      []TaskSummary  `json:"tasks,omitempty"`
}

// Failed returns the tasks that failed in the run.
func (r RunSummary) Failed() []TaskSummary {
	var out []TaskSummary
	for _, t := range r.Tasks {
		if t.Status == "failed" {
			out = append(out, t)
		}
	}
	return out
}

// Run rebuilds the summary of one run from its events.
func (s *Store) Run(ctx context.Context, runID string) (RunSummary, error) {
	records, err := s.Events(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	if len(records) == 0 {
		return RunSummary{}, ferrors.HistoryError("run not found").
			WithContext("run_id", runID).
			Build()
	}
	return project(runID, records)
}

// Recent returns up to limit run summaries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	ids, err := s.RecentRunIDs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		sum, err := s.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func project(runID string, records []Record) (RunSummary, error) {
	sum := RunSummary{RunID: runID, Status: StatusRunning}
	for _, r := range records {
		if err := apply(&sum, r); err != nil {
			return RunSummary{}, err
		}
	}
	return sum, nil
}

func apply(sum *RunSummary, r Record) error {
	switch r.Type {
	case TypeRunStarted:
		var e events.RunStarted
		if err := unmarshal(r, &e); err != nil {
			return err
		}
		sum.Mode = e.Mode
		sum.Reason = e.Reason
		sum.StartedAt = e.StartedAt
	case TypeTaskFinished:
		var e events.TaskFinished
		if err := unmarshal(r, &e); err != nil {
			return err
		}
		sum.Tasks = append(sum.Tasks, TaskSummary{
			Task:     e.Task,
			Kind:     e.Kind,
			Status:   e.Status,
			Message:  e.Message,
			Duration: e.Duration,
			Bytes:    e.Bytes,
		})
	case TypeRunFinished:
		var e events.RunFinished
		if err := unmarshal(r, &e); err != nil {
			return err
		}
		finished := e.FinishedAt
		sum.Status = e.Status
		sum.FinishedAt = &finished
		sum.Duration = e.Duration
		sum.Counts = e.Counts
	}
	return nil
}

func unmarshal(r Record, v any) error {
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "failed to unmarshal event payload").
			WithContext("event_id", r.ID).
			WithContext("event_type", r.Type).
			Build()
	}
	return nil
}
