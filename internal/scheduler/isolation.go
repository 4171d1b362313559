package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// Guard wraps every action invocation. Errors and panics are converted into
// task errors carrying the task id and the time of failure; nothing escapes
// to the level loop.
type Guard struct {
	now func() time.Time
}

// NewGuard returns a guard using the wall clock.
func NewGuard() Guard {
	return Guard{now: time.Now}
}

// Execute runs the action of tc.Task. The returned error, if any, is a
// classified task error.
func (g Guard) Execute(ctx context.Context, tc *task.Context) (res task.Result, err error) {
	id := tc.Task.ID
	defer func() {
		if r := recover(); r != nil {
			res = task.Result{}
			err = ferrors.TaskError(fmt.Sprintf("task panicked: %v", r)).
				WithContext("task", id).
				WithContext("at", g.clock()).
				WithContext("stack", string(debug.Stack())).
				Build()
		}
	}()

	res, err = tc.Task.Action.Execute(ctx, tc)
	if err == nil {
		return res, nil
	}
	if c, ok := ferrors.AsClassified(err); ok && c.Category() == ferrors.CategoryTask {
		return res, c.WithContext("task", id).WithContext("at", g.clock())
	}
	return res, ferrors.WrapError(err, ferrors.CategoryTask, "task failed").
		WithContext("task", id).
		WithContext("at", g.clock()).
		Build()
}

func (g Guard) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}

// Policy decides how task failures propagate out of a run. It is the only
// place that distinguishes one-shot builds from watch sessions.
type Policy int

const (
	// PolicyOneShot turns any task failure into a run error so the process
	// exits non-zero after every independent branch has completed.
	PolicyOneShot Policy = iota
	// PolicyWatch reports failures and keeps the session alive.
	PolicyWatch
)

func (p Policy) String() string {
	if p == PolicyWatch {
		return "watch"
	}
	return "one-shot"
}

// Propagate returns the error a run should surface to its caller. In watch
// mode failures are only reported on log, which carries the run attributes.
func (p Policy) Propagate(result *RunResult, log *slog.Logger) error {
	if result == nil {
		return nil
	}
	failed := result.Failed()

	if p == PolicyWatch {
		if log == nil {
			log = slog.Default().With(logfields.RunID(result.ID))
		}
		for _, f := range failed {
			log.Error("Task failed",
				logfields.Task(f.ID),
				slog.Time("at", f.FailedAt),
				logfields.Error(f.Err))
		}
		return nil
	}

	if result.Canceled {
		return ferrors.RuntimeError("build interrupted").
			WithContext("run_id", result.ID).
			Build()
	}
	if len(failed) == 0 {
		return nil
	}
	ids := make([]string, len(failed))
	for i, f := range failed {
		ids[i] = f.ID
	}
	return ferrors.TaskError(fmt.Sprintf("%d task(s) failed: %s", len(failed), strings.Join(ids, ", "))).
		WithContext("run_id", result.ID).
		WithContext("failed", ids).
		Build()
}
