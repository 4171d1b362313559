// Package scheduler executes runs over the task graph level by level.
//
// One control goroutine walks the levels in order. Eligible tasks of a level
// run on a bounded worker pool and the loop waits for all of them before it
// commits fingerprints and advances. A task whose predecessor failed is
// skipped; unrelated branches keep running.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/events"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/graph"
	"git.home.luguber.info/inful/assetflow/internal/incremental"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// reasonForced marks tasks that ran because a predecessor ran in the same run.
const reasonForced = "forced"

// Scheduler runs requests against a fixed registry and graph.
type Scheduler struct {
	reg      *task.Registry
	graph    *graph.Graph
	filter   *incremental.Filter
	cfg      *config.Config
	workers  int
	policy   Policy
	guard    Guard
	logger   *slog.Logger
	recorder metrics.Recorder
	bus      *events.Bus
	stateOut string

	// runMu serializes runs so only one of them mutates build state.
	runMu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig exposes cfg to every task context.
func WithConfig(cfg *config.Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// WithConcurrency bounds the number of tasks running at once within a level.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPolicy selects how failures propagate.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithLogger sets the base logger task loggers derive from.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithEventBus publishes run lifecycle events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithStateFile persists build state to path after every run.
func WithStateFile(path string) Option {
	return func(s *Scheduler) { s.stateOut = path }
}

// New creates a scheduler. The graph must have been resolved from the tasks
// in reg.
func New(reg *task.Registry, g *graph.Graph, filter *incremental.Filter, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:      reg,
		graph:    g,
		filter:   filter,
		cfg:      &config.Config{},
		workers:  runtime.GOMAXPROCS(0),
		policy:   PolicyOneShot,
		guard:    NewGuard(),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		s.filter = incremental.NewFilter(incremental.NewState(), incremental.Options{})
	}
	if s.cfg.Environment != "" {
		s.filter.SetEnvironment(s.cfg.Environment)
	}
	return s
}

// Policy returns the failure propagation policy.
func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Graph returns the graph the scheduler runs over.
func (s *Scheduler) Graph() *graph.Graph {
	return s.graph
}

// Run executes req and returns its result. The error is the policy's verdict
// on the result, or a validation error for a request naming unknown tasks.
// The result is non-nil whenever tasks were considered.
func (s *Scheduler) Run(ctx context.Context, req Request) (*RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ids, err := s.selectTasks(req)
	if err != nil {
		return nil, err
	}

	result := &RunResult{ID: uuid.NewString(), Request: req, StartedAt: time.Now()}
	log := s.logger.With(logfields.RunID(result.ID), logfields.RunMode(string(req.Mode)))
	log.Info("Run started", logfields.Count(len(ids)), slog.String("reason", req.Reason))
	s.publish(ctx, events.RunStarted{
		RunID:     result.ID,
		Mode:      string(req.Mode),
		Tasks:     ids,
		Reason:    req.Reason,
		StartedAt: result.StartedAt,
	})

	statuses := make(map[string]Status, len(ids))
	for _, level := range s.graph.Restrict(ids) {
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		outcomes := s.runLevel(ctx, log, result.ID, level, statuses)
		s.commit(outcomes)
		for _, tr := range outcomes {
			statuses[tr.ID] = tr.Status
			result.Tasks = append(result.Tasks, tr.TaskResult)
			s.recordTask(ctx, log, result.ID, tr.TaskResult)
		}
	}
	result.FinishedAt = time.Now()

	if s.stateOut != "" {
		if err := s.filter.State().Save(s.stateOut); err != nil {
			log.Warn("Failed to persist build state", logfields.Path(s.stateOut), logfields.Error(err))
		}
	}
	s.finish(ctx, log, result)
	return result, s.policy.Propagate(result, log)
}

// selectTasks returns the ids a request covers.
func (s *Scheduler) selectTasks(req Request) ([]string, error) {
	switch req.Mode {
	case ModeFull, "":
		return s.graph.IDs(), nil
	case ModePartial:
		for _, id := range req.Tasks {
			if !s.graph.Has(id) {
				return nil, ferrors.ValidationError("unknown task in run request").
					WithContext("task", id).
					Build()
			}
		}
		return s.graph.WithSuccessors(req.Tasks), nil
	default:
		return nil, ferrors.ValidationError(fmt.Sprintf("unknown run mode %q", req.Mode)).Build()
	}
}

// pending is a task of the current level that passed every check.
type pending struct {
	index    int
	task     *task.Task
	decision incremental.Decision
}

// outcome pairs a task result with the decision to commit on success.
type outcome struct {
	TaskResult
	decision incremental.Decision
}

// runLevel decides eligibility for every task of a level, then runs the
// eligible ones concurrently and waits for all of them. statuses is read only.
func (s *Scheduler) runLevel(ctx context.Context, log *slog.Logger, runID string, level []string, statuses map[string]Status) []outcome {
	out := make([]outcome, len(level))
	var eligible []pending

	for i, id := range level {
		t, _ := s.reg.Get(id)
		out[i].ID = id
		out[i].Kind = t.Kind
		out[i].Level = s.graph.Level(id)

		failedDep, forced := s.predecessorState(id, statuses)
		if failedDep != "" {
			out[i].Status = StatusSkippedDependencyFailed
			out[i].Message = fmt.Sprintf("dependency %q failed", failedDep)
			continue
		}

		decision, err := s.filter.ShouldRun(t)
		if err != nil {
			out[i].Status = StatusFailed
			out[i].Err = ferrors.WrapError(err, ferrors.CategoryTask, "resolve task inputs").
				WithContext("task", id).
				Build()
			out[i].Message = out[i].Err.Error()
			out[i].FailedAt = time.Now()
			continue
		}
		if !decision.Run && !forced {
			out[i].Status = StatusSkippedUnchanged
			out[i].Reason = string(decision.Reason)
			continue
		}
		out[i].Reason = string(decision.Reason)
		if !decision.Run {
			out[i].Reason = reasonForced
		}
		eligible = append(eligible, pending{index: i, task: t, decision: decision})
	}

	if len(eligible) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, p := range eligible {
		g.Go(func() error {
			out[p.index] = s.execute(ctx, log, runID, p)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// predecessorState returns the first predecessor that failed or was skipped
// because of a failure, and whether any predecessor executed successfully.
// Predecessors outside the run are assumed up to date.
func (s *Scheduler) predecessorState(id string, statuses map[string]Status) (failed string, forced bool) {
	for _, dep := range s.graph.Predecessors(id) {
		switch statuses[dep] {
		case StatusFailed, StatusSkippedDependencyFailed:
			return dep, false
		case StatusSucceeded:
			forced = true
		}
	}
	return "", forced
}

func (s *Scheduler) execute(ctx context.Context, log *slog.Logger, runID string, p pending) outcome {
	t := p.task
	taskLog := log.With(logfields.Task(t.ID), logfields.TaskKind(string(t.Kind)))
	tc := &task.Context{
		Task:        t,
		RunID:       runID,
		Inputs:      slices.Clone(p.decision.Inputs),
		Environment: s.cfg.Environment,
		Logger:      taskLog,
		Config:      s.cfg,
	}

	taskLog.Debug("Task started", slog.String("reason", string(p.decision.Reason)), logfields.Count(len(tc.Inputs)))
	start := time.Now()
	res, err := s.guard.Execute(ctx, tc)
	elapsed := time.Since(start)

	o := outcome{
		TaskResult: TaskResult{
			ID:       t.ID,
			Kind:     t.Kind,
			Level:    s.graph.Level(t.ID),
			Reason:   string(p.decision.Reason),
			Duration: elapsed,
		},
		decision: p.decision,
	}
	if !p.decision.Run {
		o.Reason = reasonForced
	}
	if err != nil {
		o.Status = StatusFailed
		o.Err = err
		o.Message = err.Error()
		o.FailedAt = time.Now()
		return o
	}
	o.Status = StatusSucceeded
	o.Outputs = res.Outputs
	o.Bytes = res.Bytes
	return o
}

// commit runs after the level barrier on the control goroutine. Succeeded
// tasks get their pre-run decision as the new baseline; failed tasks lose
// theirs so the next run retries them.
func (s *Scheduler) commit(outcomes []outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.filter.Record(o.ID, o.decision)
		case StatusFailed:
			s.filter.State().Forget(o.ID)
		}
	}
}

func (s *Scheduler) recordTask(ctx context.Context, log *slog.Logger, runID string, tr TaskResult) {
	attrs := []any{
		logfields.Task(tr.ID),
		logfields.Level(tr.Level),
		logfields.Status(string(tr.Status)),
	}
	switch tr.Status {
	case StatusSucceeded:
		s.recorder.ObserveTaskDuration(tr.ID, tr.Duration)
		s.recorder.IncTaskResult(tr.ID, metrics.TaskSucceeded)
		log.Info("Task completed", append(attrs,
			logfields.DurationMS(float64(tr.Duration.Milliseconds())),
			logfields.Bytes(tr.Bytes),
			logfields.Count(len(tr.Outputs)))...)
	case StatusFailed:
		s.recorder.ObserveTaskDuration(tr.ID, tr.Duration)
		s.recorder.IncTaskResult(tr.ID, metrics.TaskFailed)
		log.Warn("Task failed", append(attrs, logfields.Error(tr.Err))...)
	case StatusSkippedUnchanged:
		s.recorder.IncTaskResult(tr.ID, metrics.TaskSkippedUnchanged)
		log.Debug("Task unchanged", attrs...)
	case StatusSkippedDependencyFailed:
		s.recorder.IncTaskResult(tr.ID, metrics.TaskSkippedDepFailed)
		log.Warn("Task skipped", append(attrs, slog.String("reason", tr.Message))...)
	}

	s.publish(ctx, events.TaskFinished{
		RunID:      runID,
		Task:       tr.ID,
		Kind:       string(tr.Kind),
		Level:      tr.Level,
		Status:     string(tr.Status),
		Message:    tr.Message,
		Duration:   tr.Duration,
		Bytes:      tr.Bytes,
		FinishedAt: time.Now(),
	})
}

func (s *Scheduler) finish(ctx context.Context, log *slog.Logger, result *RunResult) {
	verdict := metrics.RunSucceeded
	switch {
	case result.Canceled:
		verdict = metrics.RunCanceled
	case len(result.Failed()) > 0:
		verdict = metrics.RunFailed
	case result.AllUnchanged():
		verdict = metrics.RunUnchanged
	}
	mode := string(result.Mode())
	s.recorder.ObserveRunDuration(mode, result.Duration())
	s.recorder.IncRunOutcome(mode, verdict)

	counts := result.Counts()
	plain := make(map[string]int, len(counts))
	for k, v := range counts {
		plain[string(k)] = v
	}
	log.Info("Run finished",
		logfields.Status(string(verdict)),
		logfields.DurationMS(float64(result.Duration().Milliseconds())),
		logfields.Bytes(result.Bytes()),
		slog.Any("counts", plain))

	// The run is over; deliver the final event even if ctx was canceled.
	s.publish(context.WithoutCancel(ctx), events.RunFinished{
		RunID:      result.ID,
		Mode:       mode,
		Status:     string(verdict),
		Counts:     plain,
		Duration:   result.Duration(),
		FinishedAt: result.FinishedAt,
	})
}

func (s *Scheduler) publish(ctx context.Context, evt any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Debug("Failed to publish run event", logfields.Error(err))
	}
}
