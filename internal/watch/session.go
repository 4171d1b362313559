package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetflow/internal/events"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// Runner executes a run request.
type Runner interface {
	Run(ctx context.Context, req scheduler.Request) (*scheduler.RunResult, error)
}

// ResultHandler is called once per completed run, in run order.
type ResultHandler func(ctx context.Context, result *scheduler.RunResult)

// SourceFactory creates a replacement source when the current one fails.
type SourceFactory func() (Source, error)

// Session ties a change source to the scheduler. It runs until its context
// is canceled or the source fails with no fallback available.
type Session struct {
	runner   Runner
	mapping  *Mapping
	source   Source
	fallback SourceFactory
	debounce time.Duration
	initial  bool
	onResult []ResultHandler
	bus      *events.Bus
	recorder metrics.Recorder
	logger   *slog.Logger

	dispatcher *Dispatcher
	debouncer  *Debouncer
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce sets the quiet window for coalescing changes.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithFallback sets the source used when the primary source fails.
func WithFallback(f SourceFactory) SessionOption {
	return func(s *Session) { s.fallback = f }
}

// WithInitialBuild submits a full request when the session starts.
func WithInitialBuild(enabled bool) SessionOption {
	return func(s *Session) { s.initial = enabled }
}

// OnResult registers a handler for completed runs.
func OnResult(h ResultHandler) SessionOption {
	return func(s *Session) { s.onResult = append(s.onResult, h) }
}

// WithBus publishes ChangesDetected events.
func WithBus(bus *events.Bus) SessionOption {
	return func(s *Session) { s.bus = bus }
}

// WithSessionRecorder sets the metrics recorder.
func WithSessionRecorder(r metrics.Recorder) SessionOption {
	return func(s *Session) { s.recorder = r }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session reading changes from source.
func NewSession(runner Runner, mapping *Mapping, source Source, opts ...SessionOption) *Session {
	s := &Session{
		runner:   runner,
		mapping:  mapping,
		source:   source,
		debounce: 300 * time.Millisecond,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is canceled, then waits for the in-flight run.
// It returns a watcher error only when the source fails and cannot be replaced.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.dispatcher = NewDispatcher(s.execute)
	s.debouncer = NewDebouncer(s.debounce, 0, func(req scheduler.Request) {
		s.publish(runCtx, events.ChangesDetected{Paths: req.Paths, Tasks: req.Tasks, DetectedAt: time.Now()})
		s.dispatcher.Submit(req)
	})
	defer s.debouncer.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.dispatcher.Run(runCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	if s.initial {
		s.dispatcher.Submit(scheduler.FullRequest("initial build"))
	}

	s.logger.Info("Watching for changes", slog.Any("roots", s.mapping.Roots()))
	for {
		err := s.consume(runCtx)
		if err == nil || ctx.Err() != nil {
			_ = s.source.Close()
			return nil
		}
		_ = s.source.Close()

		if s.fallback == nil {
			s.logger.Error("Watcher stopped", logfields.Error(err))
			return err
		}
		s.logger.Warn("Watcher failed, degrading to polling", logfields.Error(err))
		next, ferr := s.fallback()
		if ferr != nil {
			return ferrors.WrapError(ferr, ferrors.CategoryWatcher, "fallback watcher failed").
				WithContext("cause", err.Error()).
				Build()
		}
		s.source = next
		s.fallback = nil
		// Changes may have been missed while switching sources.
		s.dispatcher.Submit(scheduler.FullRequest("watcher fallback"))
	}
}

// consume reads from the current source until ctx is done (nil) or the
// source fails (error).
func (s *Session) consume(ctx context.Context) error {
	var lastErr error
	evCh := s.source.Events()
	errCh := s.source.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-evCh:
			if !ok {
				// Prefer the reason the source reported over a generic one.
				select {
				case err, ok := <-errCh:
					if ok && err != nil {
						lastErr = err
					}
				default:
				}
				if lastErr == nil {
					lastErr = ferrors.WatcherError("change source stopped").Build()
				}
				return lastErr
			}
			s.handle(ev)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			lastErr = err
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				s.logger.Warn("Change events were dropped, scheduling full run", logfields.Error(err))
				s.dispatcher.Submit(scheduler.FullRequest("event overflow"))
				continue
			}
			s.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Session) handle(ev ChangeEvent) {
	ids := s.mapping.MatchEvent(ev)
	if len(ids) == 0 {
		return
	}
	s.recorder.IncWatchEvents(1)
	s.logger.Debug("Change mapped to tasks", logfields.Path(ev.Path), logfields.Op(string(ev.Op)), slog.Any("tasks", ids))
	s.debouncer.Add(ev.Path, ids)
}

func (s *Session) execute(ctx context.Context, req scheduler.Request) {
	result, err := s.runner.Run(ctx, req)
	if err != nil {
		s.logger.Error("Run failed", logfields.RunMode(string(req.Mode)), logfields.Error(err))
	}
	if result == nil {
		return
	}
	for _, h := range s.onResult {
		h(ctx, result)
	}
}

func (s *Session) publish(ctx context.Context, evt any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Debug("Failed to publish change event", logfields.Error(err))
	}
}
