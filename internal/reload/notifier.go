package reload

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/assetflow/internal/logfields"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// Sink delivers reload signals to one kind of observer.
type Sink interface {
	Name() string
	Send(ctx context.Context, sig Signal) error
}

// Notifier turns completed runs into reload signals and fans them out.
type Notifier struct {
	sinks    []Sink
	root     string
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithOutputRoot reports changed paths relative to root, in slash form, the
// way a browser sees them under the dev server.
func WithOutputRoot(root string) NotifierOption {
	return func(n *Notifier) { n.root = root }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) NotifierOption {
	return func(n *Notifier) {
		if r != nil {
			n.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNotifier returns a notifier delivering to the given sinks. Nil sinks are ignored.
func NewNotifier(sinks []Sink, opts ...NotifierOption) *Notifier {
	n := &Notifier{recorder: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, s := range sinks {
		if s != nil {
			n.sinks = append(n.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify emits one signal for a completed run. It reports false, and sends
// nothing, when the run executed no task. Sink failures are logged and do not
// stop delivery to the remaining sinks.
func (n *Notifier) Notify(ctx context.Context, result *scheduler.RunResult) (Signal, bool) {
	scope, ok := DecideScope(result)
	if !ok {
		n.logger.Debug("Reload skipped; nothing was rebuilt")
		return Signal{}, false
	}
	sig := Signal{Scope: scope, ChangedPaths: n.changedPaths(result)}

	for _, s := range n.sinks {
		if err := s.Send(ctx, sig); err != nil {
			n.logger.Warn("Reload delivery failed",
				slog.String("sink", s.Name()),
				logfields.Scope(string(scope)),
				logfields.Error(err))
		}
	}
	n.recorder.IncReloadBroadcast(string(scope))
	n.logger.Info("Reload signaled",
		logfields.RunID(result.ID),
		logfields.Scope(string(scope)),
		logfields.Count(len(sig.ChangedPaths)))
	return sig, true
}

// changedPaths lists the outputs of succeeded tasks, or the triggering source
// paths when no task reported outputs.
func (n *Notifier) changedPaths(result *scheduler.RunResult) []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(p string) {
		p = n.display(p)
		if _, dup := seen[p]; dup || p == "" {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, tr := range result.Executed() {
		if tr.Status != scheduler.StatusSucceeded {
			continue
		}
		for _, p := range tr.Outputs {
			add(p)
		}
	}
	if len(out) == 0 {
		for _, p := range result.Request.Paths {
			add(p)
		}
	}
	sort.Strings(out)
	return out
}

func (n *Notifier) display(p string) string {
	if n.root == "" {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(n.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}
	return "/" + filepath.ToSlash(rel)
}
