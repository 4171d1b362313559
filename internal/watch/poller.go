package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
)

type fileStat struct {
	modTime time.Time
	size    int64
}

// Poller is a Source that rescans the roots on a fixed interval and reports
// the difference. It serves when native notifications are unavailable, for
// example when the watch handle limit is exhausted.
type Poller struct {
	roots    []string
	ignore   []string
	interval time.Duration
	sched    gocron.Scheduler

	mu   sync.Mutex
	last map[string]fileStat

	events chan ChangeEvent
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

// NewPoller takes an initial snapshot of roots and starts scanning every interval.
func NewPoller(roots, ignore []string, interval time.Duration) (*Poller, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatcher, "create polling scheduler").Build()
	}
	p := &Poller{
		roots:    roots,
		ignore:   ignore,
		interval: interval,
		sched:    s,
		events:   make(chan ChangeEvent, 64),
		errs:     make(chan error, 8),
		done:     make(chan struct{}),
	}
	p.last, err = p.scan()
	if err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryWatcher, "initial scan").Build()
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.Poll),
		gocron.WithName("watch-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryWatcher, "schedule polling job").Build()
	}
	s.Start()
	slog.Info("Polling for changes", logfields.Count(len(roots)), slog.Duration("interval", interval))
	return p, nil
}

func (p *Poller) Events() <-chan ChangeEvent { return p.events }
func (p *Poller) Errors() <-chan error       { return p.errs }

// Close stops polling and closes the event channel.
func (p *Poller) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.sched.Shutdown()
		p.mu.Lock()
		close(p.events)
		p.mu.Unlock()
	})
	return err
}

// Poll rescans once and emits an event per difference. It is called by the
// scheduler and may be called directly.
func (p *Poller) Poll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}

	current, err := p.scan()
	if err != nil {
		select {
		case p.errs <- ferrors.WrapError(err, ferrors.CategoryWatcher, "poll scan failed").Build():
		default:
		}
		return
	}

	now := time.Now()
	var changes []ChangeEvent
	for path, st := range current {
		prev, ok := p.last[path]
		switch {
		case !ok:
			changes = append(changes, ChangeEvent{Path: path, Op: OpCreated, At: now})
		case !prev.modTime.Equal(st.modTime) || prev.size != st.size:
			changes = append(changes, ChangeEvent{Path: path, Op: OpModified, At: now})
		}
	}
	for path := range p.last {
		if _, ok := current[path]; !ok {
			changes = append(changes, ChangeEvent{Path: path, Op: OpDeleted, At: now})
		}
	}
	p.last = current

	for _, ev := range changes {
		select {
		case p.events <- ev:
		case <-p.done:
			return
		}
	}
}

func (p *Poller) scan() (map[string]fileStat, error) {
	out := make(map[string]fileStat)
	for _, root := range p.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if path != root && ignored(p.ignore, root, path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			out[path] = fileStat{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return out, nil
}
