package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
)

// Watcher is a Source backed by native filesystem notifications. fsnotify
// does not recurse, so every directory under the roots is added and new
// directories are added as they appear.
type Watcher struct {
	fsw    *fsnotify.Watcher
	roots  []string
	ignore []string

	events chan ChangeEvent
	errs   chan error
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewWatcher starts watching roots. Missing roots are skipped; they are not
// created on demand.
func NewWatcher(roots, ignore []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatcher, "create filesystem watcher").Build()
	}
	w := &Watcher{
		fsw:    fsw,
		roots:  roots,
		ignore: ignore,
		events: make(chan ChangeEvent, 64),
		errs:   make(chan error, 8),
		done:   make(chan struct{}),
	}
	for _, root := range roots {
		if err := w.addDirsRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) Events() <-chan ChangeEvent { return w.events }
func (w *Watcher) Errors() <-chan error       { return w.errs }

// Close stops the watcher and closes the event channel.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				w.report(ferrors.WatcherError("filesystem event stream closed").Build())
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				w.report(ferrors.WatcherError("filesystem error stream closed").Build())
				return
			}
			w.report(ferrors.WrapError(err, ferrors.CategoryWatcher, "filesystem watcher error").Build())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.isIgnored(ev.Name) {
		return
	}

	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreated
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.addDirsRecursive(ev.Name); err != nil {
				w.report(err)
			}
			// A directory moved or extracted into a root arrives with its
			// files already in place; no per-file events follow.
			w.emitExisting(ev.Name)
			return
		}
	case ev.Has(fsnotify.Write):
		op = OpModified
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDeleted
	default:
		return
	}

	w.emit(ev.Name, op)
}

func (w *Watcher) emit(path string, op Op) {
	slog.Debug("File change detected", logfields.Path(path), logfields.Op(string(op)))
	select {
	case w.events <- ChangeEvent{Path: path, Op: op, At: time.Now()}:
	case <-w.done:
	}
}

// emitExisting reports every file under dir as created.
func (w *Watcher) emitExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && w.isIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			w.emit(path, OpCreated)
		}
		return nil
	})
}

func (w *Watcher) report(err error) {
	select {
	case w.errs <- err:
	default:
		slog.Warn("Dropped watcher error", logfields.Error(err))
	}
}

func (w *Watcher) isIgnored(path string) bool {
	for _, root := range w.roots {
		if within(path, root) {
			return ignored(w.ignore, root, path)
		}
	}
	return ignored(w.ignore, filepath.Dir(path), path)
}

func (w *Watcher) addDirsRecursive(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.isIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryWatcher, "add watch").
			WithContext("root", root).
			Build()
	}
	return nil
}
