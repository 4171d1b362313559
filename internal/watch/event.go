package watch

import (
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Op is the kind of filesystem change.
type Op string

const (
	OpCreated  Op = "created"
	OpModified Op = "modified"
	OpDeleted  Op = "deleted"
)

// ChangeEvent is one observed filesystem change.
type ChangeEvent struct {
	Path string
	Op   Op
	At   time.Time
}

// Source produces change events. Events is closed when the source stops;
// a source that stops on its own reports why on Errors first.
type Source interface {
	Events() <-chan ChangeEvent
	Errors() <-chan error
	Close() error
}

// ignored reports whether path matches one of the ignore patterns, either by
// base name or relative to root.
func ignored(patterns []string, root, path string) bool {
	base := filepath.Base(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
