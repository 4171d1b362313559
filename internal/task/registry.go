package task

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
)

// Registry holds task definitions. It is populated once at startup and only
// read afterwards.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. Empty ids, missing actions and id collisions are
// rejected immediately; dependency references are checked by Validate once
// every task is known.
func (r *Registry) Register(t *Task) error {
	if t == nil {
		return ferrors.ConfigError("cannot register nil task").Build()
	}
	id := strings.TrimSpace(t.ID)
	if id == "" {
		return ferrors.ConfigError("task id must not be empty").Build()
	}
	if t.Action == nil {
		return ferrors.ConfigError("task has no action").WithContext("task", id).Build()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[id]; exists {
		return ferrors.WrapError(&DuplicateTaskError{ID: id}, ferrors.CategoryConfig, "task id collision").
			Fatal().
			WithContext("task", id).
			Build()
	}
	t.ID = id
	r.tasks[id] = t
	r.order = append(r.order, id)
	return nil
}

// Validate checks that every dependency resolves to a registered task and
// that no task depends on itself. It returns a ConfigError wrapping a
// ValidationErrors value listing every problem found.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems ValidationErrors
	for _, id := range r.order {
		t := r.tasks[id]
		for _, dep := range t.DependsOn {
			if _, ok := r.tasks[dep]; !ok {
				problems = append(problems, &UnknownDependencyError{Task: id, Dependency: dep})
			}
		}
	}
	if len(problems) > 0 {
		return ferrors.WrapError(problems, ferrors.CategoryConfig, "invalid task dependencies").
			Fatal().
			WithContext("count", len(problems)).
			Build()
	}

	r.logOverlaps()
	return nil
}

// logOverlaps reports tasks that declare the same input pattern under the
// same root. Fingerprints are kept per task, so overlaps are harmless for
// incremental state but usually point at a configuration mistake.
func (r *Registry) logOverlaps() {
	owners := make(map[string][]string)
	for _, id := range r.order {
		t := r.tasks[id]
		for _, p := range t.Inputs {
			key := t.Root + "\x00" + p
			owners[key] = append(owners[key], id)
		}
	}
	for key, ids := range owners {
		if len(ids) < 2 {
			continue
		}
		root, pattern, _ := strings.Cut(key, "\x00")
		slog.Warn("Tasks share an input pattern",
			logfields.Path(root),
			slog.String("pattern", pattern),
			slog.Any("tasks", ids))
	}
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Tasks returns every task in registration order.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tasks[id])
	}
	return out
}

// IDs returns every task id in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
