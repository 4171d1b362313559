package watch

import (
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/assetflow/internal/fileset"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

type binding struct {
	taskID  string
	root    string
	include []string
	exclude []string
}

// Mapping resolves changed paths to the tasks whose declared inputs match them.
type Mapping struct {
	bindings []binding
}

// NewMapping builds the mapping from every registered task with inputs.
func NewMapping(reg *task.Registry) *Mapping {
	m := &Mapping{}
	for _, t := range reg.Tasks() {
		if len(t.Inputs) == 0 {
			continue
		}
		m.bindings = append(m.bindings, binding{
			taskID:  t.ID,
			root:    t.Root,
			include: t.Inputs,
			exclude: t.Exclude,
		})
	}
	return m
}

// Match returns the ids of the tasks whose inputs match path, in
// registration order.
func (m *Mapping) Match(path string) []string {
	var ids []string
	for _, b := range m.bindings {
		if fileset.Matches(b.root, b.include, b.exclude, path) {
			ids = append(ids, b.taskID)
		}
	}
	return ids
}

// MatchEvent is Match with one addition: a deleted path that matches no glob
// may have been a directory, so every task whose root contains it, or lies
// beneath it, is affected.
func (m *Mapping) MatchEvent(ev ChangeEvent) []string {
	ids := m.Match(ev.Path)
	if len(ids) > 0 || ev.Op != OpDeleted {
		return ids
	}
	for _, b := range m.bindings {
		if within(ev.Path, b.root) || within(b.root, ev.Path) {
			ids = append(ids, b.taskID)
		}
	}
	return ids
}

// Roots returns the distinct directories that need watching, without
// nested duplicates.
func (m *Mapping) Roots() []string {
	var roots []string
	for _, b := range m.bindings {
		abs, err := filepath.Abs(b.root)
		if err != nil {
			abs = filepath.Clean(b.root)
		}
		if !slices.Contains(roots, abs) {
			roots = append(roots, abs)
		}
	}
	slices.Sort(roots)

	var out []string
	for _, r := range roots {
		if len(out) > 0 && within(r, out[len(out)-1]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Patterns returns every watched glob, joined with its root, and the tasks
// bound to it.
func (m *Mapping) Patterns() map[string][]string {
	out := make(map[string][]string)
	for _, b := range m.bindings {
		for _, p := range b.include {
			key := filepath.ToSlash(filepath.Join(b.root, p))
			out[key] = append(out[key], b.taskID)
		}
	}
	return out
}

// within reports whether path equals dir or lies beneath it.
func within(path, dir string) bool {
	absPath, err1 := filepath.Abs(path)
	absDir, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	if absPath == absDir {
		return true
	}
	return strings.HasPrefix(absPath, absDir+string(filepath.Separator))
}
