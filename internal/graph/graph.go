// Package graph derives the dependency graph of the registered tasks and
// partitions it into levels of mutually independent tasks.
package graph

import (
	"fmt"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// CycleError names the tasks on a dependency cycle. Path starts and ends with
// the same id, each element depending on the next.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// Graph is a read-only view over a task set.
type Graph struct {
	order   []string
	index   map[string]int
	preds   map[string][]string
	succs   map[string][]string
	levels  [][]string
	levelOf map[string]int
}

// Resolve validates the task set and computes its levels. Level 0 holds tasks
// without dependencies; every task sits one level above its deepest
// dependency. Within a level, tasks keep the order they were given in.
func Resolve(tasks []*task.Task) (*Graph, error) {
	g := &Graph{
		order:   make([]string, 0, len(tasks)),
		index:   make(map[string]int, len(tasks)),
		preds:   make(map[string][]string, len(tasks)),
		succs:   make(map[string][]string, len(tasks)),
		levelOf: make(map[string]int, len(tasks)),
	}
	for i, t := range tasks {
		if _, dup := g.index[t.ID]; dup {
			return nil, ferrors.WrapError(&task.DuplicateTaskError{ID: t.ID}, ferrors.CategoryConfig, "task id collision").
				Fatal().
				WithContext("task", t.ID).
				Build()
		}
		g.index[t.ID] = i
		g.order = append(g.order, t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := g.index[dep]; !ok {
				return nil, ferrors.WrapError(&task.UnknownDependencyError{Task: t.ID, Dependency: dep}, ferrors.CategoryConfig, "unknown task dependency").
					Fatal().
					WithContext("task", t.ID).
					Build()
			}
			if !slices.Contains(g.preds[t.ID], dep) {
				g.preds[t.ID] = append(g.preds[t.ID], dep)
				g.succs[dep] = append(g.succs[dep], t.ID)
			}
		}
	}
	for id := range g.succs {
		g.sortByOrder(g.succs[id])
	}

	if cycle := g.findCycle(); cycle != nil {
		cerr := &CycleError{Path: cycle}
		return nil, ferrors.WrapError(cerr, ferrors.CategoryGraph, cerr.Error()).
			Fatal().
			WithContext("cycle", strings.Join(cycle, " -> ")).
			Build()
	}

	g.computeLevels()
	return g, nil
}

// findCycle walks the dependency edges depth first with visiting and visited
// markers and returns the first cycle found, or nil.
func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.preds[id] {
			switch state[dep] {
			case visiting:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return false
	}

	for _, id := range g.order {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

func (g *Graph) computeLevels() {
	var depth func(id string) int
	depth = func(id string) int {
		if lvl, ok := g.levelOf[id]; ok {
			return lvl
		}
		lvl := 0
		for _, dep := range g.preds[id] {
			lvl = max(lvl, depth(dep)+1)
		}
		g.levelOf[id] = lvl
		return lvl
	}
	for _, id := range g.order {
		lvl := depth(id)
		for len(g.levels) <= lvl {
			g.levels = append(g.levels, nil)
		}
	}
	for _, id := range g.order {
		lvl := g.levelOf[id]
		g.levels[lvl] = append(g.levels[lvl], id)
	}
}

func (g *Graph) sortByOrder(ids []string) {
	slices.SortFunc(ids, func(a, b string) int { return g.index[a] - g.index[b] })
}

// Levels returns a copy of the level partition.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, lvl := range g.levels {
		out[i] = slices.Clone(lvl)
	}
	return out
}

// Level returns the level index of a task, or -1 if it is unknown.
func (g *Graph) Level(id string) int {
	if lvl, ok := g.levelOf[id]; ok {
		return lvl
	}
	return -1
}

// Has reports whether id is part of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// IDs returns every task id in graph order.
func (g *Graph) IDs() []string {
	return slices.Clone(g.order)
}

// Predecessors returns the direct dependencies of id.
func (g *Graph) Predecessors(id string) []string {
	return slices.Clone(g.preds[id])
}

// Successors returns the tasks that depend directly on id.
func (g *Graph) Successors(id string) []string {
	return slices.Clone(g.succs[id])
}

// WithSuccessors returns ids plus every transitive successor, ordered by
// level and then graph order. Unknown ids are ignored.
func (g *Graph) WithSuccessors(ids []string) []string {
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, s := range g.succs[id] {
			walk(s)
		}
	}
	for _, id := range ids {
		if g.Has(id) {
			walk(id)
		}
	}

	out := make([]string, 0, len(seen))
	for _, lvl := range g.levels {
		for _, id := range lvl {
			if seen[id] {
				out = append(out, id)
			}
		}
	}
	return out
}

// Restrict returns the levels limited to ids. Empty levels are dropped, so
// the result is dense but keeps relative order.
func (g *Graph) Restrict(ids []string) [][]string {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out [][]string
	for _, lvl := range g.levels {
		var sub []string
		for _, id := range lvl {
			if keep[id] {
				sub = append(sub, id)
			}
		}
		if len(sub) > 0 {
			out = append(out, sub)
		}
	}
	return out
}

// String renders the levels on one line, mainly for logs.
func (g *Graph) String() string {
	parts := make([]string, len(g.levels))
	for i, lvl := range g.levels {
		parts[i] = fmt.Sprintf("%d:[%s]", i, strings.Join(lvl, " "))
	}
	return strings.Join(parts, " ")
}
