// Package task defines build tasks, the action seam they execute through,
// and the registry that holds them for the lifetime of the process.
package task

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetflow/internal/config"
)

// Kind classifies what a task produces. The reload notifier uses it to decide
// whether a run can be applied as an in-place style injection.
type Kind string

const (
	KindStyle    Kind = "style"
	KindScript   Kind = "script"
	KindTemplate Kind = "template"
	KindImage    Kind = "image"
	KindStatic   Kind = "static"
)

// Task is a named unit of build work.
type Task struct {
	ID        string
	Kind      Kind
	DependsOn []string

	// Root is the directory Inputs and Exclude are matched against.
	Root    string
	Inputs  []string
	Exclude []string

	// Output is the location the action writes to. It is informational for
	// the orchestrator and used by clean.
	Output string

	Action Action
}

// Action is the seam to the content transforms. Implementations must be safe
// to call from multiple goroutines when registered on several tasks.
type Action interface {
	Execute(ctx context.Context, tc *Context) (Result, error)
}

// ConfigKeyer is implemented by actions whose settings affect their output.
// The key must be stable across processes.
type ConfigKeyer interface {
	ConfigKey() string
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, tc *Context) (Result, error)

// Execute calls f.
func (f ActionFunc) Execute(ctx context.Context, tc *Context) (Result, error) {
	return f(ctx, tc)
}

// Context is everything an action may look at while it runs.
type Context struct {
	Task  *Task
	RunID string

	// Inputs are the resolved input files, joined with Task.Root and sorted.
	Inputs []string

	Environment config.Environment
	Logger      *slog.Logger

	// Config is shared between all tasks and must not be modified.
	Config *config.Config
}

// Result is returned by a successful action.
type Result struct {
	Outputs []string
	// Bytes is the total size of the written outputs, if known.
	Bytes int64
}
