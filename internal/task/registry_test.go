package task

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

var noop = ActionFunc(func(context.Context, *Context) (Result, error) { return Result{}, nil })

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Task{ID: "sass", Kind: KindStyle, Action: noop}))
	require.NoError(t, r.Register(&Task{ID: " babel ", Kind: KindScript, Action: noop}))
	require.NoError(t, r.Register(&Task{ID: "ejs", Kind: KindTemplate, DependsOn: []string{"babel"}, Action: noop}))

	assert.Equal(t, []string{"sass", "babel", "ejs"}, r.IDs())
	assert.Equal(t, 3, r.Len())

	got, ok := r.Get("babel")
	require.True(t, ok)
	assert.Equal(t, KindScript, got.Kind)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	require.NoError(t, r.Validate())
}

func TestRegistry_RejectsCollision(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Task{ID: "styles", Action: noop}))

	err := r.Register(&Task{ID: "styles", Action: noop})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	var dup *DuplicateTaskError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "styles", dup.ID)
}

func TestRegistry_RejectsInvalidTasks(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&Task{ID: "  ", Action: noop}))
	assert.Error(t, r.Register(&Task{ID: "no-action"}))
	assert.Zero(t, r.Len())
}

func TestRegistry_ValidateUnknownDependencies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Task{ID: "templates", DependsOn: []string{"scripts", "fonts"}, Action: noop}))
	require.NoError(t, r.Register(&Task{ID: "scripts", DependsOn: []string{"lint"}, Action: noop}))

	err := r.Validate()
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitConfigError, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	require.Len(t, problems, 2)

	var unknown *UnknownDependencyError
	require.True(t, errors.As(problems[0], &unknown))
	assert.Equal(t, "templates", unknown.Task)
	assert.Equal(t, "fonts", unknown.Dependency)
}

func TestActionFunc(t *testing.T) {
	called := false
	a := ActionFunc(func(_ context.Context, tc *Context) (Result, error) {
		called = true
		return Result{Outputs: tc.Inputs}, nil
	})

	res, err := a.Execute(t.Context(), &Context{Inputs: []string{"a.css"}})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"a.css"}, res.Outputs)
}

func TestRegistry_WarnsOnSharedInputPattern(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := NewRegistry()
	require.NoError(t, r.Register(&Task{ID: "lint", Root: "src/scripts", Inputs: []string{"**/*.js"}, Action: noop}))
	require.NoError(t, r.Register(&Task{ID: "scripts", Root: "src/scripts", Inputs: []string{"**/*.js"}, Action: noop}))
	require.NoError(t, r.Register(&Task{ID: "styles", Root: "src/styles", Inputs: []string{"**/*.scss"}, Action: noop}))
	require.NoError(t, r.Validate())

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "Tasks share an input pattern")
	assert.Contains(t, out, "lint")
	assert.NotContains(t, out, "styles")
}
