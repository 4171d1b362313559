package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitSuccess},
		{name: "config error", err: ConfigError("bad config").Build(), expected: ExitConfigError},
		{name: "validation error", err: ValidationError("bad value").Build(), expected: ExitConfigError},
		{name: "graph error", err: GraphError("cycle").Build(), expected: ExitConfigError},
		{name: "task error", err: TaskError("sass failed").Build(), expected: ExitBuildFailure},
		{name: "wrapped graph error", err: fmt.Errorf("resolve: %w", GraphError("cycle").Build()), expected: ExitConfigError},
		{name: "unclassified error", err: stderrors.New("boom"), expected: ExitBuildFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	assert.Empty(t, adapter.FormatError(nil))
	assert.Equal(t, "Error: boom", adapter.FormatError(stderrors.New("boom")))
	assert.Equal(t, "Task graph error: dependency cycle: a -> b -> a",
		adapter.FormatError(GraphError("dependency cycle").WithCause(stderrors.New("a -> b -> a")).Build()))
	assert.Equal(t, "Build failed: 2 of 5 tasks failed", adapter.FormatError(TaskError("2 of 5 tasks failed").Build()))
	assert.Contains(t, adapter.FormatError(InternalError("oops").Build()), "use -v")

	verbose := NewCLIErrorAdapter(true, slog.Default())
	assert.Equal(t, "[internal:fatal] oops", verbose.FormatError(InternalError("oops").Build()))
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigError("unknown dependency").WithContext("task", "templates").Build())

	require.Equal(t, ExitConfigError, code)
	assert.Contains(t, out.String(), "Configuration error: unknown dependency")
	assert.Contains(t, logs.String(), "task=templates")
}
