package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "assetflow.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())
		assert.False(t, err.OccurredAt().IsZero())

		file, exists := err.Context().GetString("file")
		require.True(t, exists)
		assert.Equal(t, "assetflow.yaml", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", ConfigError("test error").Build())

		assert.True(t, IsClassified(err))
		assert.True(t, HasCategory(err, CategoryConfig))
		assert.Equal(t, SeverityFatal, GetSeverity(err))
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})

	t.Run("Task errors are not fatal", func(t *testing.T) {
		err := TaskError("styles failed").Build()
		assert.False(t, err.IsFatal())
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := stderrors.New("original error")
	err := WrapError(originalErr, CategoryWatcher, "watch handles exhausted").
		Warning().
		WithContext("dir", "src").
		Build()

	assert.Equal(t, CategoryWatcher, err.Category())
	assert.Equal(t, SeverityWarning, err.Severity())
	assert.ErrorIs(t, err, originalErr)
	assert.Equal(t, "[watcher:warning] watch handles exhausted: original error", err.Error())

	withMore := err.WithContext("attempt", 2)
	_, had := err.Context().Get("attempt")
	assert.False(t, had, "WithContext must not mutate the receiver")
	v, ok := withMore.Context().Get("attempt")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestClassifiedError_Is(t *testing.T) {
	a := GraphError("dependency cycle").Build()
	b := GraphError("dependency cycle").WithContext("cycle", "x").Build()
	c := ConfigError("dependency cycle").Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}
