package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func TestPoller_ReportsDifferences(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "a.css")
	require.NoError(t, os.WriteFile(existing, []byte("a"), 0o600))

	p, err := NewPoller([]string{root}, []string{"**/.*"}, time.Hour)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	created := filepath.Join(root, "nested", "b.css")
	require.NoError(t, os.MkdirAll(filepath.Dir(created), 0o755))
	require.NoError(t, os.WriteFile(created, []byte("b"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden"), []byte("x"), 0o600))
	p.Poll()
	ev := nextEvent(t, p.Events())
	assert.Equal(t, ChangeEvent{Path: created, Op: OpCreated, At: ev.At}, ev)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(existing, later, later))
	p.Poll()
	ev = nextEvent(t, p.Events())
	assert.Equal(t, existing, ev.Path)
	assert.Equal(t, OpModified, ev.Op)

	require.NoError(t, os.Remove(created))
	p.Poll()
	ev = nextEvent(t, p.Events())
	assert.Equal(t, created, ev.Path)
	assert.Equal(t, OpDeleted, ev.Op)
}

func TestWatcher_ReportsNativeEvents(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "styles")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	w, err := NewWatcher([]string{root}, []string{"**/*.swp"})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(filepath.Join(sub, ".main.scss.swp"), []byte("x"), 0o600))
	target := filepath.Join(sub, "main.scss")
	require.NoError(t, os.WriteFile(target, []byte("body{}"), 0o600))

	ev := nextEvent(t, w.Events())
	assert.Equal(t, target, ev.Path)
	assert.Contains(t, []Op{OpCreated, OpModified}, ev.Op)
}

func TestWatcher_ReportsFilesOfMovedInDirectory(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(t.TempDir(), "partials")
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "mixins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "_vars.scss"), []byte("$a: 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "mixins", "_grid.scss"), []byte("@mixin g {}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(staging, ".DS_Store"), []byte("x"), 0o600))

	w, err := NewWatcher([]string{root}, []string{"**/.*"})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	moved := filepath.Join(root, "partials")
	require.NoError(t, os.Rename(staging, moved))

	want := map[string]bool{
		filepath.Join(moved, "_vars.scss"):          false,
		filepath.Join(moved, "mixins", "_grid.scss"): false,
	}
	deadline := time.After(2 * time.Second)
	for seen := 0; seen < len(want); {
		select {
		case ev := <-w.Events():
			assert.NotEqual(t, filepath.Join(moved, ".DS_Store"), ev.Path)
			if done, ok := want[ev.Path]; ok && !done {
				assert.Equal(t, OpCreated, ev.Op)
				want[ev.Path] = true
				seen++
			}
		case <-deadline:
			t.Fatalf("missing events for moved-in files: %v", want)
		}
	}
}

func TestIgnored(t *testing.T) {
	patterns := []string{"**/.*", "**/*~", "node_modules/**"}
	assert.True(t, ignored(patterns, "/src", "/src/styles/.DS_Store"))
	assert.True(t, ignored(patterns, "/src", "/src/a.js~"))
	assert.True(t, ignored(patterns, "/src", "/src/node_modules/x/index.js"))
	assert.False(t, ignored(patterns, "/src", "/src/styles/main.scss"))
}
