package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetflow/internal/config"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/history"
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// project lays out a source tree and a configuration document that uses
// absolute paths, so tests do not depend on the working directory.
type project struct {
	root   string
	config string
	dest   string
}

func newProject(t *testing.T, extra string) *project {
	t.Helper()
	root := t.TempDir()
	p := &project{
		root:   root,
		config: filepath.Join(root, "assetflow.yaml"),
		dest:   filepath.Join(root, "dist"),
	}
	files := map[string]string{
		"src/styles/site.css": "body { color: red; }",
		"src/scripts/app.js":  "console.log('hi');",
		"src/images/logo.svg": "<svg></svg>",
		"src/index.html":      "<html><body>home</body></html>",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	doc := "paths:\n" +
		"  src: " + filepath.Join(root, "src") + "\n" +
		"  tmp: " + filepath.Join(root, ".tmp") + "\n" +
		"  dest: " + p.dest + "\n" +
		"build:\n" +
		"  concurrency: 2\n" +
		"  state_file: " + filepath.Join(root, ".assetflow", "state.json") + "\n" +
		"  history_db: " + filepath.Join(root, ".assetflow", "history.db") + "\n" +
		extra
	require.NoError(t, os.WriteFile(p.config, []byte(doc), 0o644))
	return p
}

func (p *project) cli() *CLI {
	return &CLI{Config: p.config}
}

func testGlobal() (*Global, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Global{Logger: slog.Default(), Stdout: &buf}, &buf
}

func lineFor(out, prefix string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix+" ") {
			return line
		}
	}
	return ""
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Succeeded", statusLabel("succeeded"))
	assert.Equal(t, "Skipped Dependency Failed", statusLabel("skipped-dependency-failed"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
}

func TestPrintSummary(t *testing.T) {
	start := time.Now()
	result := &scheduler.RunResult{
		ID:         "run-1",
		Request:    scheduler.FullRequest("test"),
		StartedAt:  start,
		FinishedAt: start.Add(120 * time.Millisecond),
		Tasks: []scheduler.TaskResult{
			{ID: "styles", Status: scheduler.StatusSucceeded, Duration: 40 * time.Millisecond, Bytes: 2048},
			{ID: "scripts", Status: scheduler.StatusFailed, Message: "exit status 1"},
			{ID: "templates", Status: scheduler.StatusSkippedDependencyFailed},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, result)
	out := buf.String()

	assert.Contains(t, lineFor(out, "styles"), "2.0 KiB")
	assert.Contains(t, lineFor(out, "templates"), "Skipped Dependency Failed")
	assert.Contains(t, out, "Build failed in 120ms: 1 succeeded, 1 failed, 1 skipped dependency failed")
	assert.Contains(t, out, "  scripts: exit status 1")
}

func TestNewLogger_Precedence(t *testing.T) {
	ctx := context.Background()

	t.Setenv(EnvLogLevel, "")
	logger := newLogger(&bytes.Buffer{}, false, config.LoggingConfig{Level: config.LogLevelWarn})
	assert.False(t, logger.Enabled(ctx, slog.LevelInfo))
	assert.True(t, logger.Enabled(ctx, slog.LevelWarn))

	t.Setenv(EnvLogLevel, "error")
	logger = newLogger(&bytes.Buffer{}, false, config.LoggingConfig{Level: config.LogLevelDebug})
	assert.False(t, logger.Enabled(ctx, slog.LevelWarn))

	logger = newLogger(&bytes.Buffer{}, true, config.LoggingConfig{Level: config.LogLevelError})
	assert.True(t, logger.Enabled(ctx, slog.LevelDebug))
}

func TestNewLogger_JSONFormat(t *testing.T) {
	t.Setenv(EnvLogFormat, "json")
	var buf bytes.Buffer
	newLogger(&buf, false, config.LoggingConfig{}).Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
}

func TestBuild_CopiesAndSkipsUnchanged(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()

	require.NoError(t, (&BuildCmd{}).Run(g, p.cli()))
	assert.FileExists(t, filepath.Join(p.dest, "styles", "site.css"))
	assert.FileExists(t, filepath.Join(p.dest, "scripts", "app.js"))
	assert.FileExists(t, filepath.Join(p.dest, "images", "logo.svg"))
	assert.FileExists(t, filepath.Join(p.dest, "index.html"))
	assert.Contains(t, lineFor(out.String(), "styles"), "Succeeded")
	assert.Contains(t, out.String(), "Build finished")

	out.Reset()
	require.NoError(t, (&BuildCmd{}).Run(g, p.cli()))
	assert.Contains(t, lineFor(out.String(), "styles"), "Skipped Unchanged")

	out.Reset()
	require.NoError(t, (&BuildCmd{Force: true}).Run(g, p.cli()))
	assert.Contains(t, lineFor(out.String(), "styles"), "Succeeded")
}

func TestBuild_PartialRunsSuccessors(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()

	require.NoError(t, (&BuildCmd{Tasks: []string{"styles"}}).Run(g, p.cli()))
	assert.NotEmpty(t, lineFor(out.String(), "styles"))
	assert.NotEmpty(t, lineFor(out.String(), "templates"))
	assert.Empty(t, lineFor(out.String(), "images"))
}

func TestBuild_UnknownTaskIsConfigError(t *testing.T) {
	p := newProject(t, "")
	g, _ := testGlobal()

	err := (&BuildCmd{Tasks: []string{"nope"}}).Run(g, p.cli())
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitConfigError, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestBuild_FailedTaskExitsOne(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	p := newProject(t, "assets:\n  styles:\n    command: [\"sh\", \"-c\", \"echo broken >&2; exit 3\"]\n")
	g, out := testGlobal()

	err := (&BuildCmd{}).Run(g, p.cli())
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitBuildFailure, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, lineFor(out.String(), "styles"), "Failed")
	assert.Contains(t, lineFor(out.String(), "templates"), "Skipped Dependency Failed")
	assert.Contains(t, lineFor(out.String(), "images"), "Succeeded")
}

func TestBuild_MissingConfig(t *testing.T) {
	g, _ := testGlobal()
	err := (&BuildCmd{}).Run(g, &CLI{Config: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Equal(t, ferrors.ExitConfigError, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestHistory_ListsBuilds(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()
	require.NoError(t, (&BuildCmd{}).Run(g, p.cli()))

	out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5}).Run(g, p.cli()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "RUN"))
	assert.Contains(t, lines[1], "Succeeded")
}

func TestHistory_ShowsOneRun(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()
	require.NoError(t, (&BuildCmd{}).Run(g, p.cli()))

	out.Reset()
	require.NoError(t, (&HistoryCmd{Limit: 5, JSON: true}).Run(g, p.cli()))
	var runs []history.RunSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &runs))
	require.Len(t, runs, 1)

	out.Reset()
	require.NoError(t, (&HistoryCmd{RunID: runs[0].RunID}).Run(g, p.cli()))
	assert.True(t, strings.HasPrefix(out.String(), "TASK"))
	assert.Contains(t, lineFor(out.String(), "styles"), "Succeeded")

	err := (&HistoryCmd{RunID: "missing"}).Run(g, p.cli())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryHistory))
}

func TestHistory_DisabledIsConfigError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "assetflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  src: "+filepath.Join(root, "src")+"\n"), 0o644))
	g, _ := testGlobal()

	err := (&HistoryCmd{Limit: 5}).Run(g, &CLI{Config: path})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestClean_RemovesOutput(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()
	require.NoError(t, (&BuildCmd{}).Run(g, p.cli()))

	out.Reset()
	require.NoError(t, (&CleanCmd{}).Run(g, p.cli()))
	assert.NoFileExists(t, filepath.Join(p.dest, "index.html"))
	assert.NoFileExists(t, filepath.Join(p.root, ".assetflow", "state.json"))
	assert.Contains(t, out.String(), "removed ")

	out.Reset()
	require.NoError(t, (&CleanCmd{}).Run(g, p.cli()))
	assert.Contains(t, out.String(), "nothing to clean")
}

func TestInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetflow.yaml")
	g, out := testGlobal()

	require.NoError(t, (&InitCmd{}).Run(g, &CLI{Config: path}))
	assert.Contains(t, out.String(), path)
	_, err := config.Load(path)
	require.NoError(t, err)

	require.Error(t, (&InitCmd{}).Run(g, &CLI{Config: path}))
	require.NoError(t, (&InitCmd{Force: true}).Run(g, &CLI{Config: path}))
}

func TestGraph_Formats(t *testing.T) {
	p := newProject(t, "")
	g, out := testGlobal()

	require.NoError(t, (&GraphCmd{Format: "mermaid"}).Run(g, p.cli()))
	assert.Contains(t, out.String(), "graph")
	assert.Contains(t, out.String(), "templates")

	target := filepath.Join(p.root, "graph.json")
	require.NoError(t, (&GraphCmd{Format: "json", Output: target}).Run(g, p.cli()))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"styles"`)
}
