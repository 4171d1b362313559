package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func contextFor(t *testing.T, tk *task.Task) *task.Context {
	t.Helper()
	inputs, err := fileset.Resolve(tk.Root, tk.Inputs, tk.Exclude)
	require.NoError(t, err)
	return &task.Context{
		Task:        tk,
		RunID:       "run-test",
		Inputs:      inputs,
		Environment: config.EnvProduction,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:      &config.Config{},
	}
}

func TestTasks_DefaultLayout(t *testing.T) {
	cfg, err := config.Parse([]byte(`
vendor:
  - name: jquery
    src: node_modules/jquery/dist
    dest: dist/vendor/jquery
`))
	require.NoError(t, err)

	tasks, err := Tasks(cfg)
	require.NoError(t, err)

	var ids []string
	byID := map[string]*task.Task{}
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
		byID[tk.ID] = tk
	}
	assert.Equal(t, []string{"styles", "scripts", "templates", "images", "static", "vendor:jquery"}, ids)

	assert.Equal(t, task.KindStyle, byID["styles"].Kind)
	assert.Equal(t, task.KindTemplate, byID["templates"].Kind)
	assert.Equal(t, []string{"styles", "scripts"}, byID["templates"].DependsOn)
	assert.IsType(t, &CopyAction{}, byID["styles"].Action)
	assert.True(t, byID["templates"].Action.(*CopyAction).SkipPartials)
	assert.Equal(t, task.KindStatic, byID["vendor:jquery"].Kind)
	assert.Equal(t, []string{"**/*"}, byID["vendor:jquery"].Inputs)

	reg := task.NewRegistry()
	require.NoError(t, Register(reg, cfg))
	assert.Equal(t, len(tasks), reg.Len())
}

func TestTasks_RendererSelection(t *testing.T) {
	cfg, err := config.Parse([]byte(`
assets:
  lint:
    command: [eslint, "{inputs}"]
  styles:
    command: [sass, "{src}:{dest}"]
  templates:
    renderer: markdown
`))
	require.NoError(t, err)

	tasks, err := Tasks(cfg)
	require.NoError(t, err)
	byID := map[string]*task.Task{}
	for _, tk := range tasks {
		byID[tk.ID] = tk
	}
	require.Contains(t, byID, "lint")
	assert.Equal(t, task.KindScript, byID["lint"].Kind)
	assert.Equal(t, []string{"lint"}, byID["scripts"].DependsOn)
	assert.IsType(t, &CommandAction{}, byID["styles"].Action)
	assert.IsType(t, &MarkdownAction{}, byID["templates"].Action)
}

func TestRegister_UnknownExplicitDependency(t *testing.T) {
	cfg, err := config.Parse([]byte(`
assets:
  images:
    depends_on: [sprites]
`))
	require.NoError(t, err)

	err = Register(task.NewRegistry(), cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestCopyAction(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")
	writeFiles(t, root, map[string]string{
		"index.html":        "<p>home</p>",
		"about/index.html":  "<p>about</p>",
		"_layout.html":      "<main></main>",
		"partials/_nav.ejs": "nav",
	})
	tk := &task.Task{ID: "templates", Root: root, Inputs: []string{"**/*"}}
	action := &CopyAction{Dest: dest, SkipPartials: true}
	tk.Action = action

	res, err := action.Execute(t.Context(), contextFor(t, tk))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dest, "index.html"),
		filepath.Join(dest, "about", "index.html"),
	}, res.Outputs)
	assert.Equal(t, int64(len("<p>home</p>")+len("<p>about</p>")), res.Bytes)
	assert.NoFileExists(t, filepath.Join(dest, "_layout.html"))

	data, err := os.ReadFile(filepath.Join(dest, "about", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>about</p>", string(data))
}

func TestCopyAction_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "a"})
	tk := &task.Task{ID: "static", Root: root, Inputs: []string{"*"}}
	action := &CopyAction{Dest: t.TempDir()}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := action.Execute(ctx, contextFor(t, tk))
	assert.Error(t, err)
}

func TestCommandAction_Expand(t *testing.T) {
	tk := &task.Task{ID: "styles", Root: "src/styles"}
	action := &CommandAction{
		Args: []string{"sass", "--style={env}", "{inputs}", "{src}:{dest}", "--load-path={tmp}"},
		Tmp:  ".tmp/styles",
		Dest: "dist/styles",
	}
	tc := &task.Context{Task: tk, Inputs: []string{"src/styles/a.scss", "src/styles/b.scss"}, Environment: config.EnvDevelopment}

	assert.Equal(t, []string{
		"sass", "--style=development",
		"src/styles/a.scss", "src/styles/b.scss",
		"src/styles:dist/styles", "--load-path=.tmp/styles",
	}, action.Expand(tc))
}

func TestActions_ConfigKeyTracksSettings(t *testing.T) {
	var _ task.ConfigKeyer = &CopyAction{}
	var _ task.ConfigKeyer = &MarkdownAction{}

	a := &CommandAction{Args: []string{"sass", "--style=expanded", "{src}:{dest}"}, Dest: "dist/styles"}
	b := &CommandAction{Args: []string{"sass", "--style=compressed", "{src}:{dest}"}, Dest: "dist/styles"}
	assert.NotEqual(t, a.ConfigKey(), b.ConfigKey())
	assert.Equal(t, a.ConfigKey(), (&CommandAction{Args: slices.Clone(a.Args), Dest: a.Dest}).ConfigKey())

	assert.NotEqual(t,
		(&CopyAction{Dest: "dist"}).ConfigKey(),
		(&CopyAction{Dest: "dist", SkipPartials: true}).ConfigKey())
}

func TestCommandAction_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "styles")
	writeFiles(t, root, map[string]string{"a.css": "a{}", "b.css": "b{}"})
	tk := &task.Task{ID: "styles", Root: root, Inputs: []string{"*.css"}}
	action := &CommandAction{
		Args: []string{"sh", "-c", `echo "building for $ASSETFLOW_ENV"; cat "$@" > {dest}/bundle.css`, "sh", "{inputs}"},
		Dest: dest,
	}

	res, err := action.Execute(t.Context(), contextFor(t, tk))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "bundle.css")}, res.Outputs)
	assert.Equal(t, int64(6), res.Bytes)

	data, err := os.ReadFile(filepath.Join(dest, "bundle.css"))
	require.NoError(t, err)
	assert.Equal(t, "a{}b{}", string(data))
}

func TestCommandAction_FailureCarriesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	tk := &task.Task{ID: "lint", Root: t.TempDir()}
	action := &CommandAction{Args: []string{"sh", "-c", "echo 'unexpected token' >&2; exit 3"}}

	_, err := action.Execute(t.Context(), contextFor(t, tk))
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryTask, ce.Category())
	out, _ := ce.Context().GetString("output")
	assert.Equal(t, "unexpected token", out)
}

func TestCommandAction_MissingBinary(t *testing.T) {
	tk := &task.Task{ID: "images", Root: t.TempDir()}
	action := &CommandAction{Args: []string{fmt.Sprintf("assetflow-no-such-binary-%d", os.Getpid())}}

	_, err := action.Execute(t.Context(), contextFor(t, tk))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryTask))
}

func TestMarkdownAction(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	writeFiles(t, root, map[string]string{
		"index.md":        "# Welcome & hello\n\nSome *text*.\n",
		"guide/setup.md":  "no heading here\n",
		"_footer.md":      "footer",
		"legacy.html":     "<p>legacy</p>",
		"layout.ejs":      "<%= body %>",
		"assets/logo.svg": "<svg/>",
	})
	tk := &task.Task{ID: "templates", Root: root, Inputs: []string{"**/*"}}
	action := &MarkdownAction{Dest: dest}

	res, err := action.Execute(t.Context(), contextFor(t, tk))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dest, "index.html"),
		filepath.Join(dest, "guide", "setup.html"),
		filepath.Join(dest, "legacy.html"),
	}, res.Outputs)

	index, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "<title>Welcome &amp; hello</title>")
	assert.Contains(t, string(index), "<em>text</em>")

	setup, err := os.ReadFile(filepath.Join(dest, "guide", "setup.html"))
	require.NoError(t, err)
	assert.Contains(t, string(setup), "<title>setup</title>")
	assert.NoFileExists(t, filepath.Join(dest, "_footer.html"))
}

func TestClean(t *testing.T) {
	project := t.TempDir()
	tmp := filepath.Join(project, ".tmp")
	dest := filepath.Join(project, "dist")
	state := filepath.Join(project, ".assetflow", "state.json")
	writeFiles(t, project, map[string]string{
		".tmp/styles/main.css":  "x",
		"dist/index.html":       "x",
		"dist/styles/main.css":  "x",
		"dist/.git/HEAD":        "ref: refs/heads/gh-pages",
		".assetflow/state.json": "{}",
	})
	cfg := config.Default()
	cfg.Paths.Tmp = tmp
	cfg.Paths.Dest = dest
	cfg.Build.StateFile = state

	removed, err := Clean(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		tmp,
		filepath.Join(dest, "index.html"),
		filepath.Join(dest, "styles"),
		state,
	}, removed)
	assert.NoDirExists(t, tmp)
	assert.FileExists(t, filepath.Join(dest, ".git", "HEAD"))
	assert.NoFileExists(t, state)

	// Running again on a clean tree is a no-op.
	removed, err = Clean(cfg)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestClean_RefusesProjectRoot(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Paths.Dest = filepath.Dir(wd)
	cfg.Paths.Tmp = filepath.Join(t.TempDir(), "tmp")

	_, err = Clean(cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}
