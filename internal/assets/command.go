package assets

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// Placeholders substituted in command arguments.
const (
	PlaceholderSrc    = "{src}"
	PlaceholderDest   = "{dest}"
	PlaceholderTmp    = "{tmp}"
	PlaceholderEnv    = "{env}"
	PlaceholderInputs = "{inputs}"
)

const maxErrorOutput = 2048

// CommandAction runs an external transform such as sass, esbuild or eslint.
//
// An argument that is exactly {inputs} expands to one argument per resolved
// input file. {src}, {dest}, {tmp} and {env} are replaced anywhere inside an
// argument. The same values are exported as ASSETFLOW_* environment variables.
type CommandAction struct {
	Args []string
	Tmp  string
	Dest string
}

// ConfigKey implements task.ConfigKeyer.
func (a *CommandAction) ConfigKey() string {
	return strings.Join(append([]string{a.Tmp, a.Dest}, a.Args...), "\x00")
}

// Expand returns the argv for one invocation.
func (a *CommandAction) Expand(tc *task.Context) []string {
	r := strings.NewReplacer(
		PlaceholderSrc, tc.Task.Root,
		PlaceholderDest, a.Dest,
		PlaceholderTmp, a.Tmp,
		PlaceholderEnv, string(tc.Environment),
	)
	argv := make([]string, 0, len(a.Args)+len(tc.Inputs))
	for _, arg := range a.Args {
		if arg == PlaceholderInputs {
			argv = append(argv, tc.Inputs...)
			continue
		}
		argv = append(argv, r.Replace(arg))
	}
	return argv
}

// Execute implements task.Action.
func (a *CommandAction) Execute(ctx context.Context, tc *task.Context) (task.Result, error) {
	argv := a.Expand(tc)
	if len(argv) == 0 {
		return task.Result{}, ferrors.ConfigError("command is empty").
			WithContext("task", tc.Task.ID).
			Build()
	}
	for _, dir := range []string{a.Dest, a.Tmp} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return task.Result{}, fsError(err, "failed to create output directory", dir)
		}
	}

	// #nosec G204 -- the command comes from the project's own configuration
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"ASSETFLOW_ENV="+string(tc.Environment),
		"ASSETFLOW_SRC="+tc.Task.Root,
		"ASSETFLOW_DEST="+a.Dest,
		"ASSETFLOW_TMP="+a.Tmp,
		"ASSETFLOW_RUN_ID="+tc.RunID,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	tc.Logger.Debug("Running command", "argv", argv)
	err := cmd.Run()

	logLines(tc, "stdout", stdout.Bytes())
	logLines(tc, "stderr", stderr.Bytes())

	if err != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		b := ferrors.WrapError(err, ferrors.CategoryTask, fmt.Sprintf("%s failed", filepath.Base(argv[0]))).
			WithContext("task", tc.Task.ID).
			WithContext("command", strings.Join(argv, " "))
		if output != "" {
			b = b.WithContext("output", tail(output, maxErrorOutput))
		}
		return task.Result{}, b.Build()
	}

	outputs, n, err := writtenSince(a.Dest, started)
	if err != nil {
		return task.Result{}, err
	}
	return task.Result{Outputs: outputs, Bytes: n}, nil
}

func logLines(tc *task.Context, stream string, data []byte) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if stream == "stderr" {
			tc.Logger.Warn(line, "stream", stream)
		} else {
			tc.Logger.Info(line, "stream", stream)
		}
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// writtenSince lists the files under dir modified at or after since. The
// cutoff is truncated to whole seconds for filesystems with coarse mtimes.
func writtenSince(dir string, since time.Time) ([]string, int64, error) {
	if dir == "" {
		return nil, 0, nil
	}
	cutoff := since.Truncate(time.Second)
	var outputs []string
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			outputs = append(outputs, path)
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, 0, fsError(err, "failed to scan outputs", dir)
	}
	return outputs, total, nil
}
