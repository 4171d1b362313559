package assets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/assetflow/internal/fileset"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// CopyAction copies every input into Dest, keeping its path relative to the
// task root.
type CopyAction struct {
	Dest         string
	SkipPartials bool
}

// ConfigKey implements task.ConfigKeyer.
func (a *CopyAction) ConfigKey() string {
	return a.Dest + "|skip_partials=" + strconv.FormatBool(a.SkipPartials)
}

// Execute implements task.Action.
func (a *CopyAction) Execute(ctx context.Context, tc *task.Context) (task.Result, error) {
	var res task.Result
	for _, src := range tc.Inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rel, ok := fileset.Rel(tc.Task.Root, src)
		if !ok {
			continue
		}
		if a.SkipPartials && isPartial(rel) {
			continue
		}
		dst := filepath.Join(a.Dest, filepath.FromSlash(rel))
		n, err := copyFile(src, dst)
		if err != nil {
			return res, err
		}
		res.Outputs = append(res.Outputs, dst)
		res.Bytes += n
	}
	return res, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return 0, fsError(err, "failed to open input", src)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return 0, fsError(err, "failed to stat input", src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, fsError(err, "failed to create output directory", dst)
	}
	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fsError(err, "failed to create output", dst)
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fsError(err, "failed to write output", dst)
	}
	return n, nil
}

func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fsError(err, "failed to create output directory", dst)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fsError(err, "failed to write output", dst)
	}
	return nil
}

func fsError(err error, msg, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).
		WithContext("path", path).
		Build()
}
