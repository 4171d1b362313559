package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetflow/internal/config"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/incremental"
)

// keepInDest survives clean so a checked-out deploy branch stays usable.
const keepInDest = ".git"

// Clean removes the intermediate directory, everything in the destination
// directory except .git, and the persisted build state. Missing paths are not
// an error. It returns the removed paths.
func Clean(cfg *config.Config) ([]string, error) {
	for _, dir := range []string{cfg.Paths.Tmp, cfg.Paths.Dest} {
		if err := refuseUnsafe(dir); err != nil {
			return nil, err
		}
	}

	var removed []string
	if ok, err := removeAll(cfg.Paths.Tmp); err != nil {
		return removed, err
	} else if ok {
		removed = append(removed, cfg.Paths.Tmp)
	}

	entries, err := os.ReadDir(cfg.Paths.Dest)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return removed, fsError(err, "failed to read output directory", cfg.Paths.Dest)
	}
	for _, e := range entries {
		if e.Name() == keepInDest {
			continue
		}
		p := filepath.Join(cfg.Paths.Dest, e.Name())
		if _, err := removeAll(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}

	if _, err := os.Stat(cfg.Build.StateFile); err == nil {
		if err := incremental.RemoveState(cfg.Build.StateFile); err != nil {
			return removed, err
		}
		removed = append(removed, cfg.Build.StateFile)
	}
	return removed, nil
}

func removeAll(p string) (bool, error) {
	if p == "" {
		return false, nil
	}
	if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(p); err != nil {
		return false, fsError(err, "failed to remove", p)
	}
	return true, nil
}

// refuseUnsafe rejects directories whose removal would take the project with
// them: the filesystem root, the working directory or any of its parents.
func refuseUnsafe(dir string) error {
	if dir == "" {
		return nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fsError(err, "failed to resolve path", dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fsError(err, "failed to resolve working directory", dir)
	}
	if abs == filepath.Dir(abs) {
		return unsafeClean(dir)
	}
	rel, err := filepath.Rel(abs, wd)
	if err == nil && !startsWithParent(rel) {
		return unsafeClean(dir)
	}
	return nil
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

func unsafeClean(dir string) error {
	return ferrors.ValidationError("refusing to clean a directory that contains the project").
		WithContext("path", dir).
		Build()
}
