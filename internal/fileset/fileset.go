// Package fileset resolves include/exclude glob patterns relative to a root
// directory. Patterns use doublestar syntax with forward slashes.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Resolve returns the regular files under root matching any include pattern
// and no exclude pattern. Paths are joined with root and sorted. A missing
// root yields no files.
func Resolve(root string, include, exclude []string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}

	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	for _, pattern := range include {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q under %s: %w", pattern, root, err)
		}
		for _, rel := range matches {
			if excluded(rel, exclude) {
				continue
			}
			seen[rel] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for rel := range seen {
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	slices.Sort(out)
	return out, nil
}

// Matches reports whether path, which may be absolute or relative to the
// working directory, falls under root and matches the patterns.
func Matches(root string, include, exclude []string, path string) bool {
	rel, ok := Rel(root, path)
	if !ok {
		return false
	}
	if excluded(rel, exclude) {
		return false
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Rel returns path relative to root in slash form, or false when path is
// outside root.
func Rel(root, path string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func excluded(rel string, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
