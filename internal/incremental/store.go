package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
)

// stateVersion is bumped whenever the on-disk layout changes. Files with a
// different version are ignored.
const stateVersion = 2

type stateFile struct {
	Version int                  `json:"version"`
	Tasks   map[string]TaskState `json:"tasks"`
}

// LoadState reads persisted build state. A missing, unreadable or outdated
// file yields an empty state so the next run executes every task.
func LoadState(path string) *State {
	s := NewState()
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read build state, starting fresh", logfields.Path(path), logfields.Error(err))
		}
		return s
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("Corrupt build state, starting fresh", logfields.Path(path), logfields.Error(err))
		return s
	}
	if f.Version != stateVersion {
		slog.Info("Build state version changed, starting fresh", logfields.Path(path),
			slog.Int("found", f.Version), slog.Int("expected", stateVersion))
		return s
	}
	for id, ts := range f.Tasks {
		if ts.Inputs == nil {
			ts.Inputs = map[string]Fingerprint{}
		}
		s.tasks[id] = ts
	}
	slog.Debug("Loaded build state", logfields.Path(path), logfields.Count(len(s.tasks)))
	return s
}

// Save writes the state atomically through a temporary file.
func (s *State) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(stateFile{Version: stateVersion, Tasks: s.tasks}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal build state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create state directory").
			WithContext("path", path).
			Build()
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write temporary state file").
			WithContext("path", tempPath).
			Build()
	}
	if err := os.Rename(tempPath, path); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "replace state file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// RemoveState deletes a persisted state file. A missing file is not an error.
func RemoveState(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove state file").
			WithContext("path", path).
			Build()
	}
	return nil
}
