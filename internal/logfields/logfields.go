package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTask       = "task"
	KeyTaskKind   = "task_kind"
	KeyRunID      = "run_id"
	KeyRunMode    = "run_mode"
	KeyStatus     = "status"
	KeyLevel      = "level"
	KeyPath       = "path"
	KeyOp         = "op"
	KeyScope      = "scope"
	KeyDurationMS = "duration_ms"
	KeyBytes      = "bytes"
	KeyCount      = "count"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Task(id string) slog.Attr        { return slog.String(KeyTask, id) }
func TaskKind(k string) slog.Attr     { return slog.String(KeyTaskKind, k) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func RunMode(m string) slog.Attr      { return slog.String(KeyRunMode, m) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Level(n int) slog.Attr           { return slog.Int(KeyLevel, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Scope(s string) slog.Attr        { return slog.String(KeyScope, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
