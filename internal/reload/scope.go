package reload

import (
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// Scope tells observers how much of the page needs refreshing.
type Scope string

const (
	// ScopeFull asks observers to reload the whole page.
	ScopeFull Scope = "full"
	// ScopeStyle asks observers to re-fetch stylesheets in place.
	ScopeStyle Scope = "style"
)

// Signal is the payload delivered on every reload channel.
type Signal struct {
	Scope        Scope    `json:"scope"`
	ChangedPaths []string `json:"changedPaths"`
}

// DecideScope returns the reload scope for a completed run. The second value
// is false when nothing was executed, in which case no signal is due.
//
// Style scope requires every executed task to be a style task and every one of
// them to have succeeded. Anything else falls back to a full reload.
func DecideScope(result *scheduler.RunResult) (Scope, bool) {
	if result == nil {
		return "", false
	}
	executed := result.Executed()
	if len(executed) == 0 {
		return "", false
	}
	for _, tr := range executed {
		if tr.Kind != task.KindStyle || tr.Status != scheduler.StatusSucceeded {
			return ScopeFull, true
		}
	}
	return ScopeStyle, true
}
