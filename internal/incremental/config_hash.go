package incremental

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// ConfigHash fingerprints everything about a task that changes its output
// without touching its inputs: the environment, the input selection, the
// output location and the action settings.
func ConfigHash(t *task.Task, env config.Environment) string {
	h := xxhash.New()
	field := func(name string, values ...string) {
		_, _ = fmt.Fprintf(h, "%s=%s\n", name, strings.Join(values, "\x1f"))
	}
	field("env", string(env))
	field("kind", string(t.Kind))
	field("root", t.Root)
	field("inputs", t.Inputs...)
	field("exclude", t.Exclude...)
	field("output", t.Output)
	field("action", fmt.Sprintf("%T", t.Action))
	if k, ok := t.Action.(task.ConfigKeyer); ok {
		field("action_config", k.ConfigKey())
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
