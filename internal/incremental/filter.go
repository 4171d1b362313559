package incremental

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/fileset"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonNeverSucceeded Reason = "never-succeeded"
	ReasonConfigChanged  Reason = "config-changed"
	ReasonNoInputs       Reason = "no-inputs"
	ReasonAdded          Reason = "added"
	ReasonModified       Reason = "modified"
	ReasonDeleted        Reason = "deleted"
	ReasonUnchanged      Reason = "unchanged"
)

// Snapshot holds the fingerprints of a task's inputs at one point in time.
type Snapshot map[string]Fingerprint

// Decision is the outcome of ShouldRun.
type Decision struct {
	Run    bool
	Reason Reason
	// Path is the first file that caused the task to run, if any.
	Path string
	// Inputs is the sorted list of resolved input files.
	Inputs   []string
	Snapshot Snapshot
	// ConfigHash is the task's configuration fingerprint, see ConfigHash.
	ConfigHash string
}

// Options configures a Filter.
type Options struct {
	Mode config.FingerprintMode
	// Resolution is the smallest modification time difference treated as a
	// change in mtime mode.
	Resolution time.Duration
	// Environment is folded into every task's configuration fingerprint.
	Environment config.Environment
}

// Filter compares current input fingerprints with recorded state.
type Filter struct {
	state *State
	opts  Options
	now   func() time.Time
}

// NewFilter creates a filter over state.
func NewFilter(state *State, opts Options) *Filter {
	if state == nil {
		state = NewState()
	}
	if opts.Mode == "" {
		opts.Mode = config.FingerprintMtime
	}
	if opts.Resolution <= 0 {
		opts.Resolution = config.DefaultMtimeResolution
	}
	return &Filter{state: state, opts: opts, now: time.Now}
}

// SetEnvironment changes the environment folded into configuration
// fingerprints. It must not be called while a run is deciding.
func (f *Filter) SetEnvironment(env config.Environment) {
	f.opts.Environment = env
}

// State returns the state the filter reads and records into.
func (f *Filter) State() *State {
	return f.state
}

// ShouldRun resolves the task's inputs, fingerprints them and decides whether
// the task must run. It never modifies state.
func (f *Filter) ShouldRun(t *task.Task) (Decision, error) {
	inputs, err := fileset.Resolve(t.Root, t.Inputs, t.Exclude)
	if err != nil {
		return Decision{}, err
	}

	prev, completed := f.state.Get(t.ID)
	snap := make(Snapshot, len(inputs))
	present := inputs[:0]
	for _, path := range inputs {
		var before *Fingerprint
		if fp, ok := prev.Inputs[path]; ok {
			before = &fp
		}
		fp, err := f.fingerprint(path, before)
		if errors.Is(err, fs.ErrNotExist) {
			// Removed since the glob was resolved.
			continue
		}
		if err != nil {
			return Decision{}, err
		}
		snap[path] = fp
		present = append(present, path)
	}
	inputs = present

	d := Decision{Inputs: inputs, Snapshot: snap, ConfigHash: ConfigHash(t, f.opts.Environment)}
	switch {
	case len(t.Inputs) == 0:
		d.Run, d.Reason = true, ReasonNoInputs
	case !completed:
		d.Run, d.Reason = true, ReasonNeverSucceeded
	case prev.ConfigHash != d.ConfigHash:
		d.Run, d.Reason = true, ReasonConfigChanged
	default:
		d.Reason, d.Path = f.compare(inputs, snap, prev.Inputs)
		d.Run = d.Reason != ReasonUnchanged
	}
	return d, nil
}

// compare walks the current inputs in sorted order so the reported path is
// deterministic.
func (f *Filter) compare(inputs []string, cur, prev Snapshot) (Reason, string) {
	for _, path := range inputs {
		old, ok := prev[path]
		if !ok {
			return ReasonAdded, path
		}
		if f.changed(old, cur[path]) {
			return ReasonModified, path
		}
	}
	for path := range prev {
		if _, ok := cur[path]; !ok {
			return ReasonDeleted, path
		}
	}
	return ReasonUnchanged, ""
}

func (f *Filter) changed(old, cur Fingerprint) bool {
	if f.opts.Mode == config.FingerprintContent {
		return old.Hash != cur.Hash
	}
	if old.Size != cur.Size {
		return true
	}
	diff := time.Duration(cur.ModTime - old.ModTime)
	if diff < 0 {
		diff = -diff
	}
	return diff > f.opts.Resolution
}

// fingerprint stats path and, in content mode, hashes it. An unchanged
// mtime and size reuses the previous hash.
func (f *Filter) fingerprint(path string, prev *Fingerprint) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat input %s: %w", path, err)
	}
	fp := Fingerprint{ModTime: info.ModTime().UnixNano(), Size: info.Size()}
	if f.opts.Mode != config.FingerprintContent {
		return fp, nil
	}
	if prev != nil && prev.Hash != "" && prev.ModTime == fp.ModTime && prev.Size == fp.Size {
		fp.Hash = prev.Hash
		return fp, nil
	}
	fp.Hash, err = hashFile(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash input %s: %w", path, err)
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// Record commits the snapshot and configuration fingerprint of a decision
// taken before a successful run as the task's new baseline. Only the
// goroutine that owns the run may call it.
func (f *Filter) Record(id string, d Decision) {
	f.state.put(id, TaskState{CompletedAt: f.now(), ConfigHash: d.ConfigHash, Inputs: d.Snapshot})
}
