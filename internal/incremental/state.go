package incremental

import (
	"maps"
	"sync"
	"time"
)

// Fingerprint identifies the observed content of one file.
type Fingerprint struct {
	ModTime int64  `json:"mtime"`
	Size    int64  `json:"size"`
	Hash    string `json:"hash,omitempty"`
}

// TaskState is what is known about a task's last successful run.
type TaskState struct {
	CompletedAt time.Time              `json:"completed_at"`
	ConfigHash  string                 `json:"config_hash"`
	Inputs      map[string]Fingerprint `json:"inputs"`
}

// State maps task ids to their last successful run.
type State struct {
	mu    sync.RWMutex
	tasks map[string]TaskState
}

// NewState returns an empty state. Every task is considered never completed.
func NewState() *State {
	return &State{tasks: make(map[string]TaskState)}
}

// Get returns a copy of the recorded state for a task.
func (s *State) Get(id string) (TaskState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.tasks[id]
	if !ok {
		return TaskState{}, false
	}
	ts.Inputs = maps.Clone(ts.Inputs)
	return ts, true
}

// Forget drops a task's state so its next evaluation runs it.
func (s *State) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Reset drops every task's state.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tasks)
}

// Len returns the number of tasks with recorded state.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *State) put(id string, ts TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = ts
}
