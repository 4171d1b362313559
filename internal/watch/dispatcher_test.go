package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

func TestDispatcher_QueuesOneMergedRequest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	var mu sync.Mutex
	var seen []scheduler.Request

	d := NewDispatcher(func(_ context.Context, req scheduler.Request) {
		mu.Lock()
		seen = append(seen, req)
		first := len(seen) == 1
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go d.Run(ctx)

	d.Submit(scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"styles"}})
	<-started
	assert.True(t, d.Busy())

	d.Submit(scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"scripts"}, Paths: []string{"a.js"}})
	d.Submit(scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"templates"}, Paths: []string{"index.ejs"}})
	d.Submit(scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"scripts"}, Paths: []string{"b.js"}})
	close(release)

	d.WaitRuns(2)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"scripts", "templates"}, seen[1].Tasks)
	assert.Equal(t, []string{"a.js", "b.js", "index.ejs"}, seen[1].Paths)
	assert.Equal(t, 2, d.Runs())
}

func TestMerge(t *testing.T) {
	partial := scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"b", "a"}, Reason: "change"}
	other := scheduler.Request{Mode: scheduler.ModePartial, Tasks: []string{"a", "c"}}

	merged := Merge(partial, other)
	assert.Equal(t, scheduler.ModePartial, merged.Mode)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Tasks)
	assert.Equal(t, "change", merged.Reason)

	full := Merge(partial, scheduler.FullRequest("initial build"))
	assert.Equal(t, scheduler.ModeFull, full.Mode)
	assert.Empty(t, full.Tasks)
	assert.Equal(t, "initial build", full.Reason)
}
