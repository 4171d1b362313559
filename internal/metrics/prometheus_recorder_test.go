package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveTaskDuration("styles", 150*time.Millisecond)
	pr.IncTaskResult("styles", TaskSucceeded)
	pr.IncTaskResult("scripts", TaskFailed)
	pr.ObserveRunDuration("full", 500*time.Millisecond)
	pr.IncRunOutcome("full", RunFailed)
	pr.IncReloadBroadcast("style")
	pr.IncWatchEvents(3)
	pr.SetReloadClients(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	assert.InDelta(t, 2, values["assetflow_task_results_total"], 0)
	assert.InDelta(t, 3, values["assetflow_watch_events_total"], 0)
	assert.InDelta(t, 2, values["assetflow_reload_clients"], 0)
	assert.InDelta(t, 1, values["assetflow_reload_broadcasts_total"], 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncTaskResult("styles", TaskSucceeded)
		pr.IncWatchEvents(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("partial", RunSucceeded)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "assetflow_run_outcomes_total")
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
