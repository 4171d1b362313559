package commands

import (
	"context"
	"log/slog"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetflow/internal/assets"
	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/events"
	"git.home.luguber.info/inful/assetflow/internal/graph"
	"git.home.luguber.info/inful/assetflow/internal/history"
	"git.home.luguber.info/inful/assetflow/internal/incremental"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// pipeline is the wired orchestrator shared by build and watch.
type pipeline struct {
	cfg       *config.Config
	registry  *task.Registry
	graph     *graph.Graph
	scheduler *scheduler.Scheduler
	bus       *events.Bus
	recorder  metrics.Recorder
	// promRegistry is set when metrics are enabled.
	promRegistry *prom.Registry

	history *history.Store
	journal *history.Journal
	stop    context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// newPipeline registers the configured tasks, resolves the graph and loads
// build state. Nothing executes yet; configuration and graph errors surface
// here.
func newPipeline(cfg *config.Config, policy scheduler.Policy, fresh bool, logger *slog.Logger) (*pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reg := task.NewRegistry()
	if err := assets.Register(reg, cfg); err != nil {
		return nil, err
	}
	g, err := graph.Resolve(reg.Tasks())
	if err != nil {
		return nil, err
	}

	state := incremental.NewState()
	if !fresh {
		state = incremental.LoadState(cfg.Build.StateFile)
	}
	filter := incremental.NewFilter(state, incremental.Options{
		Mode:       cfg.Build.Fingerprint,
		Resolution: cfg.Build.MtimeResolution,
	})

	p := &pipeline{cfg: cfg, registry: reg, graph: g, bus: events.NewBus(), logger: logger}
	p.recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		p.promRegistry = prom.NewRegistry()
		p.recorder = metrics.NewPrometheusRecorder(p.promRegistry)
	}

	if cfg.Build.HistoryDB != "" {
		store, err := history.Open(cfg.Build.HistoryDB)
		if err != nil {
			logger.Warn("Run history disabled", "error", err)
		} else {
			p.history = store
			p.journal = history.NewJournal(store, p.bus, logger)
		}
	}

	p.scheduler = scheduler.New(reg, g, filter,
		scheduler.WithConfig(cfg),
		scheduler.WithConcurrency(cfg.Build.Concurrency),
		scheduler.WithPolicy(policy),
		scheduler.WithLogger(logger),
		scheduler.WithRecorder(p.recorder),
		scheduler.WithEventBus(p.bus),
		scheduler.WithStateFile(cfg.Build.StateFile),
	)
	logger.Debug("Task graph resolved", "tasks", reg.Len(), "levels", len(g.Levels()))
	return p, nil
}

// start launches background consumers.
func (p *pipeline) start(ctx context.Context) {
	if p.journal == nil {
		return
	}
	jctx, cancel := context.WithCancel(ctx)
	p.stop = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.journal.Run(jctx)
	}()
}

// close stops background consumers after the last run has finished.
func (p *pipeline) close() {
	if p.stop != nil {
		p.stop()
	}
	p.wg.Wait()
	p.bus.Close()
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			p.logger.Warn("Failed to close history database", "error", err)
		}
	}
}
