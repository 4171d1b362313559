package commands

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"git.home.luguber.info/inful/assetflow/internal/config"
	"git.home.luguber.info/inful/assetflow/internal/metrics"
	"git.home.luguber.info/inful/assetflow/internal/reload"
	"git.home.luguber.info/inful/assetflow/internal/scheduler"
	"git.home.luguber.info/inful/assetflow/internal/server"
	"git.home.luguber.info/inful/assetflow/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Port     int  `short:"p" help:"Dev server port (overrides reload.port)"`
	NoServer bool `name:"no-server" help:"Do not start the dev server"`
	Poll     bool `help:"Use polling instead of native filesystem notifications"`
}

// Run executes the watch command. It returns when interrupted; task failures
// never end the session.
func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	logger := g.Logger
	p, err := newPipeline(cfg, scheduler.PolicyWatch, false, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	p.start(ctx)
	defer p.close()

	mapping := watch.NewMapping(p.registry)
	source, native, err := openSource(cfg, mapping, w.Poll)
	if err != nil {
		return err
	}

	var sinks []reload.Sink
	var srv *server.Server
	if cfg.Reload.Enabled && !w.NoServer {
		hub := reload.NewHub(p.recorder)
		sinks = append(sinks, hub)
		opts := []server.Option{server.WithHub(hub), server.WithLogger(logger)}
		if p.promRegistry != nil {
			opts = append(opts, server.WithMetrics(cfg.Metrics.Path, metrics.HTTPHandler(p.promRegistry)))
		}
		port := cfg.Reload.Port
		if w.Port > 0 {
			port = w.Port
		}
		srv = server.New(net.JoinHostPort(cfg.Reload.Host, strconv.Itoa(port)), cfg.Paths.Dest, opts...)
		if err := srv.Start(); err != nil {
			_ = source.Close()
			return err
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Dev server shutdown failed", "error", err)
			}
		}()
	}
	if cfg.Reload.NATSURL != "" {
		sink, err := reload.NewNATSSink(cfg.Reload.NATSURL, cfg.Reload.NATSSubject)
		if err != nil {
			logger.Warn("NATS reload channel unavailable", "error", err)
		} else {
			sinks = append(sinks, sink)
			defer func() { _ = sink.Close() }()
		}
	}
	notifier := reload.NewNotifier(sinks,
		reload.WithOutputRoot(cfg.Paths.Dest),
		reload.WithRecorder(p.recorder),
		reload.WithLogger(logger))

	opts := []watch.SessionOption{
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithInitialBuild(true),
		watch.WithBus(p.bus),
		watch.WithSessionRecorder(p.recorder),
		watch.WithSessionLogger(logger),
		watch.OnResult(func(ctx context.Context, result *scheduler.RunResult) {
			printSummary(g.out(), result)
			notifier.Notify(ctx, result)
		}),
	}
	if native && cfg.Watch.PollFallback {
		opts = append(opts, watch.WithFallback(func() (watch.Source, error) {
			poller, err := watch.NewPoller(mapping.Roots(), cfg.Watch.Ignore, cfg.Watch.PollInterval)
			if err != nil {
				return nil, err
			}
			return poller, nil
		}))
	}

	session := watch.NewSession(p.scheduler, mapping, source, opts...)
	return session.Run(ctx)
}

// openSource prefers native notifications and degrades to polling when they
// are unavailable and polling is allowed. The boolean reports whether the
// returned source is native.
func openSource(cfg *config.Config, mapping *watch.Mapping, forcePoll bool) (watch.Source, bool, error) {
	roots := mapping.Roots()
	if !forcePoll {
		w, err := watch.NewWatcher(roots, cfg.Watch.Ignore)
		if err == nil {
			return w, true, nil
		}
		if !cfg.Watch.PollFallback {
			return nil, false, err
		}
		slog.Warn("Native file watching unavailable, polling instead", "error", err)
	}
	p, err := watch.NewPoller(roots, cfg.Watch.Ignore, cfg.Watch.PollInterval)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}
