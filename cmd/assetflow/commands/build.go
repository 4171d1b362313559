package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Force bool     `short:"f" help:"Ignore saved build state and run every task"`
	Tasks []string `arg:"" optional:"" help:"Run only these tasks and the tasks that depend on them"`
}

// Run executes the build command.
func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg, scheduler.PolicyOneShot, b.Force, g.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	p.start(ctx)
	defer p.close()

	req := scheduler.FullRequest("build")
	if len(b.Tasks) > 0 {
		req = scheduler.Request{Mode: scheduler.ModePartial, Tasks: b.Tasks, Reason: "build"}
	}
	result, err := p.scheduler.Run(ctx, req)
	if result != nil {
		printSummary(g.out(), result)
	}
	return err
}
