package commands

import (
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/assetflow/internal/assets"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/graph"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Format string `short:"f" help:"Output format: text, mermaid, dot, json" default:"text" enum:"text,mermaid,dot,json"`
	Output string `short:"o" help:"Output file path (optional, prints to stdout if not specified)"`
}

// Run prints the resolved level ordering without executing anything.
func (c *GraphCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	reg := task.NewRegistry()
	if err := assets.Register(reg, cfg); err != nil {
		return err
	}
	resolved, err := graph.Resolve(reg.Tasks())
	if err != nil {
		return err
	}
	output, err := graph.Render(resolved, graph.Format(c.Format))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "failed to render graph").Build()
	}

	if c.Output != "" {
		if err := os.WriteFile(c.Output, []byte(output), 0o644); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write output file").
				WithContext("path", c.Output).
				Build()
		}
		slog.Info("Task graph written", "file", c.Output, "format", c.Format)
		return nil
	}
	_, _ = fmt.Fprint(g.out(), output)
	return nil
}
