package commands

import (
	"fmt"

	"git.home.luguber.info/inful/assetflow/internal/assets"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

// Run removes generated output. It is always safe to run before build.
func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	removed, err := assets.Clean(cfg)
	for _, p := range removed {
		_, _ = fmt.Fprintf(g.out(), "removed %s\n", p)
	}
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		_, _ = fmt.Fprintln(g.out(), "nothing to clean")
	}
	return nil
}
