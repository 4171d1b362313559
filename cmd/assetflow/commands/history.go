package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to list" default:"20"`
	RunID string `name:"run" help:"Show the tasks of one run"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

// Run lists recent runs recorded in build.history_db.
func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	if cfg.Build.HistoryDB == "" {
		return ferrors.ConfigError("run history is not enabled (set build.history_db)").Build()
	}
	store, err := history.Open(cfg.Build.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	var runs []history.RunSummary
	if h.RunID != "" {
		run, err := store.Run(ctx, h.RunID)
		if err != nil {
			return err
		}
		runs = []history.RunSummary{run}
	} else if runs, err = store.Recent(ctx, h.Limit); err != nil {
		return err
	}

	out := g.out()
	if h.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if h.RunID != "" {
		_, _ = fmt.Fprintln(tw, "TASK\tKIND\tSTATUS\tDURATION\tMESSAGE")
		for _, t := range runs[0].Tasks {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				t.Task, t.Kind, statusLabel(t.Status), t.Duration.Round(time.Millisecond), t.Message)
		}
		return tw.Flush()
	}
	_, _ = fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tSTATUS\tDURATION\tTASKS\tFAILED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			r.RunID, r.StartedAt.Local().Format(time.DateTime), r.Mode, statusLabel(r.Status),
			r.Duration.Round(time.Millisecond), len(r.Tasks), len(r.Failed()))
	}
	return tw.Flush()
}
