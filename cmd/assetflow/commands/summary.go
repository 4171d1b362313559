package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/assetflow/internal/scheduler"
)

var titler = cases.Title(language.English)

// statusLabel turns "skipped-dependency-failed" into "Skipped Dependency Failed".
func statusLabel(s string) string {
	return titler.String(strings.ReplaceAll(s, "-", " "))
}

// printSummary writes the per-task table and the failure list of a run.
func printSummary(w io.Writer, result *scheduler.RunResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TASK\tSTATUS\tDURATION\tSIZE")
	for _, tr := range result.Tasks {
		duration, size := "-", "-"
		if tr.Status == scheduler.StatusSucceeded || tr.Status == scheduler.StatusFailed {
			duration = tr.Duration.Round(time.Millisecond).String()
		}
		if tr.Bytes > 0 {
			size = formatBytes(tr.Bytes)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tr.ID, statusLabel(string(tr.Status)), duration, size)
	}
	_ = tw.Flush()

	counts := result.Counts()
	var parts []string
	for _, s := range []scheduler.Status{
		scheduler.StatusSucceeded,
		scheduler.StatusFailed,
		scheduler.StatusSkippedUnchanged,
		scheduler.StatusSkippedDependencyFailed,
	} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(statusLabel(string(s)))))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "no tasks")
	}
	verdict := "Build finished"
	switch {
	case result.Canceled:
		verdict = "Build interrupted"
	case len(result.Failed()) > 0:
		verdict = "Build failed"
	}
	_, _ = fmt.Fprintf(w, "%s in %s: %s\n", verdict, result.Duration().Round(time.Millisecond), strings.Join(parts, ", "))

	for _, tr := range result.Failed() {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", tr.ID, tr.Message)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
