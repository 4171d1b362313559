package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exit codes returned by the assetflow CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitBuildFailure indicates at least one task failed in a one-shot build.
	ExitBuildFailure = 1

	// ExitConfigError indicates a configuration or graph error detected
	// before any task ran.
	ExitConfigError = 2
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if classified, ok := AsClassified(err); ok {
		switch classified.Category() {
		case CategoryConfig, CategoryValidation, CategoryGraph:
			return ExitConfigError
		default:
			return ExitBuildFailure
		}
	}

	return ExitBuildFailure
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return classified.Error()
	}

	switch classified.Category() {
	case CategoryConfig, CategoryValidation:
		return fmt.Sprintf("Configuration error: %s", describe(classified))
	case CategoryGraph:
		return fmt.Sprintf("Task graph error: %s", describe(classified))
	case CategoryTask:
		return fmt.Sprintf("Build failed: %s", classified.Message())
	case CategoryWatcher:
		return fmt.Sprintf("Watcher error: %s", describe(classified))
	case CategoryFileSystem, CategoryHistory, CategoryReload, CategoryRuntime:
		return fmt.Sprintf("Error: %s", describe(classified))
	default:
		return "Internal error occurred (use -v for details)"
	}
}

func describe(err *ClassifiedError) string {
	if err.Cause() != nil {
		return fmt.Sprintf("%s: %v", err.Message(), err.Cause())
	}
	return err.Message()
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(exitCode)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		attrs := []slog.Attr{
			slog.String("category", string(classified.Category())),
		}
		for k, v := range classified.Context() {
			attrs = append(attrs, slog.Any(k, v))
		}
		a.logger.LogAttrs(context.Background(), slogLevelFromSeverity(classified.Severity()), classified.Message(), attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
