package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetflow/internal/config"
)

// Environment variables that override logging settings from the flags and
// the configuration document.
const (
	EnvLogLevel  = "ASSETFLOW_LOG_LEVEL"
	EnvLogFormat = "ASSETFLOW_LOG_FORMAT"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Stdout receives user-facing output. Nil means os.Stdout.
	Stdout io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"assetflow.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Run the task graph once and exit"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild on changes and reload connected browsers"`
	Clean   CleanCmd   `cmd:"" help:"Remove generated output and build state"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Graph   GraphCmd   `cmd:"" help:"Print the task graph (text, mermaid, dot, json)"`
	History HistoryCmd `cmd:"" help:"List recent runs from the history database"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(os.Stderr, c.Verbose, config.LoggingConfig{}))
	return nil
}

// newLogger builds the process logger. The verbose flag wins over the
// environment, which wins over the configuration document.
func newLogger(w io.Writer, verbose bool, configured config.LoggingConfig) *slog.Logger {
	level := config.NormalizeLogLevel(string(configured.Level))
	if v := os.Getenv(EnvLogLevel); v != "" {
		level = config.NormalizeLogLevel(v)
	}
	if verbose {
		level = config.LogLevelDebug
	}
	opts := &slog.HandlerOptions{Level: slogLevel(level)}

	format := config.NormalizeLogFormat(string(configured.Format))
	if v := os.Getenv(EnvLogFormat); v != "" {
		format = config.NormalizeLogFormat(v)
	}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads the configuration and re-creates the logger from its
// logging section.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stderr, root.Verbose, cfg.Logging)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}
