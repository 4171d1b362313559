package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

// Validate checks semantic constraints the schema cannot express.
// Dependency targets are checked later by the task registry, which also
// knows about vendor tasks.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ferrors.ConfigError("configuration is nil").Build()
	}
	if cfg.Build.Concurrency < 1 {
		return invalid("build.concurrency", fmt.Sprintf("must be at least 1, got %d", cfg.Build.Concurrency))
	}
	if cfg.Build.MtimeResolution <= 0 {
		return invalid("build.mtime_resolution", "must be positive")
	}
	if cfg.Watch.Debounce < 0 {
		return invalid("watch.debounce", "must not be negative")
	}
	if cfg.Reload.Port < 1 || cfg.Reload.Port > 65535 {
		return invalid("reload.port", fmt.Sprintf("out of range: %d", cfg.Reload.Port))
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return invalid("metrics.path", "must start with /")
	}
	if samePath(cfg.Paths.Src, cfg.Paths.Dest) {
		return invalid("paths.dest", "must differ from paths.src")
	}
	if samePath(cfg.Paths.Src, cfg.Paths.Tmp) {
		return invalid("paths.tmp", "must differ from paths.src")
	}

	for _, c := range Categories() {
		a := cfg.Assets.Asset(c)
		if a.Disabled {
			continue
		}
		field := "assets." + string(c)
		if a.Renderer == RendererCommand && len(a.Command) == 0 {
			return invalid(field+".command", "renderer \"command\" requires a command")
		}
		if err := validatePatterns(field+".inputs", a.Inputs); err != nil {
			return err
		}
		if err := validatePatterns(field+".exclude", a.Exclude); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(cfg.Vendor))
	for i, v := range cfg.Vendor {
		field := fmt.Sprintf("vendor[%d]", i)
		if v.Name == "" {
			return invalid(field+".name", "must not be empty")
		}
		if _, dup := seen[v.Name]; dup {
			return invalid(field+".name", fmt.Sprintf("duplicate vendor name %q", v.Name))
		}
		seen[v.Name] = struct{}{}
		if err := validatePatterns(field+".inputs", v.Inputs); err != nil {
			return err
		}
	}

	if err := validatePatterns("watch.ignore", cfg.Watch.Ignore); err != nil {
		return err
	}
	return nil
}

func validatePatterns(field string, patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return invalid(field, fmt.Sprintf("invalid glob %q", p))
		}
	}
	return nil
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func invalid(field, msg string) error {
	return ferrors.ValidationError(msg).WithContext("field", field).Build()
}
