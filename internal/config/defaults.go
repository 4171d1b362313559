package config

import (
	"path/filepath"
	"runtime"
	"time"
)

const (
	DefaultConfigFile      = "assetflow.yaml"
	DefaultStateFile       = ".assetflow/state.json"
	DefaultDebounce        = 300 * time.Millisecond
	DefaultPollInterval    = 2 * time.Second
	DefaultMtimeResolution = time.Millisecond
	DefaultReloadPort      = 3000
	DefaultNATSSubject     = "assetflow.reload"
)

// Default returns the configuration every document is decoded on top of.
// Fields absent from the document keep these values.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Paths: PathsConfig{
			Src:  "src",
			Tmp:  ".tmp",
			Dest: "dist",
		},
		Build: BuildConfig{
			Fingerprint:     FingerprintMtime,
			MtimeResolution: DefaultMtimeResolution,
			StateFile:       DefaultStateFile,
		},
		Watch: WatchConfig{
			Debounce:     DefaultDebounce,
			PollFallback: true,
			PollInterval: DefaultPollInterval,
			Ignore:       []string{"**/.*", "**/*~", "**/*.swp", "**/*.swx", "**/#*#"},
		},
		Reload: ReloadConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    DefaultReloadPort,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

type categoryDefaults struct {
	dir       string
	inputs    []string
	exclude   []string
	destDir   string
	renderer  Renderer
	dependsOn []string
}

// Category defaults follow the classic front-end layout: src/{styles,scripts,views,images}.
var defaultsByCategory = map[Category]categoryDefaults{
	CategoryStyles: {
		dir:     "styles",
		inputs:  []string{"**/*.scss", "**/*.css"},
		destDir: "styles",
	},
	CategoryScripts: {
		dir:       "scripts",
		inputs:    []string{"**/*.js"},
		destDir:   "scripts",
		dependsOn: []string{string(CategoryLint)},
	},
	CategoryLint: {
		dir:    "scripts",
		inputs: []string{"**/*.js"},
	},
	CategoryTemplates: {
		dir:       "views",
		inputs:    []string{"**/*.ejs", "**/*.html", "**/*.md"},
		dependsOn: []string{string(CategoryStyles), string(CategoryScripts)},
	},
	CategoryImages: {
		dir:     "images",
		inputs:  []string{"**/*"},
		destDir: "images",
	},
	CategoryStatic: {
		inputs:  []string{"*"},
		exclude: []string{"*.ejs"},
	},
}

// applyDefaults fills derived values that depend on other fields.
func applyDefaults(cfg *Config) {
	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.Build.MtimeResolution <= 0 {
		cfg.Build.MtimeResolution = DefaultMtimeResolution
	}
	if cfg.Build.StateFile == "" {
		cfg.Build.StateFile = DefaultStateFile
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Watch.PollInterval <= 0 {
		cfg.Watch.PollInterval = DefaultPollInterval
	}
	if cfg.Reload.Port == 0 {
		cfg.Reload.Port = DefaultReloadPort
	}
	if cfg.Reload.NATSURL != "" && cfg.Reload.NATSSubject == "" {
		cfg.Reload.NATSSubject = DefaultNATSSubject
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	var defaulted []Category
	for _, c := range Categories() {
		if applyCategoryDefaults(cfg, c) {
			defaulted = append(defaulted, c)
		}
	}
	// Default edges to disabled categories are dropped; explicit ones are
	// left for the registry to reject.
	for _, c := range defaulted {
		a := cfg.Assets.Asset(c)
		kept := a.DependsOn[:0]
		for _, dep := range a.DependsOn {
			if target := cfg.Assets.Asset(Category(dep)); target != nil && !target.Disabled {
				kept = append(kept, dep)
			}
		}
		a.DependsOn = kept
	}
	for i := range cfg.Vendor {
		if len(cfg.Vendor[i].Inputs) == 0 {
			cfg.Vendor[i].Inputs = []string{"**/*"}
		}
	}
}

// applyCategoryDefaults reports whether the category's dependencies were defaulted.
func applyCategoryDefaults(cfg *Config, c Category) bool {
	a := cfg.Assets.Asset(c)
	d := defaultsByCategory[c]

	if a.Src == "" {
		a.Src = filepath.Join(cfg.Paths.Src, d.dir)
	}
	if a.Tmp == "" && c != CategoryLint {
		a.Tmp = filepath.Join(cfg.Paths.Tmp, d.dir)
	}
	if a.Dest == "" && c != CategoryLint {
		a.Dest = filepath.Join(cfg.Paths.Dest, d.destDir)
	}
	if len(a.Inputs) == 0 {
		a.Inputs = append([]string(nil), d.inputs...)
	}
	if a.Exclude == nil {
		a.Exclude = append([]string(nil), d.exclude...)
	}
	defaultedDeps := a.DependsOn == nil
	if defaultedDeps {
		a.DependsOn = append([]string{}, d.dependsOn...)
	}
	if a.Renderer == "" {
		if len(a.Command) > 0 {
			a.Renderer = RendererCommand
		} else {
			a.Renderer = RendererCopy
		}
	}
	// Linting has no built-in transform.
	if c == CategoryLint && len(a.Command) == 0 {
		a.Disabled = true
	}
	return defaultedDeps
}
