package config

import "time"

// Config is the declarative build configuration. It is loaded once at startup
// and must be treated as read-only afterwards; tasks receive it through their
// execution context.
type Config struct {
	Environment Environment   `yaml:"environment"`
	Paths       PathsConfig   `yaml:"paths"`
	Assets      AssetsConfig  `yaml:"assets"`
	Vendor      []VendorAsset `yaml:"vendor,omitempty"`
	Build       BuildConfig   `yaml:"build"`
	Watch       WatchConfig   `yaml:"watch"`
	Reload      ReloadConfig  `yaml:"reload"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`
}

// PathsConfig holds the root source, intermediate and destination directories.
type PathsConfig struct {
	Src  string `yaml:"src"`
	Tmp  string `yaml:"tmp"`
	Dest string `yaml:"dest"`
}

// AssetsConfig holds one entry per fixed asset category.
type AssetsConfig struct {
	Styles    AssetConfig `yaml:"styles"`
	Scripts   AssetConfig `yaml:"scripts"`
	Lint      AssetConfig `yaml:"lint"`
	Templates AssetConfig `yaml:"templates"`
	Images    AssetConfig `yaml:"images"`
	Static    AssetConfig `yaml:"static"`
}

// Category names an asset category. The set is fixed.
type Category string

const (
	CategoryStyles    Category = "styles"
	CategoryScripts   Category = "scripts"
	CategoryLint      Category = "lint"
	CategoryTemplates Category = "templates"
	CategoryImages    Category = "images"
	CategoryStatic    Category = "static"
)

// Categories returns every category in registration order.
func Categories() []Category {
	return []Category{CategoryLint, CategoryStyles, CategoryScripts, CategoryTemplates, CategoryImages, CategoryStatic}
}

// Asset returns the configuration entry for a category.
func (a *AssetsConfig) Asset(c Category) *AssetConfig {
	switch c {
	case CategoryStyles:
		return &a.Styles
	case CategoryScripts:
		return &a.Scripts
	case CategoryLint:
		return &a.Lint
	case CategoryTemplates:
		return &a.Templates
	case CategoryImages:
		return &a.Images
	case CategoryStatic:
		return &a.Static
	default:
		return nil
	}
}

// Renderer selects the built-in action for a category.
type Renderer string

const (
	RendererCopy     Renderer = "copy"
	RendererCommand  Renderer = "command"
	RendererMarkdown Renderer = "markdown"
)

// AssetConfig describes one asset category: where its sources live, which
// files are inputs, where outputs go and which transform produces them.
type AssetConfig struct {
	Src      string   `yaml:"src,omitempty"`
	Tmp      string   `yaml:"tmp,omitempty"`
	Dest     string   `yaml:"dest,omitempty"`
	Inputs   []string `yaml:"inputs,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Command  []string `yaml:"command,omitempty"`
	Renderer Renderer `yaml:"renderer,omitempty"`
	// DependsOn overrides the category's default dependencies. An explicit
	// empty list removes them.
	DependsOn []string `yaml:"depends_on,omitempty"`
	Disabled  bool     `yaml:"disabled,omitempty"`
}

// VendorAsset is an external asset location copied verbatim into the output.
type VendorAsset struct {
	Name   string   `yaml:"name"`
	Src    string   `yaml:"src"`
	Dest   string   `yaml:"dest"`
	Inputs []string `yaml:"inputs,omitempty"`
}

// FingerprintMode selects how the incremental filter detects changed inputs.
type FingerprintMode string

const (
	FingerprintMtime   FingerprintMode = "mtime"
	FingerprintContent FingerprintMode = "content"
)

// BuildConfig controls scheduling and incremental state.
type BuildConfig struct {
	Concurrency     int             `yaml:"concurrency"`
	Fingerprint     FingerprintMode `yaml:"fingerprint"`
	MtimeResolution time.Duration   `yaml:"mtime_resolution"`
	StateFile       string          `yaml:"state_file"`
	HistoryDB       string          `yaml:"history_db,omitempty"`
}

// WatchConfig controls the watch session.
type WatchConfig struct {
	Debounce     time.Duration `yaml:"debounce"`
	Ignore       []string      `yaml:"ignore,omitempty"`
	PollFallback bool          `yaml:"poll_fallback"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ReloadConfig controls the development server and reload channels.
type ReloadConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint on the development server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}
