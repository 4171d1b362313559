package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
)

// envFiles are loaded in order before the configuration document is read.
// Existing process environment variables are never overridden.
var envFiles = []string{".env", ".env.local"}

// Load reads, validates and normalizes the configuration document at path.
// All failures are classified as configuration errors.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration").
			Fatal().
			WithContext("path", path).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			return nil, c.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document. Environment references such as
// ${ASSET_ROOT} are expanded before decoding.
func Parse(data []byte) (*Config, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	if err := ValidateDocument(expanded); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "configuration does not match schema").
			Fatal().
			Build()
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	// An empty document decodes to the defaults.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode configuration").
			Fatal().
			Build()
	}

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	env, err := NormalizeEnvironment(string(cfg.Environment))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid environment").Fatal().Build()
	}
	cfg.Environment = env

	mode, err := fingerprintNormalizer.normalize(string(cfg.Build.Fingerprint))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid build.fingerprint").Fatal().Build()
	}
	cfg.Build.Fingerprint = mode

	for _, c := range Categories() {
		a := cfg.Assets.Asset(c)
		r, err := rendererNormalizer.normalize(string(a.Renderer))
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid renderer").
				Fatal().
				WithContext("category", string(c)).
				Build()
		}
		a.Renderer = r
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	cfg.Paths.Src = filepath.Clean(cfg.Paths.Src)
	cfg.Paths.Tmp = filepath.Clean(cfg.Paths.Tmp)
	cfg.Paths.Dest = filepath.Clean(cfg.Paths.Dest)
	return nil
}

func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load environment file", "path", f, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", f)
	}
}

// Init writes an example configuration document.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create config directory").Build()
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

const exampleConfig = `# assetflow configuration
environment: development

paths:
  src: src
  tmp: .tmp
  dest: dist

assets:
  styles:
    command: ["sass", "--no-source-map", "{src}:{dest}"]
  scripts:
    command: ["esbuild", "{inputs}", "--bundle", "--outdir={dest}"]
  lint:
    command: ["eslint", "{inputs}"]
  templates:
    inputs: ["**/*.md", "**/*.html"]
    renderer: markdown
  images: {}
  static:
    exclude: ["*.ejs"]

vendor: []

build:
  fingerprint: mtime
  mtime_resolution: 1ms
  state_file: .assetflow/state.json

watch:
  debounce: 300ms
  poll_fallback: true
  poll_interval: 2s

reload:
  enabled: true
  port: 3000

metrics:
  enabled: false
`
