package config

import (
	"fmt"
	"sort"
	"strings"
)

// normalizer maps loosely written strings onto an enum type.
type normalizer[T comparable] struct {
	values       map[string]T
	defaultValue T
	validKeys    []string
}

func newNormalizer[T comparable](values map[string]T, defaultValue T) *normalizer[T] {
	n := &normalizer[T]{values: make(map[string]T, len(values)), defaultValue: defaultValue}
	for k, v := range values {
		key := strings.ToLower(strings.TrimSpace(k))
		n.values[key] = v
		n.validKeys = append(n.validKeys, key)
	}
	sort.Strings(n.validKeys)
	return n
}

// normalize returns the default for blank input and an error for unknown input.
func (n *normalizer[T]) normalize(raw string) (T, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return n.defaultValue, nil
	}
	if v, ok := n.values[cleaned]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// Environment is the build environment exposed to every task.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

var environmentNormalizer = newNormalizer(map[string]Environment{
	"development": EnvDevelopment,
	"dev":         EnvDevelopment,
	"production":  EnvProduction,
	"prod":        EnvProduction,
}, EnvDevelopment)

// NormalizeEnvironment maps aliases such as "prod" to canonical environment names.
func NormalizeEnvironment(raw string) (Environment, error) {
	return environmentNormalizer.normalize(raw)
}

var fingerprintNormalizer = newNormalizer(map[string]FingerprintMode{
	"mtime":   FingerprintMtime,
	"modtime": FingerprintMtime,
	"content": FingerprintContent,
	"hash":    FingerprintContent,
}, FingerprintMtime)

var rendererNormalizer = newNormalizer(map[string]Renderer{
	"copy":     RendererCopy,
	"command":  RendererCommand,
	"markdown": RendererMarkdown,
}, "")

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = newNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// NormalizeLogLevel returns the canonical level, falling back to info.
func NormalizeLogLevel(raw string) LogLevel {
	lvl, err := logLevelNormalizer.normalize(raw)
	if err != nil {
		return LogLevelInfo
	}
	return lvl
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = newNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// NormalizeLogFormat returns the canonical format, falling back to text.
func NormalizeLogFormat(raw string) LogFormat {
	f, err := logFormatNormalizer.normalize(raw)
	if err != nil {
		return LogFormatText
	}
	return f
}
