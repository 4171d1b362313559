// Package errors provides foundational, type-safe error primitives used across assetflow.
//
// This package contains classified error types and helpers for robust error handling,
// including a fluent builder API for constructing ClassifiedError values with context.
//
// Key features:
//   - ErrorCategory: Broad error classification (config, graph, task, watcher, etc.)
//   - ErrorSeverity: Impact level (fatal, error, warning, info)
//   - ClassifiedError: Structured error with category, severity, and context
//   - ErrorBuilder: Fluent API for creating classified errors
//   - CLIErrorAdapter: exit code selection and presentation for the CLI
//
// Example usage:
//
//	err := errors.GraphError("dependency cycle").
//		WithContext("cycle", []string{"a", "b", "a"}).
//		WithCause(cycleErr).
//		Build()
package errors
