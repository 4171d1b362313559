// Package metrics provides observability hooks for task runs, reloads and
// watcher activity.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks at call sites:
//
//	sched := scheduler.New(reg, g, filter, scheduler.WithRecorder(metrics.NoopRecorder{}))
//
// When metrics are enabled the CLI swaps in a PrometheusRecorder and mounts
// HTTPHandler on the development server.
package metrics
