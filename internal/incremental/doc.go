// Package incremental decides whether a task needs to run by comparing the
// fingerprints of its current input files with those recorded after its last
// successful run.
//
// Build state is keyed by task id. The filter only reads state while deciding;
// new fingerprints are committed with Record by the single goroutine that owns
// the run, after the task's level has completed.
package incremental
