// Package daemon coordinates the long-running pressline process.
//
// It wires configuration, the record store stack, the metrics registry, and
// the HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances on one data directory. Startup runs preflight checks and
// a queue sweep that renumbers any press whose priorities are not dense.
//
// Keep orchestration logic here: job rules live in internal/jobs and queue
// numbering in internal/priority.
package daemon
