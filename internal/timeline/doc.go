// Package timeline models the chronological event log attached to every job
// and replays it into operational metrics.
//
// Logs are append-only. Callers may back-date events, so a log is not
// guaranteed to be ordered by timestamp; Compute sorts a copy before walking
// it and never mutates its input.
package timeline
