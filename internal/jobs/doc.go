// Package jobs owns the job record and every write made to it.
//
// Service is the only component allowed to mutate a job. Each mutation
// records an audit diff on the timeline, recomputes the derived metrics from
// the full timeline, persists the result, and asks the priority reassigner to
// renumber whichever press queues the change touched. Stores and the user
// directory are consumed through the small interfaces declared in store.go.
package jobs
