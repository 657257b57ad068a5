package jobs

import (
	"context"

	"pressline/internal/timeline"
)

// Store is the record store capability the service depends on.
//
// GetJob returns nil, nil when no job matches. InsertJob reports a duplicate
// work-order code with store.ErrDuplicateKey. UpdateJob persists every scalar
// attribute of job and appends the given events to the stored timeline; it
// must never rewrite events that are already stored. The write is conditional
// on the stored revision still equalling job.Revision and advances it;
// otherwise it fails with store.ErrStale and changes nothing. Any other write
// to a stored job, such as a priority renumber, must advance the revision too.
type Store interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	FindJobs(ctx context.Context, filter Filter) ([]*Job, error)
	InsertJob(ctx context.Context, job *Job) error
	UpdateJob(ctx context.Context, job *Job, appended []timeline.Event) error
	DeleteJob(ctx context.Context, id string) (bool, error)
	MaxQueuedPriority(ctx context.Context, press string) (int, error)
}

// UserResolver resolves user identifiers to display data for read results.
// Unknown identifiers are omitted from the returned map.
type UserResolver interface {
	ResolveUsers(ctx context.Context, ids []string) (map[string]UserRef, error)
}

// Reassigner renumbers the queues of the given presses.
type Reassigner interface {
	Reassign(ctx context.Context, presses ...string) error
}

// Recorder observes completed mutations.
type Recorder interface {
	ObserveMutation(op string, err error)
}
