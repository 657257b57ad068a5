package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"pressline/internal/logging"
	"pressline/internal/store"
	"pressline/internal/timeline"
)

// Options wires a Service to its collaborators.
type Options struct {
	Store      Store
	Users      UserResolver
	Reassigner Reassigner
	Recorder   Recorder
	Logger     *slog.Logger
	// Clock overrides time.Now for audit timestamps and metric replays.
	Clock func() time.Time
	// ReassignOnStatusChange adds the job's press to the reassignment set
	// whenever an update changes its status.
	ReassignOnStatusChange bool
}

// Service applies every create, update, timeline append, and delete.
type Service struct {
	store      Store
	users      UserResolver
	reassigner Reassigner
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time

	reassignOnStatusChange bool
}

// CreateInput describes a new job.
type CreateInput struct {
	OT              string
	Client          string
	JobType         string
	QuantityPlanned int
	Comments        string
	Pantone         bool
	Barniz          bool
	Is4x0           bool
	Is4x4           bool
	Status          Status
	Press           string
	// Priority is a placement hint. When nil the job goes to the back of its
	// press queue.
	Priority *int
}

// EventInput is an operator-supplied timeline entry. The timestamp is kept
// as given so events may be back-dated.
type EventInput struct {
	Timestamp time.Time
	Type      timeline.EventType
	Details   map[string]any
}

// NewService validates options and returns a ready Service.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("jobs service requires a store")
	}
	if opts.Reassigner == nil {
		return nil, errors.New("jobs service requires a reassigner")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:                  opts.Store,
		users:                  opts.Users,
		reassigner:             opts.Reassigner,
		recorder:               opts.Recorder,
		logger:                 logging.NewComponentLogger(opts.Logger, "jobs"),
		now:                    func() time.Time { return clock().UTC() },
		reassignOnStatusChange: opts.ReassignOnStatusChange,
	}, nil
}

// Create persists a new queued job, records its creation, and renumbers its
// press queue.
func (s *Service) Create(ctx context.Context, in CreateInput, actor Actor) (view *View, err error) {
	const op = "create job"
	defer func() { s.observe("create", err) }()

	in.OT = strings.TrimSpace(in.OT)
	in.Client = strings.TrimSpace(in.Client)
	in.JobType = strings.TrimSpace(in.JobType)
	in.Press = strings.TrimSpace(in.Press)
	switch {
	case in.OT == "":
		return nil, invalid(op, "ot is required")
	case in.Client == "":
		return nil, invalid(op, "client is required")
	case in.JobType == "":
		return nil, invalid(op, "jobType is required")
	case in.QuantityPlanned < 0:
		return nil, invalid(op, "quantityPlanned must not be negative")
	}
	status := in.Status
	if status == "" {
		status = StatusQueued
	}
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, invalid(op, "unknown status %q", status)
	}

	priority := 0
	if in.Priority != nil {
		if *in.Priority < 1 {
			return nil, invalid(op, "priority must be at least 1")
		}
		priority = *in.Priority
	} else {
		highest, err := s.store.MaxQueuedPriority(ctx, in.Press)
		if err != nil {
			return nil, internal(op, fmt.Errorf("load queue tail: %w", err))
		}
		priority = highest + 1
	}

	now := s.now()
	job := &Job{
		ID:              uuid.NewString(),
		OT:              in.OT,
		Client:          in.Client,
		JobType:         in.JobType,
		QuantityPlanned: in.QuantityPlanned,
		Comments:        in.Comments,
		Pantone:         in.Pantone,
		Barniz:          in.Barniz,
		Is4x0:           in.Is4x0,
		Is4x4:           in.Is4x4,
		Status:          status,
		Press:           in.Press,
		Priority:        priority,
		CreatedBy:       actor.UserID,
		Timeline:        []timeline.Event{creationEvent(actor, now)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	job.recompute(now)

	if err := s.store.InsertJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, conflict(op, "OT %q already exists", job.OT)
		}
		return nil, internal(op, err)
	}

	s.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOT, job.OT),
		logging.String(logging.FieldPress, job.Press),
		logging.Int("priority", job.Priority),
		logging.String(logging.FieldUserID, actor.UserID),
	)

	if err := s.reassign(ctx, op, job.Press); err != nil {
		return nil, err
	}
	return s.Get(ctx, job.ID)
}

// Get returns a materialized job.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	const op = "get job"
	job, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	views, err := s.materialize(ctx, []*Job{job})
	if err != nil {
		return nil, internal(op, err)
	}
	return views[0], nil
}

// List returns jobs matching filter ordered by ascending priority.
func (s *Service) List(ctx context.Context, filter Filter) ([]*View, error) {
	const op = "list jobs"
	if filter.Status != "" {
		status, ok := ParseStatus(string(filter.Status))
		if !ok {
			return nil, invalid(op, "unknown status %q", filter.Status)
		}
		filter.Status = status
	}
	filter.Press = strings.TrimSpace(filter.Press)
	found, err := s.store.FindJobs(ctx, filter)
	if err != nil {
		return nil, internal(op, err)
	}
	views, err := s.materialize(ctx, found)
	if err != nil {
		return nil, internal(op, err)
	}
	return views, nil
}

// Update applies a partial change on behalf of actor.
func (s *Service) Update(ctx context.Context, id string, changes Changes, actor Actor) (view *View, err error) {
	const op = "update job"
	defer func() { s.observe("update", err) }()

	var (
		before, job *Job
		diff        map[string]FieldChange
		appended    []timeline.Event
	)
	err = s.retryStale(op, id, func() error {
		var err error
		if job, err = s.load(ctx, op, id); err != nil {
			return err
		}
		if !job.EditableBy(actor) {
			return forbidden(op)
		}
		if err := s.validateChanges(op, job, &changes, actor); err != nil {
			return err
		}

		before = job.Clone()
		diff = Diff(before, changes)
		appended = changes.Apply(job)

		now := s.now()
		if len(diff) > 0 {
			edit := editEvent(actor, diff, now)
			job.Timeline = append(job.Timeline, edit)
			appended = append(appended, edit)
		}
		job.recompute(now)
		job.UpdatedAt = now
		return s.persist(ctx, op, job, appended)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("job updated",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOT, job.OT),
		logging.Any("changed", ChangedFields(diff)),
		logging.Int("appended_events", len(appended)),
		logging.String(logging.FieldUserID, actor.UserID),
	)

	if err := s.reassign(ctx, op, s.affectedPresses(before, job, diff)...); err != nil {
		return nil, err
	}
	return s.Get(ctx, job.ID)
}

// AddTimelineEvent appends an operator event and refreshes the metrics. It
// never touches press queues.
func (s *Service) AddTimelineEvent(ctx context.Context, id string, in EventInput, actor Actor) (view *View, err error) {
	const op = "add timeline event"
	defer func() { s.observe("timeline", err) }()

	if !timeline.IsOperatorType(in.Type) {
		return nil, invalid(op, "event type %q cannot be added by operators", in.Type)
	}
	if in.Timestamp.IsZero() {
		return nil, invalid(op, "timestamp is required")
	}
	evt := timeline.Event{
		UserID:    actor.UserID,
		Timestamp: in.Timestamp.UTC(),
		Type:      in.Type,
		Details:   in.Details,
	}
	var job *Job
	err = s.retryStale(op, id, func() error {
		var err error
		if job, err = s.load(ctx, op, id); err != nil {
			return err
		}
		job.Timeline = append(job.Timeline, evt)
		now := s.now()
		job.recompute(now)
		job.UpdatedAt = now
		return s.persist(ctx, op, job, []timeline.Event{evt})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("timeline event added",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("event_type", string(evt.Type)),
		logging.Float64("total_setup_time", job.TotalSetupTime),
		logging.Float64("total_pause_time", job.TotalPauseTime),
		logging.String(logging.FieldUserID, actor.UserID),
	)
	return s.Get(ctx, job.ID)
}

// Remove deletes a job and closes the gap it leaves in its press queue.
func (s *Service) Remove(ctx context.Context, id string, actor Actor) (view *View, err error) {
	const op = "delete job"
	defer func() { s.observe("delete", err) }()

	job, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !job.EditableBy(actor) {
		return nil, forbidden(op)
	}
	views, err := s.materialize(ctx, []*Job{job})
	if err != nil {
		return nil, internal(op, err)
	}

	removed, err := s.store.DeleteJob(ctx, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if !removed {
		return nil, notFound(op, id)
	}

	s.logger.Info("job deleted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOT, job.OT),
		logging.String(logging.FieldPress, job.Press),
		logging.String(logging.FieldUserID, actor.UserID),
	)

	if err := s.reassign(ctx, op, job.Press); err != nil {
		return nil, err
	}
	return views[0], nil
}

// staleAttempts bounds how often a read-modify-write cycle is replayed after
// losing a race with another writer on the same job.
const staleAttempts = 3

func (s *Service) retryStale(op, id string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, store.ErrStale) {
			return err
		}
		if attempt == staleAttempts {
			return &Error{Kind: KindTransient, Op: op, Msg: "job changed concurrently; retry the request", Err: err}
		}
		s.logger.Debug("job changed during update; replaying",
			logging.String(logging.FieldJobID, id),
			logging.Int("attempt", attempt),
		)
	}
}

func (s *Service) persist(ctx context.Context, op string, job *Job, appended []timeline.Event) error {
	err := s.store.UpdateJob(ctx, job, appended)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStale):
		return err
	case errors.Is(err, store.ErrNotFound):
		return notFound(op, job.ID)
	default:
		return internal(op, err)
	}
}

func (s *Service) load(ctx context.Context, op, id string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid(op, "job id is required")
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, internal(op, err)
	}
	if job == nil {
		return nil, notFound(op, id)
	}
	return job, nil
}

func (s *Service) validateChanges(op string, job *Job, c *Changes, actor Actor) error {
	if c.OT != nil {
		trimmed := strings.TrimSpace(*c.OT)
		if trimmed != job.OT {
			return conflict(op, "OT %q cannot be changed once set", job.OT)
		}
		c.OT = &trimmed
	}
	for name, value := range map[string]*string{"client": c.Client, "jobType": c.JobType} {
		if value != nil && strings.TrimSpace(*value) == "" {
			return invalid(op, "%s must not be empty", name)
		}
	}
	if c.QuantityPlanned != nil && *c.QuantityPlanned < 0 {
		return invalid(op, "quantityPlanned must not be negative")
	}
	if c.Status != nil {
		status, ok := ParseStatus(string(*c.Status))
		if !ok {
			return invalid(op, "unknown status %q", *c.Status)
		}
		c.Status = &status
	}
	if c.Press != nil {
		trimmed := strings.TrimSpace(*c.Press)
		c.Press = &trimmed
	}
	if c.Priority != nil && *c.Priority < 1 {
		return invalid(op, "priority must be at least 1")
	}
	for i, evt := range c.Timeline {
		if !timeline.IsOperatorType(evt.Type) {
			return invalid(op, "timeline[%d]: event type %q cannot be added by operators", i, evt.Type)
		}
		if evt.Timestamp.IsZero() {
			return invalid(op, "timeline[%d]: timestamp is required", i)
		}
		c.Timeline[i].Timestamp = evt.Timestamp.UTC()
		if evt.UserID == "" {
			c.Timeline[i].UserID = actor.UserID
		}
	}
	return nil
}

// affectedPresses decides which queues an update disturbed: both presses on a
// transfer, otherwise the current press when its priority moved.
func (s *Service) affectedPresses(before, after *Job, diff map[string]FieldChange) []string {
	var presses []string
	if _, moved := diff["press"]; moved {
		presses = append(presses, before.Press, after.Press)
	} else if _, reordered := diff["priority"]; reordered {
		presses = append(presses, after.Press)
	}
	if _, changed := diff["status"]; changed && s.reassignOnStatusChange {
		presses = append(presses, after.Press)
	}
	return presses
}

func (s *Service) reassign(ctx context.Context, op string, presses ...string) error {
	targets := make([]string, 0, len(presses))
	for _, press := range presses {
		if press = strings.TrimSpace(press); press != "" && !slices.Contains(targets, press) {
			targets = append(targets, press)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	if err := s.reassigner.Reassign(ctx, targets...); err != nil {
		logging.WarnWithContext(s.logger, "queue reassignment failed after write", "reassign_failed",
			logging.Any("presses", targets),
			logging.Error(err),
			logging.Alert("queue_gap"),
			logging.String(logging.FieldErrorHint, "retry the request; reassignment is idempotent"),
			logging.String(logging.FieldImpact, "press queue may hold gaps until the next reassignment"),
		)
		return transient(op, err)
	}
	return nil
}

func (s *Service) materialize(ctx context.Context, found []*Job) ([]*View, error) {
	refs := map[string]UserRef{}
	if s.users != nil {
		if ids := userIDs(found); len(ids) > 0 {
			resolved, err := s.users.ResolveUsers(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("resolve users: %w", err)
			}
			refs = resolved
		}
	}
	views := make([]*View, 0, len(found))
	for _, job := range found {
		views = append(views, materialize(job, refs))
	}
	return views, nil
}

func (s *Service) observe(op string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveMutation(op, err)
	}
}
