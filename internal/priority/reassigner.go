package priority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pressline/internal/logging"
)

// Store is the record store capability the engine needs.
//
// QueuedSlots returns the queued jobs of a press ordered by priority, ties
// broken by insertion order. ApplyPriorities writes all slots for one press as
// a single batch and only touches jobs that are still queued on that press.
type Store interface {
	QueuedSlots(ctx context.Context, press string) ([]Slot, error)
	ApplyPriorities(ctx context.Context, press string, slots []Slot) error
	QueuedPresses(ctx context.Context) ([]string, error)
}

// Observer receives one call per press run.
type Observer interface {
	ObserveReassign(press string, renumbered int, elapsed time.Duration, err error)
}

// Options configures a Reassigner.
type Options struct {
	Store    Store
	Locks    *Locks
	Logger   *slog.Logger
	Observer Observer
	// Attempts is the number of times a press batch is tried. Defaults to 1.
	Attempts int
	// Backoff is the delay before the second attempt; it doubles afterwards.
	Backoff time.Duration
	// Parallelism bounds concurrent presses in one call. Zero means no limit.
	Parallelism int
}

// Reassigner renumbers press queues on demand.
type Reassigner struct {
	store       Store
	locks       *Locks
	logger      *slog.Logger
	observer    Observer
	attempts    int
	backoff     time.Duration
	parallelism int
}

// NewReassigner validates options and returns a Reassigner.
func NewReassigner(opts Options) (*Reassigner, error) {
	if opts.Store == nil {
		return nil, errors.New("reassigner requires a store")
	}
	locks := opts.Locks
	if locks == nil {
		locks = NewLocks()
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return &Reassigner{
		store:       opts.Store,
		locks:       locks,
		logger:      logging.NewComponentLogger(opts.Logger, "priority"),
		observer:    opts.Observer,
		attempts:    attempts,
		backoff:     opts.Backoff,
		parallelism: opts.Parallelism,
	}, nil
}

// Reassign renumbers the queues of the given presses. With no presses it
// renumbers every press that has a queued job. Errors from individual presses
// are joined; a failing press does not stop the others.
func (r *Reassigner) Reassign(ctx context.Context, presses ...string) error {
	targets, err := r.targets(ctx, presses)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	errs := make([]error, len(targets))
	var group errgroup.Group
	if r.parallelism > 0 {
		group.SetLimit(r.parallelism)
	}
	for i, press := range targets {
		group.Go(func() error {
			errs[i] = r.reassignPress(ctx, press)
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

// Report describes the numbering of one press queue.
type Report struct {
	Press      string `json:"press"`
	Queued     int    `json:"queued"`
	Priorities []int  `json:"priorities"`
	Dense      bool   `json:"dense"`
}

// Check reports the current numbering of the given presses, or of every press
// with queued work when none are given. It never writes.
func (r *Reassigner) Check(ctx context.Context, presses ...string) ([]Report, error) {
	targets, err := r.targets(ctx, presses)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(targets))
	for _, press := range targets {
		slots, err := r.store.QueuedSlots(ctx, press)
		if err != nil {
			return nil, fmt.Errorf("load queue for press %q: %w", press, err)
		}
		priorities := make([]int, len(slots))
		for i, slot := range slots {
			priorities[i] = slot.Priority
		}
		reports = append(reports, Report{
			Press:      press,
			Queued:     len(slots),
			Priorities: priorities,
			Dense:      Dense(slots),
		})
	}
	return reports, nil
}

func (r *Reassigner) targets(ctx context.Context, presses []string) ([]string, error) {
	var targets []string
	for _, press := range presses {
		press = strings.TrimSpace(press)
		if press != "" && !slices.Contains(targets, press) {
			targets = append(targets, press)
		}
	}
	if len(presses) > 0 {
		return targets, nil
	}
	discovered, err := r.store.QueuedPresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover queued presses: %w", err)
	}
	for _, press := range discovered {
		if press != "" && !slices.Contains(targets, press) {
			targets = append(targets, press)
		}
	}
	slices.Sort(targets)
	return targets, nil
}

func (r *Reassigner) reassignPress(ctx context.Context, press string) error {
	unlock := r.locks.Lock(press)
	defer unlock()

	started := time.Now()
	renumbered, err := r.runWithRetry(ctx, press)
	if r.observer != nil {
		r.observer.ObserveReassign(press, renumbered, time.Since(started), err)
	}
	if err != nil {
		return fmt.Errorf("reassign press %q: %w", press, err)
	}
	return nil
}

func (r *Reassigner) runWithRetry(ctx context.Context, press string) (int, error) {
	delay := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		renumbered, err := r.runOnce(ctx, press)
		if err == nil {
			return renumbered, nil
		}
		lastErr = err
		if attempt == r.attempts || ctx.Err() != nil {
			break
		}
		r.logger.Warn("press renumbering failed; retrying batch",
			logging.String(logging.FieldPress, press),
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "reassign_retry"),
			logging.String(logging.FieldErrorHint, "persistent failures point at the record store"),
		)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return 0, errors.Join(lastErr, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return 0, lastErr
}

func (r *Reassigner) runOnce(ctx context.Context, press string) (int, error) {
	slots, err := r.store.QueuedSlots(ctx, press)
	if err != nil {
		return 0, fmt.Errorf("load queue: %w", err)
	}
	changed := Renumber(slots)
	if len(changed) == 0 {
		r.logger.Debug("press queue already dense",
			logging.String(logging.FieldPress, press),
			logging.Int("queued", len(slots)),
		)
		return 0, nil
	}
	if err := r.store.ApplyPriorities(ctx, press, changed); err != nil {
		return 0, fmt.Errorf("apply priorities: %w", err)
	}
	r.logger.Debug("press queue renumbered",
		logging.String(logging.FieldPress, press),
		logging.Int("queued", len(slots)),
		logging.Int("renumbered", len(changed)),
	)
	return len(changed), nil
}
