// Package storeaccess opens the configured record store backend and wires the
// job service, user directory, and queue reassigner on top of it.
package storeaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pressline/internal/config"
	"pressline/internal/jobs"
	"pressline/internal/logging"
	"pressline/internal/metrics"
	"pressline/internal/priority"
	"pressline/internal/store/mongostore"
	"pressline/internal/store/sqlitestore"
	"pressline/internal/users"
)

// Backend is everything the application needs from a record store.
type Backend interface {
	jobs.Store
	priority.Store
	users.Store
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*sqlitestore.Store)(nil)
	_ Backend = (*mongostore.Store)(nil)
)

// OpenBackend connects to the backend selected by cfg.Store.Backend.
func OpenBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	switch cfg.Store.Backend {
	case config.BackendSQLite, "":
		st, err := sqlitestore.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case config.BackendMongo:
		openCtx := ctx
		if timeout := cfg.StoreTimeout(); timeout > 0 {
			var cancel context.CancelFunc
			openCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		st, err := mongostore.Open(openCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Stack bundles a backend with the services built on it.
type Stack struct {
	Backend    Backend
	Jobs       *jobs.Service
	Users      *users.Directory
	Reassigner *priority.Reassigner
	Metrics    *metrics.Collectors
}

// Option customizes stack construction.
type Option func(*stackOptions)

type stackOptions struct {
	collectors *metrics.Collectors
	locks      *priority.Locks
	userOpts   []users.Option
}

// WithCollectors records mutations and reassignment runs on c.
func WithCollectors(c *metrics.Collectors) Option {
	return func(o *stackOptions) { o.collectors = c }
}

// WithLocks shares a press lock registry between stacks.
func WithLocks(locks *priority.Locks) Option {
	return func(o *stackOptions) { o.locks = locks }
}

// WithUserOptions forwards options to the user directory.
func WithUserOptions(opts ...users.Option) Option {
	return func(o *stackOptions) { o.userOpts = append(o.userOpts, opts...) }
}

// Open connects to the configured backend and builds a Stack on it.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Stack, error) {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stack, err := New(backend, cfg, logger, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return stack, nil
}

// New builds a Stack on an already open backend.
func New(backend Backend, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Stack, error) {
	if backend == nil {
		return nil, errors.New("backend is nil")
	}
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o stackOptions
	for _, opt := range opts {
		opt(&o)
	}

	reassignOpts := priority.Options{
		Store:    backend,
		Locks:    o.locks,
		Logger:   logger,
		Attempts: cfg.Queue.ReassignAttempts,
		Backoff:  cfg.ReassignBackoff(),
	}
	jobOpts := jobs.Options{
		Store:                  backend,
		Logger:                 logger,
		ReassignOnStatusChange: cfg.Queue.ReassignOnStatusChange,
	}
	if o.collectors != nil {
		reassignOpts.Observer = o.collectors
		jobOpts.Recorder = o.collectors
	}

	reassigner, err := priority.NewReassigner(reassignOpts)
	if err != nil {
		return nil, err
	}
	directory := users.NewDirectory(backend, append([]users.Option{users.WithLogger(logger)}, o.userOpts...)...)

	jobOpts.Reassigner = reassigner
	jobOpts.Users = directory
	service, err := jobs.NewService(jobOpts)
	if err != nil {
		return nil, err
	}

	return &Stack{
		Backend:    backend,
		Jobs:       service,
		Users:      directory,
		Reassigner: reassigner,
		Metrics:    o.collectors,
	}, nil
}

// Close releases the backend.
func (s *Stack) Close() error {
	if s == nil || s.Backend == nil {
		return nil
	}
	return s.Backend.Close()
}
