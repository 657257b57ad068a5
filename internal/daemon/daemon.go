package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"pressline/internal/config"
	"pressline/internal/logging"
	"pressline/internal/metrics"
	"pressline/internal/preflight"
	"pressline/internal/priority"
	"pressline/internal/storeaccess"
)

// Daemon owns the API server and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	stack      *storeaccess.Stack
	collectors *metrics.Collectors

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	api     *apiServer
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Backend      string
	APIAddress   string
	LockFilePath string
	Presses      []priority.Report
}

// New constructs a daemon on an opened stack. The stack's collectors, when
// present, back the metrics endpoint.
func New(cfg *config.Config, stack *storeaccess.Stack, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || stack == nil || logger == nil {
		return nil, errors.New("daemon requires config, store stack, and logger")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		stack:      stack,
		collectors: stack.Metrics,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, renumbers any
// inconsistent press queue, and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pressline daemon instance is already running")
	}

	if failed := preflight.Failed(preflight.RunAll(ctx, d.cfg, d.stack.Backend)); len(failed) > 0 {
		_ = d.lock.Unlock()
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, result.Name+": "+result.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	if err := d.sweep(ctx); err != nil {
		logging.WarnWithContext(d.logger, "startup queue sweep incomplete", "queue_sweep_failed",
			logging.Error(err),
			logging.Alert("queue_gap"),
			logging.String(logging.FieldErrorHint, "run 'pressline queue reassign' once the store is healthy"),
			logging.String(logging.FieldImpact, "some press queues may not be numbered 1..N"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	server, err := newAPIServer(d.cfg, d)
	if err == nil {
		err = server.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.api = server
	d.cancel = cancel
	d.running = true
	d.logger.Info("pressline daemon started",
		logging.String("lock", d.lockPath),
		logging.String("backend", d.cfg.Store.Backend),
		logging.String("api", server.addr()),
	)
	return nil
}

// sweep renumbers every press whose queue is not dense.
func (d *Daemon) sweep(ctx context.Context) error {
	reports, err := d.stack.Reassigner.Check(ctx)
	if err != nil {
		return err
	}
	var stale []string
	for _, report := range reports {
		if !report.Dense {
			stale = append(stale, report.Press)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	d.logger.Info("renumbering inconsistent press queues",
		logging.Any("presses", stale),
		logging.String(logging.FieldEventType, "queue_sweep"),
	)
	return d.stack.Reassigner.Reassign(ctx, stale...)
}

// Stop stops the API server and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("pressline daemon stopped")
}

// Close stops the daemon and releases the record store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.stack.Close()
}

// Status returns the current daemon status. Press reports are omitted when
// the store cannot be read.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	status := Status{
		Running:      d.running,
		Backend:      d.cfg.Store.Backend,
		APIAddress:   d.api.addr(),
		LockFilePath: d.lockPath,
	}
	d.mu.Unlock()

	reports, err := d.stack.Reassigner.Check(ctx)
	if err != nil {
		d.logger.Warn("press queue status unavailable", logging.Error(err))
		return status
	}
	status.Presses = reports
	return status
}
