package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"pressline/internal/config"
	"pressline/internal/daemon"
	"pressline/internal/logging"
	"pressline/internal/metrics"
	"pressline/internal/storeaccess"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// LogPath, when set, receives a copy of the log stream.
	LogPath string
}

// Run starts the pressline daemon and blocks until SIGINT, SIGTERM, or
// cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stderr"}
	if opts.LogPath != "" {
		outputs = append(outputs, opts.LogPath)
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "pressline.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var stackOpts []storeaccess.Option
	if cfg.Metrics.Enabled {
		stackOpts = append(stackOpts, storeaccess.WithCollectors(metrics.New()))
	}
	stack, err := storeaccess.Open(signalCtx, cfg, logger, stackOpts...)
	if err != nil {
		logging.ErrorWithContext(logger, "open record store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check store settings and that the database is reachable"),
		)
		return err
	}

	d, err := daemon.New(cfg, stack, logger)
	if err != nil {
		_ = stack.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, data directory, and store access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("pressline daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.String("store_backend", cfg.Store.Backend),
		logging.Bool("token_auth", cfg.Auth.TokenSecret != ""),
		logging.Bool("basic_auth", cfg.Auth.AllowBasic),
		logging.Bool("metrics_enabled", cfg.Metrics.Enabled),
		logging.Bool("reassign_on_status_change", cfg.Queue.ReassignOnStatusChange),
	)
}
