// Package daemon hosts the long-running upliftd process: it enforces
// single-instance execution via a lock file, owns the store and pipeline
// runner, and serves the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"uplift/internal/api"
	"uplift/internal/config"
	"uplift/internal/logging"
	"uplift/internal/pipeline"
	"uplift/internal/preflight"
	"uplift/internal/store"
)

// Daemon coordinates background run processing and the HTTP API.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	runner *pipeline.Runner
	svc    *api.Service
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, runner *pipeline.Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || runner == nil {
		return nil, errors.New("daemon requires config, store, and pipeline runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "upliftd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		runner:   runner,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.svc = api.NewService(cfg, st, runner, logger)

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another uplift daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	for _, result := range preflight.RunAll(d.ctx, d.cfg) {
		if result.Passed {
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	d.running.Store(true)
	d.logger.Info("uplift daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server, waits for in-flight runs, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.runner.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("uplift daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address, or empty before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status including preflight results.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		Preflight:    preflight.RunAll(ctx, d.cfg),
	}
}
