// Package daemon owns the long-running clipper process: single-instance
// locking, startup recovery, the workflow manager, and the HTTP API server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
	"clipper/internal/staging"
	"clipper/internal/workflow"
)

// Daemon coordinates background processing and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	workflow   *workflow.Manager
	workspaces *staging.Manager
	server     *apiServer
	logPath    string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueStats   map[queue.Status]int
	LastError    string
	QueueDBPath  string
	LockFilePath string
	APIBind      string
}

// New constructs a daemon with fully wired dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	components, err := buildComponents(cfg, logger)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "clipperd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      components.store,
		workflow:   components.manager,
		workspaces: components.workspaces,
		logPath:    filepath.Join(cfg.Paths.LogDir, "clipper.log"),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, components.handler, logger)
	return d, nil
}

// Start acquires the daemon lock, recovers interrupted state, and launches
// the workflow manager and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipper daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.recover(runCtx)

	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("clipper daemon started", logging.String("lock", d.lockPath))
	return nil
}

// recover returns interrupted processing jobs to queued and sweeps
// abandoned workspaces before any new work begins.
func (d *Daemon) recover(ctx context.Context) {
	if reset, err := d.store.ResetStuckProcessing(ctx); err != nil {
		d.logger.Warn("reset stuck jobs failed", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("reset interrupted jobs", logging.Int64("count", reset))
	}

	maxAge := time.Duration(d.cfg.Workflow.StaleWorkspaceHours) * time.Hour
	if maxAge <= 0 {
		return
	}
	if _, err := d.workspaces.CleanStale(maxAge); err != nil {
		d.logger.Warn("stale workspace sweep failed", logging.Error(err))
	}
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipper daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns current daemon runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      d.cfg.Paths.APIBind,
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.QueueStats = stats
	}
	if err := d.workflow.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.store.List(ctx, statuses...)
}

// GetJob returns a single job with its clips.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*queue.Job, []*queue.Clip, error) {
	job, err := d.store.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job == nil {
		return nil, nil, fmt.Errorf("job %d not found", id)
	}
	clips, err := d.store.Clips(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return job, clips, nil
}

// ClearCompleted removes completed jobs from the queue.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ResetStuck returns in-flight jobs to queued.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// RetryJobs re-queues the given failed jobs, skipping jobs whose retry is
// not currently allowed. Returns how many were re-queued.
func (d *Daemon) RetryJobs(ctx context.Context, ids []int64) (int64, error) {
	var updated int64
	for _, id := range ids {
		if _, err := d.store.Retry(ctx, id); err != nil {
			d.logger.Warn("retry skipped",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
			)
			continue
		}
		updated++
	}
	return updated, nil
}

// CancelJobs requests cancellation of the given jobs. Returns how many
// requests were accepted.
func (d *Daemon) CancelJobs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.New("cancel requires at least one job id")
	}
	var updated int64
	for _, id := range ids {
		if _, err := d.store.RequestCancel(ctx, id); err != nil {
			d.logger.Warn("cancel skipped",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err),
			)
			continue
		}
		updated++
	}
	return updated, nil
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string {
	return d.logPath
}
