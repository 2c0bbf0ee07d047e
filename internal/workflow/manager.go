package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/queue"
)

// Manager polls the queue and drives jobs through the orchestrator, one job
// at a time. Encodes saturate the machine, so a single worker keeps clip
// throughput predictable and the cancel/retry semantics simple.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	orchestrator *Orchestrator
	logger       *slog.Logger
	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, orchestrator *Orchestrator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runLoop(runCtx)
	return nil
}

// Stop terminates background processing and waits for the in-flight job to
// yield.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Running reports whether the poll loop is active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// LastError returns the most recent processing error, if any.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, m.logger); err != nil {
			m.logger.Warn("reclaim stale processing failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		job, err := m.store.NextForStatuses(ctx, queue.StatusQueued)
		if err != nil {
			m.handleFetchError(ctx, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	if err := m.store.Transition(ctx, job, queue.StatusProcessing); err != nil {
		return err
	}
	if err := m.store.UpdateHeartbeat(ctx, job.ID); err != nil {
		m.logger.Warn("initial heartbeat failed", logging.Error(err))
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(heartbeatCtx, &hbWG, job.ID)

	err := m.orchestrator.Run(ctx, job)

	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		m.logger.Error("job processing failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
	return err
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next queued job",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
