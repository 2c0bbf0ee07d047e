// Package api exposes the job surface: submission with quota gating,
// status, cancel, retry, and listing. The Service carries the domain rules;
// the HTTP handler is a thin JSON adapter over it.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clipper/internal/config"
	"clipper/internal/jobspec"
	"clipper/internal/logging"
	"clipper/internal/plan"
	"clipper/internal/queue"
	"clipper/internal/services"
)

// maxSegmentsPerJob bounds one submission; quotas bound the owner overall.
const maxSegmentsPerJob = 20

// Service implements the job operations shared by the HTTP API and the CLI.
type Service struct {
	cfg    *config.Config
	store  *queue.Store
	gate   *plan.Gate
	logger *slog.Logger
}

// NewService wires the job service.
func NewService(cfg *config.Config, store *queue.Store, gate *plan.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		gate:   gate,
		logger: logging.NewComponentLogger(logger, "api"),
	}
}

// Submit validates a request, checks the plan quota, and enqueues the job.
// The quota check is read-only; the inserted clip rows are the counter
// write, so concurrent submissions can slightly overshoot the limit.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (JobView, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit", "owner_id is required", nil)
	}
	if strings.TrimSpace(req.SourceRef) == "" {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit", "source_ref is required", nil)
	}
	planCode := strings.ToLower(strings.TrimSpace(req.PlanCode))
	if planCode == "" {
		planCode = "free"
	}
	if _, err := s.gate.Limits(planCode); err != nil {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit", err.Error(), nil)
	}

	if len(req.Segments) == 0 {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit", "at least one segment is required", nil)
	}
	if len(req.Segments) > maxSegmentsPerJob {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit",
			fmt.Sprintf("too many segments: %d exceeds the per-job maximum of %d", len(req.Segments), maxSegmentsPerJob), nil)
	}
	for i, segment := range req.Segments {
		if err := segment.Validate(); err != nil {
			return JobView{}, services.Wrap(services.ErrValidation, "api", "submit",
				fmt.Sprintf("segment %d: %v", i, err), nil)
		}
	}

	opts, err := jobspec.DecodeOptions(req.Options)
	if err != nil {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "submit", err.Error(), nil)
	}
	optionsJSON, err := jobspec.EncodeOptions(opts)
	if err != nil {
		return JobView{}, fmt.Errorf("encode options: %w", err)
	}

	if err := s.gate.CheckAndReserve(ctx, ownerID, planCode, len(req.Segments)); err != nil {
		return JobView{}, err
	}

	job, err := s.store.NewJob(ctx, ownerID, planCode, strings.TrimSpace(req.SourceRef), optionsJSON, s.cfg.Workflow.MaxRetries, req.Segments)
	if err != nil {
		return JobView{}, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("job submitted",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("plan", planCode),
		logging.Int("segments", len(req.Segments)),
	)
	return jobView(job, nil), nil
}

// Get returns the job with its clip states.
func (s *Service) Get(ctx context.Context, id int64) (JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "get", fmt.Sprintf("job %d not found", id), nil)
	}
	clips, err := s.store.Clips(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	return jobView(job, clips), nil
}

// List returns jobs, optionally filtered to a status.
func (s *Service) List(ctx context.Context, statusFilter string) ([]JobView, error) {
	var statuses []queue.Status
	if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown status %q", trimmed), nil)
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job, nil))
	}
	return views, nil
}

// Cancel requests cooperative cancellation of a job.
func (s *Service) Cancel(ctx context.Context, id int64) (JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "cancel", fmt.Sprintf("job %d not found", id), nil)
	}
	if !job.CanCancel() {
		return JobView{}, services.Wrap(services.ErrValidation, "api", "cancel",
			fmt.Sprintf("job %d is %s and cannot be cancelled", id, job.Status), nil)
	}
	cancelled, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	return jobView(cancelled, nil), nil
}

// Retry re-queues a failed job when its retry budget allows it.
func (s *Service) Retry(ctx context.Context, id int64) (JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "retry", fmt.Sprintf("job %d not found", id), nil)
	}
	if !job.CanRetry() {
		if job.Status != queue.StatusFailed {
			return JobView{}, services.Wrap(services.ErrValidation, "api", "retry",
				fmt.Sprintf("job %d is %s; only failed jobs can be retried", id, job.Status), nil)
		}
		return JobView{}, services.Wrap(services.ErrValidation, "api", "retry",
			fmt.Sprintf("job %d exhausted its %d retries", id, job.MaxRetries), nil)
	}
	retried, err := s.store.Retry(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	return jobView(retried, nil), nil
}

// Health reports aggregate queue counts.
func (s *Service) Health(ctx context.Context) (queue.HealthSummary, error) {
	return s.store.Health(ctx)
}
