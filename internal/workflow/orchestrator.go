package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"clipper/internal/config"
	"clipper/internal/encoding"
	"clipper/internal/jobspec"
	"clipper/internal/logging"
	"clipper/internal/plan"
	"clipper/internal/platform"
	"clipper/internal/progress"
	"clipper/internal/queue"
	"clipper/internal/services"
	"clipper/internal/sourcing"
	"clipper/internal/staging"
	"clipper/internal/storage"
	"clipper/internal/tracking"
	"clipper/internal/transform"
)

// Orchestrator runs one job end to end: stage the source, analyze it,
// render every segment, publish the survivors, settle the job.
type Orchestrator struct {
	cfg        *config.Config
	store      *queue.Store
	workspaces *staging.Manager
	source     sourcing.Provider
	analyzer   tracking.Analyzer
	encoder    encoding.Encoder
	publisher  storage.Store
	plans      *plan.Catalog
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	cfg *config.Config,
	store *queue.Store,
	workspaces *staging.Manager,
	source sourcing.Provider,
	analyzer tracking.Analyzer,
	encoder encoding.Encoder,
	publisher storage.Store,
	plans *plan.Catalog,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		workspaces: workspaces,
		source:     source,
		analyzer:   analyzer,
		encoder:    encoder,
		publisher:  publisher,
		plans:      plans,
		logger:     logger,
	}
}

// Run processes one job that is already in processing status. The workspace
// is released on every exit path, including failures and cancellation.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)

	clips, err := o.store.Clips(ctx, job.ID)
	if err != nil {
		return o.failJob(ctx, job, fmt.Sprintf("load clip rows: %v", err))
	}
	if len(clips) == 0 {
		return o.failJob(ctx, job, "job has no clip segments")
	}

	opts, err := jobspec.DecodeOptions([]byte(job.OptionsJSON))
	if err != nil {
		return o.failJob(ctx, job, fmt.Sprintf("invalid processing options: %v", err))
	}
	limits, err := o.plans.Lookup(job.PlanCode)
	if err != nil {
		return o.failJob(ctx, job, err.Error())
	}

	ws, err := o.workspaces.Acquire(job.ID)
	if err != nil {
		return o.failJob(ctx, job, fmt.Sprintf("acquire workspace: %v", err))
	}
	defer func() {
		if releaseErr := o.workspaces.Release(ws); releaseErr != nil {
			logger.Warn("workspace release failed", logging.Error(releaseErr))
		}
	}()

	tracker := progress.NewTracker(o.store, logger, job.ID, len(clips))

	// Stage the source. An unreachable source fails the whole job.
	tracker.SourcingStarted(ctx)
	downloadTimeout := time.Duration(o.cfg.Sourcing.DownloadTimeout) * time.Second
	fetchCtx, cancelFetch := context.WithTimeout(services.WithStage(ctx, "sourcing"), downloadTimeout)
	_, err = o.source.Fetch(fetchCtx, job.SourceRef, ws.SourcePath())
	cancelFetch()
	if err != nil {
		return o.failJob(ctx, job, fmt.Sprintf("source unavailable: %v", err))
	}
	tracker.SourcingDone(ctx)

	timeline := o.analyzeSource(ctx, logger, tracker, opts, ws.SourcePath())

	// Seed the batch from clips settled by an earlier run so a re-queued job
	// never misreads its own finished work as failure.
	state := BatchState{Total: len(clips)}
	for _, clip := range clips {
		switch clip.Status {
		case queue.ClipCompleted:
			state.Completed++
		case queue.ClipFailed:
			state.Failed++
		}
	}

	for _, clip := range clips {
		// A clip left processing by an interrupted run is attempted again.
		if clip.Status != queue.ClipPending && clip.Status != queue.ClipProcessing {
			continue
		}

		// Cooperative cancel between segments; finished clips stay published.
		cancelled, cancelErr := o.store.CancelRequested(ctx, job.ID)
		if cancelErr != nil {
			logger.Warn("cancel flag check failed", logging.Error(cancelErr))
		}
		if cancelled {
			state.Cancelled = true
			break
		}

		outcome := o.runSegment(ctx, tracker, job, clip, opts, limits, timeline, ws)
		var percent float64
		state, percent = state.Advance(outcome)
		tracker.Progress(ctx, percent, fmt.Sprintf("Processed %d of %d clips", state.Completed+state.Failed, state.Total))
	}

	return o.settle(ctx, logger, tracker, job, state)
}

// analyzeSource runs subject tracking when requested. Analyzer trouble
// degrades to the centered-crop fallback instead of failing the job.
func (o *Orchestrator) analyzeSource(ctx context.Context, logger *slog.Logger, tracker *progress.Tracker, opts jobspec.Options, sourcePath string) tracking.Timeline {
	if !opts.SubjectTracking || o.analyzer == nil {
		return tracking.Timeline{}
	}

	ctx = services.WithStage(ctx, "tracking")
	tracker.AnalysisStarted(ctx)
	timeline, err := o.analyzer.Analyze(ctx, sourcePath, tracking.Options{
		Sensitivity: opts.Tracking.Sensitivity,
		Timeout:     time.Duration(o.cfg.Tracking.AnalyzeTimeout) * time.Second,
	})
	if err != nil {
		logger.Warn("subject tracking failed, falling back to centered crop",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the analyzer binary configuration"),
		)
		timeline = tracking.Timeline{}
	}
	tracker.AnalysisDone(ctx)
	return timeline
}

func (o *Orchestrator) runSegment(
	ctx context.Context,
	tracker *progress.Tracker,
	job *queue.Job,
	clip *queue.Clip,
	opts jobspec.Options,
	limits plan.Limits,
	timeline tracking.Timeline,
	ws staging.Workspace,
) Outcome {
	ctx = services.WithClipSeq(ctx, clip.Seq)
	segLogger := logging.WithContext(ctx, o.logger)
	tracker.ClipStarted(ctx, clip.Seq)

	segment := jobspec.Segment{
		StartSec: clip.StartSec,
		EndSec:   clip.EndSec,
		Title:    clip.Title,
		Platform: clip.Platform,
		AIScore:  clip.AIScore,
	}

	profile, err := platform.Lookup(segment.Platform)
	if err != nil {
		tracker.ClipFailed(ctx, clip.Seq, err)
		segLogger.Warn("segment skipped", logging.Error(err))
		return OutcomeFailed
	}

	spec, err := transform.Build(segment, opts, limits, timeline, profile)
	if err != nil {
		tracker.ClipFailed(ctx, clip.Seq, err)
		segLogger.Warn("segment rejected", logging.Error(err))
		return OutcomeFailed
	}

	outputPath := ws.ClipPath(clip.Seq, spec.Format)
	artifact, err := o.encoder.Encode(ctx, ws.SourcePath(), outputPath, spec)
	if err != nil {
		tracker.ClipFailed(ctx, clip.Seq, err)
		segLogger.Warn("segment encode failed", logging.Error(err))
		return OutcomeFailed
	}

	thumbnailPath := ws.ThumbnailPath(clip.Seq)
	thumbnailOK := true
	if err := o.encoder.Thumbnail(ctx, outputPath, thumbnailPath, spec.Duration()/2); err != nil {
		// A missing thumbnail never sinks the clip.
		segLogger.Warn("thumbnail extraction failed", logging.Error(err))
		thumbnailOK = false
	}

	clipKey := storage.ObjectKey(job.ID, clip.Seq, "clip."+spec.Format)
	clipURL, err := o.publisher.Publish(ctx, outputPath, clipKey)
	if err != nil {
		tracker.ClipFailed(ctx, clip.Seq, err)
		segLogger.Warn("segment publish failed", logging.Error(err))
		return OutcomeFailed
	}

	thumbnailURL := ""
	if thumbnailOK {
		thumbKey := storage.ObjectKey(job.ID, clip.Seq, "thumb.jpg")
		thumbnailURL, err = o.publisher.Publish(ctx, thumbnailPath, thumbKey)
		if err != nil {
			segLogger.Warn("thumbnail publish failed", logging.Error(err))
			thumbnailURL = ""
		}
	}

	clip.Status = queue.ClipCompleted
	clip.OutputURL = clipURL
	clip.ThumbnailURL = thumbnailURL
	clip.ErrorMessage = ""
	clip.DurationSec = artifact.DurationSec
	clip.Width = artifact.Width
	clip.Height = artifact.Height
	clip.FileSize = artifact.FileSize
	if err := o.store.UpdateClip(ctx, clip); err != nil {
		tracker.ClipFailed(ctx, clip.Seq, err)
		segLogger.Error("failed to record finished clip", logging.Error(err))
		return OutcomeFailed
	}

	segLogger.Info("clip published",
		logging.String("url", clipURL),
		logging.String("output", filepath.Base(outputPath)),
	)
	return OutcomeCompleted
}

func (o *Orchestrator) settle(ctx context.Context, logger *slog.Logger, tracker *progress.Tracker, job *queue.Job, state BatchState) error {
	status, summary := state.Settle()

	switch status {
	case queue.StatusFailed:
		job.SetFailed(summary)
		if err := o.store.Transition(ctx, job, queue.StatusFailed); err != nil {
			return fmt.Errorf("settle failed job: %w", err)
		}
	case queue.StatusCancelled:
		job.ProgressMessage = summary
		if err := o.store.Transition(ctx, job, queue.StatusCancelled); err != nil {
			return fmt.Errorf("settle cancelled job: %w", err)
		}
	default:
		tracker.Finished(ctx, summary)
		job.ProgressMessage = summary
		if state.Failed > 0 {
			job.ErrorSummary = summary
		}
		if err := o.store.Transition(ctx, job, queue.StatusCompleted); err != nil {
			return fmt.Errorf("settle completed job: %w", err)
		}
	}

	logger.Info("job settled",
		logging.String("status", string(status)),
		logging.String("summary", summary),
	)
	return nil
}

func (o *Orchestrator) failJob(ctx context.Context, job *queue.Job, summary string) error {
	job.SetFailed(summary)
	if err := o.store.Transition(ctx, job, queue.StatusFailed); err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	return services.Wrap(services.ErrTransient, "workflow", "run job", summary, nil)
}
