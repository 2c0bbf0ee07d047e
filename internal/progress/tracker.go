// Package progress writes a job's progress and clip states through the queue
// store. Job progress is the share of settled segments, rounded to a whole
// percent; the store's monotonic guard makes regression impossible even when
// stage messages arrive out of band.
package progress

import (
	"context"
	"fmt"
	"log/slog"

	"clipper/internal/logging"
	"clipper/internal/queue"
)

// Store is the queue surface the tracker needs.
type Store interface {
	SetJobProgress(ctx context.Context, jobID int64, percent float64, message string) error
	SetClipStatus(ctx context.Context, jobID int64, seq int, status queue.ClipStatus, errorMessage string) error
}

// Tracker publishes progress for a single job run. It is owned by the one
// orchestrator goroutine working the job; it is not safe for concurrent use.
type Tracker struct {
	store      Store
	logger     *slog.Logger
	jobID      int64
	totalClips int
}

// NewTracker builds a tracker for one job run.
func NewTracker(store Store, logger *slog.Logger, jobID int64, totalClips int) *Tracker {
	if totalClips < 1 {
		totalClips = 1
	}
	return &Tracker{
		store:      store,
		logger:     logger,
		jobID:      jobID,
		totalClips: totalClips,
	}
}

// Progress records the given percent and message. The store keeps the
// highest percent seen; a lower value only refreshes the message.
func (t *Tracker) Progress(ctx context.Context, percent float64, message string) {
	t.publish(ctx, percent, message)
}

// SourcingStarted marks the beginning of source acquisition.
func (t *Tracker) SourcingStarted(ctx context.Context) {
	t.publish(ctx, 0, "Fetching source video")
}

// SourcingDone marks the source as staged locally.
func (t *Tracker) SourcingDone(ctx context.Context) {
	t.publish(ctx, 0, "Source video ready")
}

// AnalysisStarted marks the beginning of subject tracking analysis.
func (t *Tracker) AnalysisStarted(ctx context.Context) {
	t.publish(ctx, 0, "Analyzing subject motion")
}

// AnalysisDone marks tracking analysis as finished.
func (t *Tracker) AnalysisDone(ctx context.Context) {
	t.publish(ctx, 0, "Analysis complete")
}

// ClipStarted marks one clip as in flight.
func (t *Tracker) ClipStarted(ctx context.Context, seq int) {
	if err := t.store.SetClipStatus(ctx, t.jobID, seq, queue.ClipProcessing, ""); err != nil {
		t.warn(ctx, "mark clip processing", err)
	}
	t.publish(ctx, 0, fmt.Sprintf("Rendering clip %d of %d", seq+1, t.totalClips))
}

// ClipFailed records the clip failure. The job percent moves when the
// orchestrator settles the segment, not here.
func (t *Tracker) ClipFailed(ctx context.Context, seq int, clipErr error) {
	message := ""
	if clipErr != nil {
		message = clipErr.Error()
	}
	if err := t.store.SetClipStatus(ctx, t.jobID, seq, queue.ClipFailed, message); err != nil {
		t.warn(ctx, "mark clip failed", err)
	}
}

// Finished marks the job run as fully accounted for.
func (t *Tracker) Finished(ctx context.Context, message string) {
	t.publish(ctx, 100, message)
}

func (t *Tracker) publish(ctx context.Context, percent float64, message string) {
	if err := t.store.SetJobProgress(ctx, t.jobID, percent, message); err != nil {
		t.warn(ctx, "publish progress", err)
	}
}

func (t *Tracker) warn(ctx context.Context, operation string, err error) {
	if t.logger == nil {
		return
	}
	t.logger.WarnContext(ctx, "progress update failed",
		logging.String("operation", operation),
		logging.Int64(logging.FieldJobID, t.jobID),
		logging.Error(err),
	)
}
