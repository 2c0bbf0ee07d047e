package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/config"
	"clipper/internal/encoding"
	"clipper/internal/jobspec"
	"clipper/internal/logging"
	"clipper/internal/plan"
	"clipper/internal/queue"
	"clipper/internal/staging"
	"clipper/internal/tracking"
	"clipper/internal/transform"
)

type fakeProvider struct {
	err error
}

func (f *fakeProvider) Fetch(_ context.Context, _ string, destPath string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(destPath, []byte("source"), 0o644); err != nil {
		return 0, err
	}
	return 6, nil
}

type fakeEncoder struct {
	failSeqs map[int]bool
	encoded  []string
}

func (f *fakeEncoder) Encode(_ context.Context, _ string, outputPath string, spec transform.Spec) (encoding.ClipArtifact, error) {
	base := filepath.Base(outputPath)
	for seq := range f.failSeqs {
		if strings.Contains(base, fmt.Sprintf("clip-%03d", seq)) {
			return encoding.ClipArtifact{}, errors.New("encoder exited 1")
		}
	}
	if err := os.WriteFile(outputPath, []byte("encoded"), 0o644); err != nil {
		return encoding.ClipArtifact{}, err
	}
	f.encoded = append(f.encoded, base)
	return encoding.ClipArtifact{
		Path:        outputPath,
		DurationSec: spec.Duration(),
		Width:       spec.Width,
		Height:      spec.Height,
		FileSize:    7,
	}, nil
}

func (f *fakeEncoder) Thumbnail(_ context.Context, _ string, outputPath string, _ float64) error {
	return os.WriteFile(outputPath, []byte("jpg"), 0o644)
}

type fakePublisher struct {
	published  []string
	failSubstr string
}

func (f *fakePublisher) Publish(_ context.Context, localPath, objectKey string) (string, error) {
	if f.failSubstr != "" && strings.Contains(objectKey, f.failSubstr) {
		return "", errors.New("storage rejected object")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	_ = os.Remove(localPath)
	f.published = append(f.published, objectKey)
	return "https://media.test/" + objectKey, nil
}

func (f *fakePublisher) Remove(_ context.Context, _ string) error { return nil }

type fakeAnalyzer struct {
	timeline tracking.Timeline
	err      error
	calls    int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ tracking.Options) (tracking.Timeline, error) {
	f.calls++
	if f.err != nil {
		return tracking.Timeline{}, f.err
	}
	return f.timeline, nil
}

type testPipeline struct {
	cfg       *config.Config
	store     *queue.Store
	encoder   *fakeEncoder
	publisher *fakePublisher
	analyzer  *fakeAnalyzer
	provider  *fakeProvider
	orch      *Orchestrator
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	root := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.PublishDir = filepath.Join(root, "publish")
	cfg.Paths.LogDir = filepath.Join(root, "logs")

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	workspaces, err := staging.NewManager(cfg.Paths.StagingDir, logging.NewNop())
	if err != nil {
		t.Fatalf("new staging manager: %v", err)
	}

	p := &testPipeline{
		cfg:       cfg,
		store:     store,
		encoder:   &fakeEncoder{failSeqs: map[int]bool{}},
		publisher: &fakePublisher{},
		analyzer:  &fakeAnalyzer{},
		provider:  &fakeProvider{},
	}
	p.orch = NewOrchestrator(
		cfg, store, workspaces, p.provider, p.analyzer, p.encoder, p.publisher,
		plan.DefaultCatalog(), logging.NewNop(),
	)
	return p
}

func (p *testPipeline) submitJob(t *testing.T, segments []jobspec.Segment, opts jobspec.Options) *queue.Job {
	t.Helper()
	if err := opts.Normalize(); err != nil {
		t.Fatalf("normalize options: %v", err)
	}
	encoded, err := jobspec.EncodeOptions(opts)
	if err != nil {
		t.Fatalf("encode options: %v", err)
	}
	job, err := p.store.NewJob(context.Background(), "owner-1", "pro", "video.mp4", encoded, 2, segments)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := p.store.Transition(context.Background(), job, queue.StatusProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	return job
}

func fiveSegments() []jobspec.Segment {
	segments := make([]jobspec.Segment, 5)
	for i := range segments {
		start := float64(i * 60)
		segments[i] = jobspec.Segment{
			StartSec: start,
			EndSec:   start + 30,
			Title:    fmt.Sprintf("Highlight %d", i+1),
			Platform: "tiktok",
		}
	}
	return segments
}

func TestRunPartialFailureStillCompletes(t *testing.T) {
	p := newTestPipeline(t)
	p.encoder.failSeqs[2] = true

	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", settled.Status, settled.ErrorSummary)
	}
	if !strings.Contains(settled.ProgressMessage, "4 of 5") {
		t.Fatalf("expected partial summary, got %q", settled.ProgressMessage)
	}

	clips, err := p.store.Clips(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	for _, clip := range clips {
		if clip.Seq == 2 {
			if clip.Status != queue.ClipFailed {
				t.Fatalf("clip 2 should fail, got %s", clip.Status)
			}
			if clip.ErrorMessage == "" {
				t.Fatal("failed clip should carry an error message")
			}
			continue
		}
		if clip.Status != queue.ClipCompleted {
			t.Fatalf("clip %d should complete, got %s", clip.Seq, clip.Status)
		}
		if !strings.HasPrefix(clip.OutputURL, "https://media.test/jobs/") {
			t.Fatalf("clip %d missing output url: %q", clip.Seq, clip.OutputURL)
		}
	}
}

func TestRunAllSegmentsFailedFailsJob(t *testing.T) {
	p := newTestPipeline(t)
	for seq := 0; seq < 5; seq++ {
		p.encoder.failSeqs[seq] = true
	}

	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", settled.Status)
	}
	if !strings.Contains(settled.ErrorSummary, "All 5 clips failed") {
		t.Fatalf("unexpected error summary: %q", settled.ErrorSummary)
	}
}

func TestRunSourceUnavailableFailsJobWithoutAttempts(t *testing.T) {
	p := newTestPipeline(t)
	p.provider.err = errors.New("source returned status 404")

	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err == nil {
		t.Fatal("expected run error for unavailable source")
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", settled.Status)
	}
	clips, err := p.store.Clips(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	for _, clip := range clips {
		if clip.Status != queue.ClipPending {
			t.Fatalf("clip %d should stay pending, got %s", clip.Seq, clip.Status)
		}
	}
}

func TestRunCancelBetweenSegmentsKeepsFinishedClips(t *testing.T) {
	p := newTestPipeline(t)
	job := p.submitJob(t, fiveSegments(), jobspec.Options{})

	// Flag cancellation before the run; the orchestrator observes it before
	// the first segment and settles immediately.
	if _, err := p.store.RequestCancel(context.Background(), job.ID); err != nil {
		t.Fatalf("request cancel: %v", err)
	}
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", settled.Status)
	}
	if len(p.encoder.encoded) != 0 {
		t.Fatalf("no segment should render after cancel, got %v", p.encoder.encoded)
	}
}

func TestRunReleasesWorkspaceOnEveryPath(t *testing.T) {
	p := newTestPipeline(t)
	p.encoder.failSeqs[0] = true
	p.encoder.failSeqs[1] = true

	job := p.submitJob(t, fiveSegments()[:2], jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries, err := os.ReadDir(p.cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staging dir empty after run, found %d entries", len(entries))
	}
}

func TestRunSkipsAnalyzerWhenTrackingDisabled(t *testing.T) {
	p := newTestPipeline(t)
	job := p.submitJob(t, fiveSegments()[:1], jobspec.Options{SubjectTracking: false})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}
	if p.analyzer.calls != 0 {
		t.Fatalf("analyzer should not run, called %d times", p.analyzer.calls)
	}
}

func TestRunAnalyzerFailureDegradesToCenteredCrop(t *testing.T) {
	p := newTestPipeline(t)
	p.analyzer.err = errors.New("analyzer crashed")

	job := p.submitJob(t, fiveSegments()[:1], jobspec.Options{SubjectTracking: true})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("analyzer failure must not sink the job, got %s", settled.Status)
	}
	if p.analyzer.calls != 1 {
		t.Fatalf("analyzer should run once, called %d times", p.analyzer.calls)
	}
}

func TestRunOversizedSegmentFailsOnlyThatClip(t *testing.T) {
	p := newTestPipeline(t)
	segments := fiveSegments()[:2]
	segments[1].EndSec = segments[1].StartSec + 600 // over every platform ceiling

	job := p.submitJob(t, segments, jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", settled.Status)
	}
	clips, err := p.store.Clips(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if clips[0].Status != queue.ClipCompleted {
		t.Fatalf("clip 0 should complete, got %s", clips[0].Status)
	}
	if clips[1].Status != queue.ClipFailed {
		t.Fatalf("clip 1 should fail validation, got %s", clips[1].Status)
	}
}

func TestRunPublishFailureDemotesClipAndContinues(t *testing.T) {
	p := newTestPipeline(t)
	p.publisher.failSubstr = "002-clip"

	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	if err := p.orch.Run(context.Background(), job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", settled.Status, settled.ErrorSummary)
	}
	if !strings.Contains(settled.ProgressMessage, "4 of 5") {
		t.Fatalf("expected partial summary, got %q", settled.ProgressMessage)
	}

	clips, err := p.store.Clips(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	for _, clip := range clips {
		if clip.Seq == 2 {
			if clip.Status != queue.ClipFailed {
				t.Fatalf("clip 2 should fail on publish, got %s", clip.Status)
			}
			if clip.OutputURL != "" {
				t.Fatalf("unpublished clip must not carry an output url: %q", clip.OutputURL)
			}
			if !strings.Contains(clip.ErrorMessage, "storage rejected object") {
				t.Fatalf("expected publish error on clip, got %q", clip.ErrorMessage)
			}
			continue
		}
		if clip.Status != queue.ClipCompleted {
			t.Fatalf("clip %d should complete, got %s", clip.Seq, clip.Status)
		}
	}
}

func TestRunRerunOfSettledJobKeepsFinishedWork(t *testing.T) {
	p := newTestPipeline(t)
	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	ctx := context.Background()

	// Every clip finished before the process died; the job was re-queued and
	// is back in processing.
	for seq := 0; seq < 5; seq++ {
		if err := p.store.SetClipStatus(ctx, job.ID, seq, queue.ClipCompleted, ""); err != nil {
			t.Fatalf("mark clip completed: %v", err)
		}
	}

	if err := p.orch.Run(ctx, job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("rerun must not fail a finished job, got %s (%s)", settled.Status, settled.ErrorSummary)
	}
	if !strings.Contains(settled.ProgressMessage, "5 of 5") {
		t.Fatalf("expected full summary, got %q", settled.ProgressMessage)
	}
	if len(p.encoder.encoded) != 0 {
		t.Fatalf("settled clips must not render again, got %v", p.encoder.encoded)
	}
}

func TestRunResumesUnsettledClipsOnly(t *testing.T) {
	p := newTestPipeline(t)
	job := p.submitJob(t, fiveSegments(), jobspec.Options{})
	ctx := context.Background()

	// Clips 0-1 finished, clip 2 failed, clip 3 was mid-render when the
	// process died, clip 4 never started.
	for seq := 0; seq < 2; seq++ {
		if err := p.store.SetClipStatus(ctx, job.ID, seq, queue.ClipCompleted, ""); err != nil {
			t.Fatalf("mark clip completed: %v", err)
		}
	}
	if err := p.store.SetClipStatus(ctx, job.ID, 2, queue.ClipFailed, "encoder exited 1"); err != nil {
		t.Fatalf("mark clip failed: %v", err)
	}
	if err := p.store.SetClipStatus(ctx, job.ID, 3, queue.ClipProcessing, ""); err != nil {
		t.Fatalf("mark clip processing: %v", err)
	}

	if err := p.orch.Run(ctx, job); err != nil {
		t.Fatalf("run: %v", err)
	}

	settled, err := p.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if settled.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", settled.Status, settled.ErrorSummary)
	}
	if !strings.Contains(settled.ProgressMessage, "4 of 5") {
		t.Fatalf("expected partial summary, got %q", settled.ProgressMessage)
	}
	if len(p.encoder.encoded) != 2 {
		t.Fatalf("expected only clips 3 and 4 to render, got %v", p.encoder.encoded)
	}
}

func TestBatchAdvanceReportsSettledPercent(t *testing.T) {
	state := BatchState{Total: 5}
	outcomes := []Outcome{OutcomeCompleted, OutcomeFailed, OutcomeCompleted, OutcomeCompleted, OutcomeFailed}
	want := []float64{20, 40, 60, 80, 100}
	for i, outcome := range outcomes {
		var percent float64
		state, percent = state.Advance(outcome)
		if percent != want[i] {
			t.Fatalf("after %d outcomes expected %v%%, got %v%%", i+1, want[i], percent)
		}
	}
	if state.Completed != 3 || state.Failed != 2 {
		t.Fatalf("unexpected final state: %+v", state)
	}
}

func TestBatchPercentRoundsToWholeNumbers(t *testing.T) {
	state := BatchState{Total: 3}
	want := []float64{33, 67, 100}
	for i := range want {
		var percent float64
		state, percent = state.Advance(OutcomeCompleted)
		if percent != want[i] {
			t.Fatalf("after %d of 3 expected %v%%, got %v%%", i+1, want[i], percent)
		}
	}
}

func TestBatchSettleRules(t *testing.T) {
	cases := []struct {
		name   string
		state  BatchState
		status queue.Status
	}{
		{"all completed", BatchState{Total: 3, Completed: 3}, queue.StatusCompleted},
		{"partial", BatchState{Total: 3, Completed: 1, Failed: 2}, queue.StatusCompleted},
		{"all failed", BatchState{Total: 3, Failed: 3}, queue.StatusFailed},
		{"cancelled", BatchState{Total: 3, Completed: 2, Cancelled: true}, queue.StatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, summary := tc.state.Settle()
			if status != tc.status {
				t.Fatalf("expected %s, got %s", tc.status, status)
			}
			if summary == "" {
				t.Fatal("expected a summary message")
			}
		})
	}
}
