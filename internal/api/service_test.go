package api

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"clipper/internal/config"
	"clipper/internal/jobspec"
	"clipper/internal/logging"
	"clipper/internal/plan"
	"clipper/internal/queue"
	"clipper/internal/services"
)

func newTestService(t *testing.T, catalog *plan.Catalog) (*Service, *queue.Store) {
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

	if catalog == nil {
		catalog = plan.DefaultCatalog()
	}
	gate := plan.NewGate(catalog, store)
	return NewService(cfg, store, gate, logging.NewNop()), store
}

func submitRequest(segments int) SubmitRequest {
	req := SubmitRequest{
		OwnerID:   "owner-1",
		PlanCode:  "pro",
		SourceRef: "https://example.com/stream.mp4",
	}
	for i := 0; i < segments; i++ {
		start := float64(i * 60)
		req.Segments = append(req.Segments, jobspec.Segment{
			StartSec: start,
			EndSec:   start + 30,
			Platform: "tiktok",
		})
	}
	return req
}

func TestSubmitEnqueuesJob(t *testing.T) {
	service, store := newTestService(t, nil)

	view, err := service.Submit(context.Background(), submitRequest(3))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Status != string(queue.StatusQueued) {
		t.Fatalf("expected queued, got %s", view.Status)
	}

	clips, err := store.Clips(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("list clips: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(clips))
	}
}

func TestSubmitDailyQuotaExhausted(t *testing.T) {
	catalog := plan.NewCatalog([]plan.Limits{
		{Code: "starter", MaxResolution: plan.Res720p, DailyClipLimit: 3, MonthlyClipLimit: plan.Unlimited},
	})
	service, _ := newTestService(t, catalog)

	req := submitRequest(2)
	req.PlanCode = "starter"
	if _, err := service.Submit(context.Background(), req); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// 2 used, 2 requested, limit 3: the whole submission is rejected.
	_, err := service.Submit(context.Background(), req)
	var quotaErr *plan.QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if quotaErr.Code() != "DAILY_LIMIT_EXCEEDED" {
		t.Fatalf("expected DAILY_LIMIT_EXCEEDED, got %s", quotaErr.Code())
	}
	if quotaErr.Used != 2 || quotaErr.Requested != 2 {
		t.Fatalf("unexpected quota detail: %+v", quotaErr)
	}
}

func TestSubmitUnlimitedPlanNeverQuotaRejected(t *testing.T) {
	service, _ := newTestService(t, nil)

	req := submitRequest(maxSegmentsPerJob)
	req.PlanCode = "studio"
	for i := 0; i < 5; i++ {
		if _, err := service.Submit(context.Background(), req); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
}

func TestSubmitValidationFailures(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing owner", func(r *SubmitRequest) { r.OwnerID = " " }},
		{"missing source", func(r *SubmitRequest) { r.SourceRef = "" }},
		{"no segments", func(r *SubmitRequest) { r.Segments = nil }},
		{"unknown plan", func(r *SubmitRequest) { r.PlanCode = "enterprise" }},
		{"inverted segment", func(r *SubmitRequest) { r.Segments[0].EndSec = r.Segments[0].StartSec - 1 }},
		{"unknown platform", func(r *SubmitRequest) { r.Segments[0].Platform = "myspace" }},
		{"unknown option field", func(r *SubmitRequest) { r.Options = json.RawMessage(`{"sharpen": true}`) }},
		{"bad quality", func(r *SubmitRequest) { r.Options = json.RawMessage(`{"quality": "ultra"}`) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := submitRequest(2)
			tc.mutate(&req)
			if _, err := service.Submit(ctx, req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestSubmitTooManySegments(t *testing.T) {
	service, _ := newTestService(t, nil)
	if _, err := service.Submit(context.Background(), submitRequest(maxSegmentsPerJob+1)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGetUnknownJobIsNotFound(t *testing.T) {
	service, _ := newTestService(t, nil)
	if _, err := service.Get(context.Background(), 999); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelAndRetryGating(t *testing.T) {
	service, store := newTestService(t, nil)
	ctx := context.Background()

	view, err := service.Submit(ctx, submitRequest(2))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Retry on a queued job is rejected.
	if _, err := service.Retry(ctx, view.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for retry on queued job, got %v", err)
	}

	// Cancel settles the queued job immediately.
	cancelled, err := service.Cancel(ctx, view.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != string(queue.StatusCancelled) {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Cancel on a settled job is rejected.
	if _, err := service.Cancel(ctx, view.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for second cancel, got %v", err)
	}

	// Drive a second job to failed and verify retry works until the budget
	// runs out.
	second, err := service.Submit(ctx, submitRequest(1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	job, err := store.GetJob(ctx, second.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if err := store.Transition(ctx, job, queue.StatusProcessing); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.Transition(ctx, job, queue.StatusFailed); err != nil {
		t.Fatalf("transition: %v", err)
	}

	retried, err := service.Retry(ctx, second.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != string(queue.StatusQueued) || retried.RetryCount != 1 {
		t.Fatalf("unexpected retried view: %+v", retried)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	service, _ := newTestService(t, nil)
	ctx := context.Background()

	first, err := service.Submit(ctx, submitRequest(1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Submit(ctx, submitRequest(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Cancel(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	queued, err := service.List(ctx, "queued")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(queued))
	}

	if _, err := service.List(ctx, "bogus"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bogus filter, got %v", err)
	}
}
