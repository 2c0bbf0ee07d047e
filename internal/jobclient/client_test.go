package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clipper/internal/api"
	"clipper/internal/services"
)

func TestSubmitAndGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/jobs":
			var req api.SubmitRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode submit: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(api.JobView{ID: 7, Status: "queued", OwnerID: req.OwnerID})
		case r.Method == http.MethodGet && r.URL.Path == "/api/jobs/7":
			_ = json.NewEncoder(w).Encode(api.JobView{ID: 7, Status: "completed", ProgressPercent: 100})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL)
	view, err := client.Submit(context.Background(), api.SubmitRequest{OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.ID != 7 || view.OwnerID != "owner-1" {
		t.Fatalf("unexpected view: %+v", view)
	}

	fetched, err := client.Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != "completed" {
		t.Fatalf("unexpected status: %s", fetched.Status)
	}
}

func TestBearerTokenSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sekrit" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(api.ErrorBody{Code: "UNAUTHORIZED", Message: "bad token"})
			return
		}
		_ = json.NewEncoder(w).Encode(api.JobView{ID: 1, Status: "queued"})
	}))
	defer server.Close()

	if _, err := New(server.URL).Get(context.Background(), 1); err == nil {
		t.Fatal("expected unauthorized error without token")
	}
	if _, err := New(server.URL, WithToken("sekrit")).Get(context.Background(), 1); err != nil {
		t.Fatalf("get with token: %v", err)
	}
}

func TestErrorMappingToSentinels(t *testing.T) {
	cases := []struct {
		status   int
		code     string
		sentinel error
	}{
		{http.StatusNotFound, "NOT_FOUND", services.ErrNotFound},
		{http.StatusUnprocessableEntity, "VALIDATION_FAILED", services.ErrValidation},
		{http.StatusTooManyRequests, "DAILY_LIMIT_EXCEEDED", services.ErrQuota},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(api.ErrorBody{Code: tc.code, Message: "nope"})
		}))

		_, err := New(server.URL).Get(context.Background(), 1)
		if !errors.Is(err, tc.sentinel) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.sentinel, err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != tc.code {
			t.Fatalf("status %d: expected code %s in %v", tc.status, tc.code, err)
		}
		server.Close()
	}
}

func TestWatchPollsUntilTerminal(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		view := api.JobView{ID: 3, Status: "processing", ProgressPercent: float64(n * 30)}
		if n >= 3 {
			view.Status = "completed"
			view.ProgressPercent = 100
		}
		_ = json.NewEncoder(w).Encode(view)
	}))
	defer server.Close()

	var updates []float64
	client := New(server.URL, WithPollInterval(10*time.Millisecond))
	final, err := client.Watch(context.Background(), 3, func(view api.JobView) {
		updates = append(updates, view.ProgressPercent)
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if final.Status != "completed" {
		t.Fatalf("expected terminal status, got %s", final.Status)
	}
	if len(updates) < 2 {
		t.Fatalf("expected progress updates, got %v", updates)
	}
}

func TestWatchHonorsContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.JobView{ID: 4, Status: "processing"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := New(server.URL, WithPollInterval(10*time.Millisecond))
	if _, err := client.Watch(ctx, 4, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
