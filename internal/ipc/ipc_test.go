package ipc

import (
	"context"
	"path/filepath"
	"testing"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/logging"
)

func newTestIPC(t *testing.T) *Client {
	t.Helper()
	root := t.TempDir()
	defaults := config.Default()
	cfg := &defaults
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.PublishDir = filepath.Join(root, "publish")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	socketPath := filepath.Join(root, "clipperd.sock")
	server, err := NewServer(context.Background(), socketPath, d, logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestStartStatusStopRoundTrip(t *testing.T) {
	client := newTestIPC(t)

	started, err := client.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Started {
		t.Fatalf("daemon did not start: %s", started.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.PID == 0 {
		t.Fatal("status should report a pid")
	}

	stopped, err := client.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !stopped.Stopped {
		t.Fatal("daemon did not stop")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Running {
		t.Fatal("status should report stopped")
	}
}

func TestQueueHealthOverIPC(t *testing.T) {
	client := newTestIPC(t)

	health, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if health.Total != 0 {
		t.Fatalf("expected empty queue, got %d jobs", health.Total)
	}
}

func TestQueueCancelRequiresIDs(t *testing.T) {
	client := newTestIPC(t)

	if _, err := client.QueueCancel(nil); err == nil {
		t.Fatal("expected cancel without ids to be rejected")
	}
}

func TestQueueListEmpty(t *testing.T) {
	client := newTestIPC(t)

	list, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if len(list.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(list.Jobs))
	}
}
