package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipper/internal/logging"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	manager, err := NewManager(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ws, err := manager.Acquire(42)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := os.Stat(ws.Root); err != nil {
		t.Fatalf("workspace directory missing: %v", err)
	}

	if err := os.WriteFile(ws.SourcePath(), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := manager.Release(ws); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err = %v", err)
	}

	// Releasing an already-removed workspace is a no-op.
	if err := manager.Release(ws); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestAcquireTwiceYieldsDistinctRoots(t *testing.T) {
	manager, err := NewManager(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	first, err := manager.Acquire(7)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := manager.Acquire(7)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.Root == second.Root {
		t.Fatalf("expected distinct workspace roots, both %q", first.Root)
	}
}

func TestReleaseRefusesForeignPath(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	foreign := filepath.Join(root, "not-a-workspace")
	if err := os.MkdirAll(foreign, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := manager.Release(Workspace{JobID: 1, Root: foreign}); err == nil {
		t.Fatal("expected release of foreign path to be rejected")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign directory should survive: %v", err)
	}
}

func TestCleanStaleRemovesOnlyOldWorkspaces(t *testing.T) {
	root := t.TempDir()
	manager, err := NewManager(root, logging.NewNop())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	stale := filepath.Join(root, "job-1-deadbeef")
	fresh := filepath.Join(root, "job-2-cafef00d")
	unrelated := filepath.Join(root, "keep-me")
	for _, dir := range []string{stale, fresh, unrelated} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(unrelated, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := manager.CleanStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("clean stale: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed workspace, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale workspace should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh workspace should survive: %v", err)
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatalf("unrelated directory should survive: %v", err)
	}
}
