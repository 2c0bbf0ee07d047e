package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipper/internal/logging"
	"clipper/internal/services"
)

func TestPublishMovesArtifactAndBuildsURL(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(filepath.Join(root, "publish"), "https://media.example.com/clips", logging.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	artifact := filepath.Join(root, "clip-000.mp4")
	if err := os.WriteFile(artifact, []byte("encoded"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	url, err := store.Publish(context.Background(), artifact, ObjectKey(12, 0, "clip.mp4"))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if url != "https://media.example.com/clips/jobs/12/000-clip.mp4" {
		t.Fatalf("unexpected url: %s", url)
	}

	published := filepath.Join(root, "publish", "jobs", "12", "000-clip.mp4")
	data, err := os.ReadFile(published)
	if err != nil {
		t.Fatalf("read published: %v", err)
	}
	if string(data) != "encoded" {
		t.Fatalf("published content mismatch: %q", data)
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatal("expected staging artifact to be moved out")
	}
}

func TestPublishRejectsEscapingKey(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(filepath.Join(root, "publish"), "", logging.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	artifact := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(artifact, []byte("x"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if _, err := store.Publish(context.Background(), artifact, "../outside.mp4"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRemoveMissingObjectIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", logging.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Remove(context.Background(), "jobs/99/000-clip.mp4"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestURLForWithoutBaseFallsBackToPath(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", logging.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if url := store.URLFor("jobs/1/000-clip.mp4"); url != "/jobs/1/000-clip.mp4" {
		t.Fatalf("unexpected url: %s", url)
	}
}
