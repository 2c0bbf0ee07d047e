package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if cfg.Workflow.QueuePollInterval != 5 {
		t.Errorf("default poll interval = %d", cfg.Workflow.QueuePollInterval)
	}
	if _, ok := cfg.Plans["free"]; !ok {
		t.Error("built-in free plan missing")
	}
}

func TestLoadOverridesAndMergesPlans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
publish_dir = "` + filepath.Join(dir, "publish") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[plans.free]
max_resolution = "720p"
watermark_forced = true
daily_clip_limit = 3
monthly_clip_limit = 30

[plans.enterprise]
max_resolution = "4k"
daily_clip_limit = -1
monthly_clip_limit = -1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("config file not detected")
	}
	if cfg.Plans["free"].DailyClipLimit != 3 {
		t.Errorf("free plan override not applied: %+v", cfg.Plans["free"])
	}
	if _, ok := cfg.Plans["pro"]; !ok {
		t.Error("built-in pro plan should survive user overrides")
	}
	if _, ok := cfg.Plans["enterprise"]; !ok {
		t.Error("user-defined plan missing")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[plans.broken]
max_resolution = "480p"
daily_clip_limit = 0
monthly_clip_limit = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "plans.broken") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	cfg.Paths.PublishDir = filepath.Join(dir, "publish")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Paths.PublishDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Errorf("directory %s missing", p)
		}
	}
}
