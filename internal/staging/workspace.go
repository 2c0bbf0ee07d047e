// Package staging manages per-job scratch directories. Every job run gets a
// unique workspace under the configured staging root; the orchestrator
// releases it when the run settles, and a sweeper removes directories left
// behind by crashed runs.
package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// workspacePrefix namespaces staging directories so the stale sweep never
// touches unrelated files placed under the staging root.
const workspacePrefix = "job-"

// Workspace is a scratch directory for one job run.
type Workspace struct {
	JobID int64
	Root  string
}

// SourcePath returns the staged source video location inside the workspace.
func (w Workspace) SourcePath() string {
	return filepath.Join(w.Root, "source.media")
}

// ClipPath returns the render target for one clip sequence.
func (w Workspace) ClipPath(seq int, format string) string {
	return filepath.Join(w.Root, fmt.Sprintf("clip-%03d.%s", seq, format))
}

// ThumbnailPath returns the thumbnail target for one clip sequence.
func (w Workspace) ThumbnailPath(seq int) string {
	return filepath.Join(w.Root, fmt.Sprintf("clip-%03d.jpg", seq))
}

// Manager creates and removes workspaces under one staging root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager builds a workspace manager rooted at stagingDir.
func NewManager(stagingDir string, logger *slog.Logger) (*Manager, error) {
	if strings.TrimSpace(stagingDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "staging", "new manager", "staging directory is not configured", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{root: stagingDir, logger: logger}, nil
}

// Acquire creates a fresh workspace directory for the job. The uuid suffix
// keeps retried runs of the same job from colliding with a directory a
// previous run is still tearing down.
func (m *Manager) Acquire(jobID int64) (Workspace, error) {
	name := fmt.Sprintf("%s%d-%s", workspacePrefix, jobID, uuid.NewString()[:8])
	root := filepath.Join(m.root, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Workspace{}, services.Wrap(services.ErrTransient, "staging", "acquire", "create workspace directory", err)
	}
	m.logger.Debug("workspace acquired",
		logging.Int64(logging.FieldJobID, jobID),
		logging.String("path", root),
	)
	return Workspace{JobID: jobID, Root: root}, nil
}

// Release removes the workspace directory and everything inside it. Safe to
// call for a workspace whose directory is already gone.
func (m *Manager) Release(ws Workspace) error {
	if ws.Root == "" {
		return nil
	}
	if !strings.HasPrefix(filepath.Base(ws.Root), workspacePrefix) {
		return services.Wrap(services.ErrValidation, "staging", "release", "refusing to remove non-workspace path "+ws.Root, nil)
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		return services.Wrap(services.ErrTransient, "staging", "release", "remove workspace directory", err)
	}
	m.logger.Debug("workspace released",
		logging.Int64(logging.FieldJobID, ws.JobID),
		logging.String("path", ws.Root),
	)
	return nil
}

// CleanStale removes workspace directories older than maxAge. Returns the
// number of directories removed.
func (m *Manager) CleanStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrTransient, "staging", "clean stale", "read staging root", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), workspacePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.logger.Warn("failed to remove stale workspace",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("removed stale workspaces", logging.Int("count", removed))
	}
	return removed, nil
}
