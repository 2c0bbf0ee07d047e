// Package storage publishes finished clips out of the staging workspace.
// The local store moves artifacts under the publish root and maps them to
// URLs via the configured public base.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Store publishes artifacts and yields their public URLs.
type Store interface {
	Publish(ctx context.Context, localPath, objectKey string) (string, error)
	Remove(ctx context.Context, objectKey string) error
}

// LocalStore publishes artifacts into a directory tree served by the
// daemon's media endpoint.
type LocalStore struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// NewLocalStore builds a store rooted at publishDir. baseURL is the public
// prefix joined with object keys to form clip URLs.
func NewLocalStore(publishDir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if strings.TrimSpace(publishDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "new store", "publish directory is not configured", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LocalStore{
		root:    publishDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Publish moves the artifact under the publish root. The write goes to a
// temp name in the destination directory first so a published key is always
// a complete file.
func (s *LocalStore) Publish(ctx context.Context, localPath, objectKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrTimeout, "storage", "publish", "publish cancelled", err)
	}
	key, err := cleanKey(objectKey)
	if err != nil {
		return "", err
	}

	destPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "publish", "create publish directory", err)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "publish", "stat artifact", err)
	}

	if err := moveFile(localPath, destPath); err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "publish", "move artifact into publish root", err)
	}

	s.logger.Info("published artifact",
		logging.String("key", key),
		logging.String("size", humanize.Bytes(uint64(info.Size()))),
	)
	return s.URLFor(key), nil
}

// Remove deletes a published object. Missing objects are not an error.
func (s *LocalStore) Remove(_ context.Context, objectKey string) error {
	key, err := cleanKey(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrTransient, "storage", "remove", "delete published artifact", err)
	}
	return nil
}

// URLFor maps an object key onto the public URL space.
func (s *LocalStore) URLFor(key string) string {
	if s.baseURL == "" {
		return "/" + key
	}
	return s.baseURL + "/" + key
}

// ObjectKey builds the canonical publish key for a job artifact.
func ObjectKey(jobID int64, seq int, filename string) string {
	return fmt.Sprintf("jobs/%d/%03d-%s", jobID, seq, filename)
}

func cleanKey(objectKey string) (string, error) {
	key := strings.Trim(strings.TrimSpace(objectKey), "/")
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "key", "object key is empty", nil)
	}
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", services.Wrap(services.ErrValidation, "storage", "key", "object key escapes the publish root", nil)
	}
	return cleaned, nil
}

// moveFile renames when possible and falls back to copy+rename across
// filesystems. The staging and publish roots commonly live on different
// mounts.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".partial"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
