// Package sourcing stages a job's source video into its workspace. A source
// reference is either a local filesystem path or an http(s) URL; anything
// the provider cannot reach is a permanent source failure, which the
// orchestrator treats as fatal for the whole job.
package sourcing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"clipper/internal/logging"
	"clipper/internal/services"
)

// Provider fetches source videos.
type Provider interface {
	Fetch(ctx context.Context, sourceRef, destPath string) (int64, error)
}

// FileProvider resolves source references against the local filesystem and
// downloads http(s) references with a bounded timeout.
type FileProvider struct {
	client *http.Client
	logger *slog.Logger
}

// NewProvider builds the default source provider.
func NewProvider(downloadTimeout time.Duration, logger *slog.Logger) *FileProvider {
	if downloadTimeout <= 0 {
		downloadTimeout = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileProvider{
		client: &http.Client{Timeout: downloadTimeout},
		logger: logger,
	}
}

// Fetch stages the source at destPath and returns the byte count staged.
func (p *FileProvider) Fetch(ctx context.Context, sourceRef, destPath string) (int64, error) {
	ref := strings.TrimSpace(sourceRef)
	if ref == "" {
		return 0, services.Wrap(services.ErrValidation, "sourcing", "fetch", "source reference is empty", nil)
	}

	if isRemote(ref) {
		return p.download(ctx, ref, destPath)
	}
	return p.copyLocal(ref, destPath)
}

func isRemote(ref string) bool {
	parsed, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

func (p *FileProvider) copyLocal(sourcePath, destPath string) (int64, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "stat source", "source file is not accessible", err)
	}
	if info.IsDir() {
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "stat source", "source reference is a directory", nil)
	}

	in, err := os.Open(sourcePath)
	if err != nil {
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "open source", "source file is not readable", err)
	}
	defer in.Close()

	written, err := p.writeDest(destPath, in)
	if err != nil {
		return 0, err
	}
	p.logger.Info("staged local source",
		logging.String("source", sourcePath),
		logging.String("size", humanize.Bytes(uint64(written))),
	)
	return written, nil
}

func (p *FileProvider) download(ctx context.Context, sourceURL, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "sourcing", "download", "invalid source url", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, services.Wrap(services.ErrTimeout, "sourcing", "download", "source download cancelled or timed out", err)
		}
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "download", "source download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "download",
			fmt.Sprintf("source returned status %d", resp.StatusCode), nil)
	}

	written, err := p.writeDest(destPath, resp.Body)
	if err != nil {
		return 0, err
	}
	p.logger.Info("downloaded source",
		logging.String("source", sourceURL),
		logging.String("size", humanize.Bytes(uint64(written))),
	)
	return written, nil
}

func (p *FileProvider) writeDest(destPath string, reader io.Reader) (int64, error) {
	out, err := os.Create(destPath)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "sourcing", "stage", "create staged source file", err)
	}
	defer out.Close()

	written, err := io.Copy(out, reader)
	if err != nil {
		_ = os.Remove(destPath)
		return 0, services.Wrap(services.ErrTransient, "sourcing", "stage", "write staged source file", err)
	}
	if written == 0 {
		_ = os.Remove(destPath)
		return 0, services.Wrap(services.ErrSourceUnavailable, "sourcing", "stage", "source is empty", nil)
	}
	return written, nil
}
