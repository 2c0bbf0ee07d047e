// Package encoding turns transform specs into encoder invocations. The
// ffmpeg adapter builds the argument list from the declarative spec and
// shells out; ffprobe reads back the metadata recorded on the clip row.
package encoding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/transform"
)

// ClipArtifact describes one rendered clip on disk.
type ClipArtifact struct {
	Path        string
	DurationSec float64
	Width       int
	Height      int
	FileSize    int64
}

// Encoder renders a clip from a staged source according to a spec.
type Encoder interface {
	Encode(ctx context.Context, sourcePath, outputPath string, spec transform.Spec) (ClipArtifact, error)
	Thumbnail(ctx context.Context, sourcePath, outputPath string, atSec float64) error
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// FFmpegEncoder shells out to ffmpeg and ffprobe.
type FFmpegEncoder struct {
	ffmpegBin  string
	ffprobeBin string
	timeout    time.Duration
	logger     *slog.Logger
	run        commandRunner
}

// NewFFmpegEncoder builds the default encoder.
func NewFFmpegEncoder(ffmpegBin, ffprobeBin string, timeout time.Duration, logger *slog.Logger) *FFmpegEncoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = time.Hour
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpegEncoder{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		timeout:    timeout,
		logger:     logger,
		run:        runCommand,
	}
}

// Encode renders the clip and probes the result.
func (e *FFmpegEncoder) Encode(ctx context.Context, sourcePath, outputPath string, spec transform.Spec) (ClipArtifact, error) {
	args := BuildArgs(sourcePath, outputPath, spec)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	output, err := e.run(runCtx, e.ffmpegBin, args...)
	if err != nil {
		_ = os.Remove(outputPath)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ClipArtifact{}, services.Wrap(services.ErrTimeout, "encoding", "encode", "encode exceeded its timeout", err)
		}
		return ClipArtifact{}, services.Wrap(services.ErrExternalTool, "encoding", "encode",
			"ffmpeg failed: "+tailLines(output, 4), err)
	}

	e.logger.Info("encoded clip",
		logging.String("output", outputPath),
		logging.Duration("elapsed", time.Since(start)),
	)
	return e.probe(ctx, outputPath)
}

// Thumbnail extracts a single frame at the given offset.
func (e *FFmpegEncoder) Thumbnail(ctx context.Context, sourcePath, outputPath string, atSec float64) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(atSec),
		"-i", sourcePath,
		"-frames:v", "1",
		"-q:v", "3",
		outputPath,
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := e.run(runCtx, e.ffmpegBin, args...)
	if err != nil {
		_ = os.Remove(outputPath)
		return services.Wrap(services.ErrExternalTool, "encoding", "thumbnail",
			"ffmpeg thumbnail failed: "+tailLines(output, 2), err)
	}
	return nil
}

// probeResult mirrors the ffprobe -show_format/-show_streams JSON we need.
type probeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

func (e *FFmpegEncoder) probe(ctx context.Context, path string) (ClipArtifact, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	output, err := e.run(runCtx, e.ffprobeBin, args...)
	if err != nil {
		return ClipArtifact{}, services.Wrap(services.ErrExternalTool, "encoding", "probe", "ffprobe failed", err)
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ClipArtifact{}, services.Wrap(services.ErrExternalTool, "encoding", "probe", "parse ffprobe output", err)
	}

	artifact := ClipArtifact{Path: path}
	if result.Format.Duration != "" {
		artifact.DurationSec, _ = strconv.ParseFloat(result.Format.Duration, 64)
	}
	if result.Format.Size != "" {
		artifact.FileSize, _ = strconv.ParseInt(result.Format.Size, 10, 64)
	}
	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			artifact.Width = stream.Width
			artifact.Height = stream.Height
			break
		}
	}
	if artifact.FileSize == 0 {
		if info, statErr := os.Stat(path); statErr == nil {
			artifact.FileSize = info.Size()
		}
	}
	return artifact, nil
}

// BuildArgs translates a transform spec into the ffmpeg argument list.
// Seeking happens before the input for fast keyframe seek; the filter chain
// is passed through in spec order.
func BuildArgs(sourcePath, outputPath string, spec transform.Spec) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", formatSeconds(spec.StartSec),
		"-i", sourcePath,
		"-t", formatSeconds(spec.Duration()),
	}

	if len(spec.Filters) > 0 {
		args = append(args, "-vf", strings.Join(spec.Filters, ","))
	}
	if len(spec.AudioFilters) > 0 {
		args = append(args, "-af", strings.Join(spec.AudioFilters, ","))
	}

	args = append(args,
		"-c:v", spec.VideoCodec,
		"-preset", spec.Preset,
		"-crf", strconv.Itoa(spec.CRF),
	)
	if spec.VideoBitrateKbps > 0 {
		bitrate := strconv.Itoa(spec.VideoBitrateKbps) + "k"
		args = append(args,
			"-maxrate", bitrate,
			"-bufsize", strconv.Itoa(spec.VideoBitrateKbps*2)+"k",
		)
	}
	if spec.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(spec.FrameRate))
	}
	args = append(args,
		"-c:a", spec.AudioCodec,
		"-b:a", strconv.Itoa(spec.AudioBitrateKbps)+"k",
	)
	if spec.Format == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outputPath)
	return args
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func tailLines(output []byte, n int) string {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 {
		return "no output"
	}
	lines := strings.Split(string(trimmed), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err != nil {
		return buf.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return buf.Bytes(), nil
}
