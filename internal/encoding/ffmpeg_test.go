package encoding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/services"
	"clipper/internal/transform"
)

func sampleSpec() transform.Spec {
	return transform.Spec{
		StartSec:         12.5,
		EndSec:           42.5,
		Width:            1080,
		Height:           1920,
		Filters:          []string{"crop=640:1138:320:200", "scale=1080:1920:force_original_aspect_ratio=decrease", "setsar=1", "pad=1080:1920:(ow-iw)/2:(oh-ih)/2"},
		AudioFilters:     []string{"highpass=f=80", "loudnorm=I=-16:TP=-1.5:LRA=11"},
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		Preset:           "fast",
		CRF:              23,
		VideoBitrateKbps: 6000,
		AudioBitrateKbps: 128,
		FrameRate:        30,
		Format:           "mp4",
	}
}

func TestBuildArgsOrdering(t *testing.T) {
	args := BuildArgs("/work/source.media", "/work/clip-000.mp4", sampleSpec())
	joined := strings.Join(args, " ")

	ssIdx := strings.Index(joined, "-ss 12.500")
	inIdx := strings.Index(joined, "-i /work/source.media")
	if ssIdx == -1 || inIdx == -1 || ssIdx > inIdx {
		t.Fatalf("expected input seek before -i, got: %s", joined)
	}
	if !strings.Contains(joined, "-t 30.000") {
		t.Fatalf("expected clip duration, got: %s", joined)
	}
	if !strings.Contains(joined, "-vf crop=640:1138:320:200,scale=1080:1920:force_original_aspect_ratio=decrease,setsar=1,pad=1080:1920:(ow-iw)/2:(oh-ih)/2") {
		t.Fatalf("filter chain not passed through in order: %s", joined)
	}
	if !strings.Contains(joined, "-af highpass=f=80,loudnorm=I=-16:TP=-1.5:LRA=11") {
		t.Fatalf("audio chain missing: %s", joined)
	}
	if !strings.Contains(joined, "-maxrate 6000k") || !strings.Contains(joined, "-bufsize 12000k") {
		t.Fatalf("bitrate cap missing: %s", joined)
	}
	if !strings.Contains(joined, "-movflags +faststart") {
		t.Fatalf("mp4 faststart missing: %s", joined)
	}
	if args[len(args)-1] != "/work/clip-000.mp4" {
		t.Fatalf("output path must be last, got %s", args[len(args)-1])
	}
}

func TestBuildArgsWebmSkipsFaststart(t *testing.T) {
	spec := sampleSpec()
	spec.Format = "webm"
	spec.VideoCodec = "libvpx-vp9"
	spec.AudioCodec = "libopus"

	joined := strings.Join(BuildArgs("in", "out.webm", spec), " ")
	if strings.Contains(joined, "faststart") {
		t.Fatalf("webm output must not carry mp4 flags: %s", joined)
	}
	if !strings.Contains(joined, "-c:v libvpx-vp9") || !strings.Contains(joined, "-c:a libopus") {
		t.Fatalf("webm codecs missing: %s", joined)
	}
}

func TestBuildArgsZeroBitrateOmitsCap(t *testing.T) {
	spec := sampleSpec()
	spec.VideoBitrateKbps = 0

	joined := strings.Join(BuildArgs("in", "out.mp4", spec), " ")
	if strings.Contains(joined, "-maxrate") {
		t.Fatalf("expected no bitrate cap: %s", joined)
	}
}

func TestEncodeWrapsToolFailure(t *testing.T) {
	encoder := NewFFmpegEncoder("ffmpeg", "ffprobe", time.Minute, logging.NewNop())
	encoder.run = func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("frame= 0\nError while filtering"), errors.New("exit status 1")
	}

	_, err := encoder.Encode(context.Background(), "in", "out.mp4", sampleSpec())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "Error while filtering") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestEncodeProbesArtifact(t *testing.T) {
	probeJSON := `{
        "streams": [{"codec_type": "audio"}, {"codec_type": "video", "width": 1080, "height": 1920}],
        "format": {"duration": "30.016", "size": "8388608"}
    }`

	encoder := NewFFmpegEncoder("ffmpeg", "ffprobe", time.Minute, logging.NewNop())
	encoder.run = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		if strings.Contains(name, "ffprobe") {
			return []byte(probeJSON), nil
		}
		return nil, nil
	}

	artifact, err := encoder.Encode(context.Background(), "in", "out.mp4", sampleSpec())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if artifact.Width != 1080 || artifact.Height != 1920 {
		t.Fatalf("unexpected dimensions: %dx%d", artifact.Width, artifact.Height)
	}
	if artifact.DurationSec != 30.016 {
		t.Fatalf("unexpected duration: %v", artifact.DurationSec)
	}
	if artifact.FileSize != 8388608 {
		t.Fatalf("unexpected size: %d", artifact.FileSize)
	}
}
