package transform

import (
	"errors"
	"fmt"
	"strings"

	"clipper/internal/jobspec"
	"clipper/internal/plan"
	"clipper/internal/platform"
	"clipper/internal/tracking"
)

// ErrInvalidSegment marks a segment whose time range cannot be rendered for
// its platform. It fails only that segment, never the whole batch.
var ErrInvalidSegment = errors.New("invalid segment")

// Build turns one (segment, options, limits, timeline, profile) tuple into a
// TransformSpec. Pure and deterministic.
func Build(
	segment jobspec.Segment,
	opts jobspec.Options,
	limits plan.Limits,
	timeline tracking.Timeline,
	profile platform.Profile,
) (Spec, error) {
	duration := segment.Duration()
	if duration <= 0 {
		return Spec{}, fmt.Errorf("%w: duration %.2fs must be positive", ErrInvalidSegment, duration)
	}
	if duration > profile.MaxClipSeconds {
		return Spec{}, fmt.Errorf("%w: duration %.2fs exceeds %s maximum of %.0fs",
			ErrInvalidSegment, duration, profile.Name, profile.MaxClipSeconds)
	}

	resolution := plan.Clamp(opts.MaxResolution, limits.MaxResolution)
	width, height := resolution.Dimensions()

	spec := Spec{
		StartSec:         segment.StartSec,
		EndSec:           segment.EndSec,
		Width:            width,
		Height:           height,
		VideoCodec:       videoCodecFor(opts.Format),
		AudioCodec:       audioCodecFor(opts.Format),
		AudioBitrateKbps: audioBudgetKbps,
		VideoBitrateKbps: TargetVideoKbps(profile.MaxSizeMB, duration),
		FrameRate:        profile.FrameRate,
		Format:           opts.Format,
	}

	params := ParamsForQuality(opts.Quality)
	spec.Preset = params.Preset
	spec.CRF = params.CRF

	// Crop: tracked rectangle covering the segment midpoint wins; otherwise
	// a centered crop to the platform aspect, expressed declaratively so it
	// needs no knowledge of the source dimensions.
	var filters []string
	if crop, ok := timeline.CropAt(segment.Midpoint()); ok {
		rect := crop
		spec.Crop = &rect
		filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", rect.Width, rect.Height, rect.X, rect.Y))
	} else {
		filters = append(filters, centeredCropFilter(profile))
	}

	filters = append(filters,
		fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", width, height),
		"setsar=1",
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
	)

	if enhance := enhancementFilter(profile.Enhance); enhance != "" {
		filters = append(filters, enhance)
	}

	if opts.ApplyWatermark || limits.WatermarkForced {
		filters = append(filters, watermarkFilter(opts.Watermark))
		spec.Watermarked = true
	}
	spec.Filters = filters

	if opts.EnhanceAudio {
		spec.AudioFilters = []string{
			"highpass=f=80",
			"loudnorm=I=-16:TP=-1.5:LRA=11",
		}
	}

	return spec, nil
}

func centeredCropFilter(profile platform.Profile) string {
	// crop defaults its x/y offsets to center the output window. The min()
	// terms keep the expression valid for sources narrower than the target
	// aspect.
	return fmt.Sprintf("crop=min(iw\\,ih*%d/%d):min(ih\\,iw*%d/%d)",
		profile.AspectW, profile.AspectH, profile.AspectH, profile.AspectW)
}

var enhancementFilters = map[string]string{
	"punch": "unsharp=5:5:0.8:3:3:0.4,eq=contrast=1.08:saturation=1.15",
	"warm":  "unsharp=5:5:0.6,eq=contrast=1.05:saturation=1.1:gamma_r=1.02",
	"crisp": "unsharp=7:7:1.0,eq=contrast=1.1",
}

func enhancementFilter(preset string) string {
	return enhancementFilters[strings.ToLower(strings.TrimSpace(preset))]
}

func videoCodecFor(format string) string {
	if format == "webm" {
		return "libvpx-vp9"
	}
	return "libx264"
}

func audioCodecFor(format string) string {
	if format == "webm" {
		return "libopus"
	}
	return "aac"
}
