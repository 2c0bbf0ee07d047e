// Package transform builds the declarative per-clip render description.
//
// Build is a pure function from (segment, options, plan limits, tracking
// timeline, platform profile) to a TransformSpec. The spec carries no
// executable code; the encoding package translates it into an encoder
// invocation. Identical inputs always produce an identical spec.
package transform

import (
	"clipper/internal/jobspec"
	"clipper/internal/plan"
	"clipper/internal/tracking"
)

// Spec is the encoder-agnostic description of how one segment is rendered.
type Spec struct {
	// Time range of the source selected for this clip.
	StartSec float64
	EndSec   float64

	// Resolved output dimensions after clamping to the plan ceiling.
	Width  int
	Height int

	// Crop is the tracked subject rectangle. Nil means the centered-crop
	// fallback expression in Filters already handles framing.
	Crop *tracking.Rect

	// Filters is the ordered video filter chain: crop, scale, pad,
	// enhancement, watermark.
	Filters []string

	// AudioFilters is the ordered audio chain, empty unless audio
	// enhancement was requested.
	AudioFilters []string

	// Codec parameters.
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int

	// VideoBitrateKbps caps the video stream so the clip fits under the
	// platform's upload ceiling. AudioBitrateKbps is the fixed audio budget.
	VideoBitrateKbps int
	AudioBitrateKbps int

	FrameRate int
	Format    string

	// Watermarked records whether the overlay was applied (by request or
	// forced by the plan).
	Watermarked bool
}

// Duration returns the clip length in seconds.
func (s Spec) Duration() float64 {
	return s.EndSec - s.StartSec
}

// Resolution reports which named ceiling produced the spec dimensions.
func (s Spec) Resolution() plan.Resolution {
	switch s.Width {
	case 2160:
		return plan.Res4K
	case 1080:
		return plan.Res1080p
	default:
		return plan.Res720p
	}
}

// QualityParams maps a quality preset to encoder speed and CRF.
type QualityParams struct {
	Preset string
	CRF    int
}

var qualityParams = map[jobspec.Quality]QualityParams{
	jobspec.QualityLow:    {Preset: "veryfast", CRF: 28},
	jobspec.QualityMedium: {Preset: "fast", CRF: 23},
	jobspec.QualityHigh:   {Preset: "slow", CRF: 19},
}

// ParamsForQuality resolves the encoder parameters for a quality preset.
func ParamsForQuality(q jobspec.Quality) QualityParams {
	if params, ok := qualityParams[q]; ok {
		return params
	}
	return qualityParams[jobspec.QualityMedium]
}
