// Package jobspec defines the validated submission payload for a clip job:
// the ordered highlight segments and the processing options that shape every
// clip. It is the shared vocabulary between the API boundary, the queue
// store, and the transform builder.
//
// Options are a closed, enumerated struct. Submissions with unknown fields or
// out-of-range values are rejected at the boundary instead of being carried
// as loose JSON through the pipeline.
package jobspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"clipper/internal/plan"
	"clipper/internal/platform"
)

// Segment is a requested time range plus target platform and advisory score.
type Segment struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Title    string  `json:"title"`
	Platform string  `json:"platform"`
	// AIScore is the analyzer's confidence for this highlight. Advisory only;
	// it never changes processing behaviour.
	AIScore float64 `json:"ai_score,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSec - s.StartSec
}

// Midpoint returns the instant used to sample the tracking timeline.
func (s Segment) Midpoint() float64 {
	return s.StartSec + s.Duration()/2
}

// Validate checks segment fields that do not depend on a platform profile.
// Duration ceilings are enforced per platform by the transform builder.
func (s Segment) Validate() error {
	if s.EndSec <= s.StartSec {
		return fmt.Errorf("segment end %.2f must be after start %.2f", s.EndSec, s.StartSec)
	}
	if s.StartSec < 0 {
		return fmt.Errorf("segment start %.2f must not be negative", s.StartSec)
	}
	if !platform.Known(s.Platform) {
		return fmt.Errorf("unknown platform %q", s.Platform)
	}
	return nil
}

// Anchor names a watermark overlay position.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
	AnchorCenter      Anchor = "center"
)

var anchors = map[Anchor]struct{}{
	AnchorTopLeft:     {},
	AnchorTopRight:    {},
	AnchorBottomLeft:  {},
	AnchorBottomRight: {},
	AnchorCenter:      {},
}

// ParseAnchor converts a string into a known Anchor.
func ParseAnchor(value string) (Anchor, error) {
	normalized := Anchor(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return AnchorBottomRight, nil
	}
	if _, ok := anchors[normalized]; !ok {
		return "", fmt.Errorf("unknown watermark anchor %q", value)
	}
	return normalized, nil
}

// Watermark configures the overlay stamped onto clips.
type Watermark struct {
	Text   string `json:"text"`
	Anchor Anchor `json:"anchor"`
	// Box draws a translucent background behind the text.
	Box bool `json:"box"`
}

// Quality selects the encoder speed/size trade-off.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality converts a string into a known Quality, defaulting to medium.
func ParseQuality(value string) (Quality, error) {
	normalized := Quality(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return QualityMedium, nil
	case QualityLow, QualityMedium, QualityHigh:
		return normalized, nil
	default:
		return "", fmt.Errorf("unknown quality %q (supported: low, medium, high)", value)
	}
}

// TrackingOptions tunes the optional subject-tracking analysis.
type TrackingOptions struct {
	Sensitivity float64 `json:"sensitivity,omitempty"`
}

// Options is the validated per-job processing configuration.
type Options struct {
	ApplyWatermark  bool            `json:"apply_watermark"`
	Watermark       Watermark       `json:"watermark,omitempty"`
	MaxResolution   plan.Resolution `json:"max_resolution"`
	Quality         Quality         `json:"quality"`
	Format          string          `json:"format"`
	SubjectTracking bool            `json:"subject_tracking"`
	Tracking        TrackingOptions `json:"tracking,omitempty"`
	EnhanceAudio    bool            `json:"enhance_audio"`
}

var formats = map[string]struct{}{
	"mp4":  {},
	"webm": {},
}

// Normalize fills defaults and canonicalizes enumerated fields in place.
func (o *Options) Normalize() error {
	resolution := strings.TrimSpace(string(o.MaxResolution))
	if resolution == "" {
		resolution = string(plan.Res1080p)
	}
	parsed, err := plan.ParseResolution(resolution)
	if err != nil {
		return err
	}
	o.MaxResolution = parsed

	quality, err := ParseQuality(string(o.Quality))
	if err != nil {
		return err
	}
	o.Quality = quality

	anchor, err := ParseAnchor(string(o.Watermark.Anchor))
	if err != nil {
		return err
	}
	o.Watermark.Anchor = anchor

	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "" {
		o.Format = "mp4"
	}
	if _, ok := formats[o.Format]; !ok {
		return fmt.Errorf("unknown format %q (supported: mp4, webm)", o.Format)
	}

	if o.Tracking.Sensitivity < 0 || o.Tracking.Sensitivity > 1 {
		return fmt.Errorf("tracking sensitivity %.2f must be within [0, 1]", o.Tracking.Sensitivity)
	}
	return nil
}

// DecodeOptions parses and validates a JSON options payload, rejecting
// unknown fields.
func DecodeOptions(data []byte) (Options, error) {
	var opts Options
	if len(bytes.TrimSpace(data)) == 0 {
		if err := opts.Normalize(); err != nil {
			return Options{}, err
		}
		return opts, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&opts); err != nil {
		return Options{}, fmt.Errorf("parse processing options: %w", err)
	}
	if err := opts.Normalize(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// EncodeOptions serializes options for persistence.
func EncodeOptions(opts Options) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshal processing options: %w", err)
	}
	return string(data), nil
}
