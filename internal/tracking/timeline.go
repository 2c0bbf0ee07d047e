// Package tracking models the subject-tracking timeline produced by the
// external analyzer and the client used to invoke it.
//
// The timeline is advisory: the transform builder consumes it when a window
// covers a segment's midpoint, and falls back to a centered crop otherwise.
// The analyzer is optional and its failure never fails a job.
package tracking

import "sort"

// Rect is a crop rectangle in source pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Window maps a time range of the source to a crop rectangle.
type Window struct {
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Crop     Rect    `json:"crop"`
}

// Timeline is the piecewise crop schedule for one source video.
type Timeline struct {
	Windows []Window `json:"windows"`
}

// Normalize sorts windows by start time and drops empty or inverted ones.
func (t Timeline) Normalize() Timeline {
	windows := make([]Window, 0, len(t.Windows))
	for _, w := range t.Windows {
		if w.EndSec <= w.StartSec {
			continue
		}
		if w.Crop.Width <= 0 || w.Crop.Height <= 0 {
			continue
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].StartSec < windows[j].StartSec })
	return Timeline{Windows: windows}
}

// CropAt returns the crop rectangle of the window covering the given instant,
// if any. Used with a segment's midpoint to pick one stable crop per clip.
func (t Timeline) CropAt(sec float64) (Rect, bool) {
	for _, w := range t.Windows {
		if sec >= w.StartSec && sec < w.EndSec {
			return w.Crop, true
		}
	}
	return Rect{}, false
}

// Empty reports whether the timeline carries no usable windows.
func (t Timeline) Empty() bool {
	return len(t.Windows) == 0
}
