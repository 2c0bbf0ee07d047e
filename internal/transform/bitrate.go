package transform

import "math"

const (
	// audioBudgetKbps is the fixed bitrate reserved for the audio stream.
	audioBudgetKbps = 128
	// sizeSafetyMargin keeps the projected file below the platform ceiling.
	sizeSafetyMargin = 0.9
	// minVideoKbps is the floor below which clips are not worth shipping.
	minVideoKbps = 500
)

// TargetVideoKbps computes the video bitrate cap for a clip of the given
// duration against a platform upload ceiling. The budget reserves a 10%
// safety margin and the fixed audio allocation, and never drops below the
// 500 kbps floor.
func TargetVideoKbps(maxSizeMB int, durationSec float64) int {
	if durationSec <= 0 {
		return minVideoKbps
	}
	budgetBits := float64(maxSizeMB) * 8 * 1024 * 1024 * sizeSafetyMargin
	audioBits := float64(audioBudgetKbps) * 1024 * durationSec
	kbps := math.Floor((budgetBits - audioBits) / 1024 / durationSec)
	if kbps < minVideoKbps {
		return minVideoKbps
	}
	return int(kbps)
}
