package plan

import (
	"fmt"
	"strings"
)

// Resolution is a named output resolution ceiling.
type Resolution string

const (
	Res720p  Resolution = "720p"
	Res1080p Resolution = "1080p"
	Res4K    Resolution = "4k"
)

var resolutionOrder = map[Resolution]int{
	Res720p:  0,
	Res1080p: 1,
	Res4K:    2,
}

// resolutionDims maps resolutions to their 9:16 vertical output dimensions.
var resolutionDims = map[Resolution][2]int{
	Res720p:  {720, 1280},
	Res1080p: {1080, 1920},
	Res4K:    {2160, 3840},
}

// ParseResolution converts a string into a known Resolution.
func ParseResolution(value string) (Resolution, error) {
	normalized := Resolution(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "2160p" || normalized == "uhd" {
		normalized = Res4K
	}
	if _, ok := resolutionOrder[normalized]; !ok {
		return "", fmt.Errorf("unknown resolution %q (supported: 720p, 1080p, 4k)", value)
	}
	return normalized, nil
}

// Order returns the rank of the resolution for clamp comparisons.
func (r Resolution) Order() int {
	return resolutionOrder[r]
}

// Dimensions returns the vertical (width, height) pixel dimensions.
func (r Resolution) Dimensions() (int, int) {
	dims := resolutionDims[r]
	return dims[0], dims[1]
}

// Clamp resolves a requested resolution against a plan ceiling: the request
// passes through when it does not exceed the cap, otherwise the cap wins.
func Clamp(requested, cap Resolution) Resolution {
	if _, ok := resolutionOrder[requested]; !ok {
		return cap
	}
	if _, ok := resolutionOrder[cap]; !ok {
		return requested
	}
	if requested.Order() <= cap.Order() {
		return requested
	}
	return cap
}
