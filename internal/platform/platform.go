// Package platform defines the delivery profiles for each supported target
// platform: aspect ratio, clip duration ceilings, upload size ceilings, and
// the enhancement preset applied during encoding.
package platform

import (
	"fmt"
	"strings"
)

// Profile describes the delivery constraints for one target platform.
type Profile struct {
	Name string
	// AspectW/AspectH describe the output aspect ratio. Every supported
	// platform currently ships 9:16 vertical video.
	AspectW int
	AspectH int
	// MaxClipSeconds is the longest clip the platform accepts.
	MaxClipSeconds float64
	// MaxSizeMB is the platform's upload size ceiling.
	MaxSizeMB int
	// FrameRate is the output frame rate.
	FrameRate int
	// Enhance names the sharpen/contrast preset applied for the platform.
	Enhance string
}

var profiles = map[string]Profile{
	"tiktok": {
		Name:           "tiktok",
		AspectW:        9,
		AspectH:        16,
		MaxClipSeconds: 180,
		MaxSizeMB:      287,
		FrameRate:      30,
		Enhance:        "punch",
	},
	"instagram": {
		Name:           "instagram",
		AspectW:        9,
		AspectH:        16,
		MaxClipSeconds: 90,
		MaxSizeMB:      100,
		FrameRate:      30,
		Enhance:        "warm",
	},
	"youtube": {
		Name:           "youtube",
		AspectW:        9,
		AspectH:        16,
		MaxClipSeconds: 60,
		MaxSizeMB:      256,
		FrameRate:      30,
		Enhance:        "crisp",
	},
}

// Names returns the supported platform names in stable order.
func Names() []string {
	return []string{"tiktok", "instagram", "youtube"}
}

// Lookup resolves a platform name to its profile.
func Lookup(name string) (Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	profile, ok := profiles[normalized]
	if !ok {
		return Profile{}, fmt.Errorf("unknown platform %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return profile, nil
}

// Known reports whether a platform name is supported.
func Known(name string) bool {
	_, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
