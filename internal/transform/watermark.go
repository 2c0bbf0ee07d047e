package transform

import (
	"fmt"
	"strings"

	"clipper/internal/jobspec"
)

// watermarkMargin is the pixel inset from the frame edge for corner anchors.
const watermarkMargin = 24

var anchorPositions = map[jobspec.Anchor][2]string{
	jobspec.AnchorTopLeft:     {fmt.Sprintf("%d", watermarkMargin), fmt.Sprintf("%d", watermarkMargin)},
	jobspec.AnchorTopRight:    {fmt.Sprintf("w-tw-%d", watermarkMargin), fmt.Sprintf("%d", watermarkMargin)},
	jobspec.AnchorBottomLeft:  {fmt.Sprintf("%d", watermarkMargin), fmt.Sprintf("h-th-%d", watermarkMargin)},
	jobspec.AnchorBottomRight: {fmt.Sprintf("w-tw-%d", watermarkMargin), fmt.Sprintf("h-th-%d", watermarkMargin)},
	jobspec.AnchorCenter:      {"(w-tw)/2", "(h-th)/2"},
}

// watermarkFilter renders the overlay as a drawtext expression with one of
// the five anchor presets and an optional background box.
func watermarkFilter(wm jobspec.Watermark) string {
	text := strings.TrimSpace(wm.Text)
	if text == "" {
		text = "clipper"
	}
	pos, ok := anchorPositions[wm.Anchor]
	if !ok {
		pos = anchorPositions[jobspec.AnchorBottomRight]
	}

	parts := []string{
		fmt.Sprintf("text='%s'", escapeDrawtext(text)),
		"fontsize=h/28",
		"fontcolor=white@0.85",
		"x=" + pos[0],
		"y=" + pos[1],
	}
	if wm.Box {
		parts = append(parts, "box=1", "boxcolor=black@0.4", "boxborderw=8")
	}
	return "drawtext=" + strings.Join(parts, ":")
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}
