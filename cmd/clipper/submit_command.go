package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/api"
	"clipper/internal/jobspec"
	"clipper/internal/plan"
	"clipper/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		owner            string
		planCode         string
		platformName     string
		segmentSpecs     []string
		quality          string
		format           string
		maxResolution    string
		watermarkText    string
		watermarkAnchor  string
		watermarkBox     bool
		subjectTracking  bool
		trackSensitivity float64
		enhanceAudio     bool
		watch            bool
	)

	cmd := &cobra.Command{
		Use:   "submit SOURCE",
		Short: "Submit a highlight job to the daemon",
		Long: `Submit a source video with one or more highlight segments.

Each --segment takes a START-END range in seconds, with an optional
per-segment platform override:

  clipper submit vod.mp4 --owner alice --segment 12.5-42.5 --segment 90-118:youtube`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := parseSegments(segmentSpecs, platformName)
			if err != nil {
				return err
			}

			opts := jobspec.Options{
				ApplyWatermark: strings.TrimSpace(watermarkText) != "",
				Watermark: jobspec.Watermark{
					Text:   strings.TrimSpace(watermarkText),
					Anchor: jobspec.Anchor(watermarkAnchor),
					Box:    watermarkBox,
				},
				MaxResolution:   plan.Resolution(maxResolution),
				Quality:         jobspec.Quality(quality),
				Format:          format,
				SubjectTracking: subjectTracking,
				Tracking:        jobspec.TrackingOptions{Sensitivity: trackSensitivity},
				EnhanceAudio:    enhanceAudio,
			}
			if err := opts.Normalize(); err != nil {
				return err
			}
			encoded, err := jobspec.EncodeOptions(opts)
			if err != nil {
				return err
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			view, err := client.Submit(cmd.Context(), api.SubmitRequest{
				OwnerID:   owner,
				PlanCode:  planCode,
				SourceRef: args[0],
				Segments:  segments,
				Options:   json.RawMessage(encoded),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %d queued with %d clips\n", view.ID, len(segments))
			if !watch {
				return nil
			}

			lastMessage := ""
			final, err := client.Watch(cmd.Context(), view.ID, func(v api.JobView) {
				message := v.ProgressMessage
				if message == lastMessage && message != "" {
					message = ""
				} else {
					lastMessage = v.ProgressMessage
				}
				fmt.Fprintf(out, "%3.0f%% %-10s %s\n", v.ProgressPercent, v.Status, message)
			})
			if err != nil {
				return err
			}
			return printFinalJob(out, final)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner account the job belongs to")
	cmd.Flags().StringVar(&planCode, "plan", "", "Plan code to bill against (default free)")
	cmd.Flags().StringSliceVar(&segmentSpecs, "segment", nil, "Highlight range START-END[:platform] in seconds (repeatable)")
	cmd.Flags().StringVar(&platformName, "platform", "tiktok", "Default target platform for segments")
	cmd.Flags().StringVar(&quality, "quality", "", "Encode quality: low, medium, high")
	cmd.Flags().StringVar(&format, "format", "", "Container format: mp4 or webm")
	cmd.Flags().StringVar(&maxResolution, "max-resolution", "", "Resolution ceiling, e.g. 720p or 1080p")
	cmd.Flags().StringVar(&watermarkText, "watermark", "", "Watermark text to overlay on every clip")
	cmd.Flags().StringVar(&watermarkAnchor, "watermark-anchor", "", "Watermark position, e.g. bottom-right")
	cmd.Flags().BoolVar(&watermarkBox, "watermark-box", false, "Draw a translucent box behind the watermark")
	cmd.Flags().BoolVar(&subjectTracking, "tracking", false, "Enable subject tracking for the vertical crop")
	cmd.Flags().Float64Var(&trackSensitivity, "tracking-sensitivity", 0, "Tracking sensitivity within [0, 1]")
	cmd.Flags().BoolVar(&enhanceAudio, "enhance-audio", false, "Apply audio cleanup filters")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll the job until it finishes")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("segment")

	return cmd
}

func parseSegments(specs []string, defaultPlatform string) ([]jobspec.Segment, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one --segment is required")
	}
	segments := make([]jobspec.Segment, 0, len(specs))
	for _, spec := range specs {
		segment, err := parseSegment(spec, defaultPlatform)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func parseSegment(spec, defaultPlatform string) (jobspec.Segment, error) {
	value := strings.TrimSpace(spec)
	platformName := strings.TrimSpace(defaultPlatform)
	if rangePart, rest, ok := strings.Cut(value, ":"); ok {
		value = rangePart
		if override := strings.TrimSpace(rest); override != "" {
			platformName = override
		}
	}

	startPart, endPart, ok := strings.Cut(value, "-")
	if !ok {
		return jobspec.Segment{}, fmt.Errorf("segment %q must look like START-END", spec)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startPart), 64)
	if err != nil {
		return jobspec.Segment{}, fmt.Errorf("segment %q: invalid start: %w", spec, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endPart), 64)
	if err != nil {
		return jobspec.Segment{}, fmt.Errorf("segment %q: invalid end: %w", spec, err)
	}

	segment := jobspec.Segment{StartSec: start, EndSec: end, Platform: platformName}
	if err := segment.Validate(); err != nil {
		return jobspec.Segment{}, err
	}
	return segment, nil
}

func printFinalJob(out io.Writer, view api.JobView) error {
	for _, clip := range view.Clips {
		if clip.OutputURL != "" {
			fmt.Fprintf(out, "clip %d: %s\n", clip.Seq, clip.OutputURL)
		} else if clip.Error != "" {
			fmt.Fprintf(out, "clip %d: failed: %s\n", clip.Seq, clip.Error)
		}
	}

	switch view.Status {
	case string(queue.StatusCompleted):
		fmt.Fprintln(out, view.ProgressMessage)
		return nil
	case string(queue.StatusCancelled):
		fmt.Fprintln(out, "Job cancelled")
		return nil
	default:
		summary := view.ErrorSummary
		if summary == "" {
			summary = view.ProgressMessage
		}
		return fmt.Errorf("job %d failed: %s", view.ID, summary)
	}
}
