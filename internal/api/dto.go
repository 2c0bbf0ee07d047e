package api

import (
	"encoding/json"
	"time"

	"clipper/internal/jobspec"
	"clipper/internal/queue"
)

// SubmitRequest is the job submission payload.
type SubmitRequest struct {
	OwnerID   string            `json:"owner_id"`
	PlanCode  string            `json:"plan_code"`
	SourceRef string            `json:"source_ref"`
	Segments  []jobspec.Segment `json:"segments"`
	// Options is validated strictly; unknown fields are rejected.
	Options json.RawMessage `json:"options,omitempty"`
}

// ClipView is the wire shape of one clip's state.
type ClipView struct {
	Seq          int     `json:"seq"`
	StartSec     float64 `json:"start_sec"`
	EndSec       float64 `json:"end_sec"`
	Title        string  `json:"title,omitempty"`
	Platform     string  `json:"platform"`
	Status       string  `json:"status"`
	OutputURL    string  `json:"output_url,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Error        string  `json:"error,omitempty"`
	DurationSec  float64 `json:"duration_sec,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	FileSize     int64   `json:"file_size,omitempty"`
}

// JobView is the wire shape of a job's state.
type JobView struct {
	ID              int64      `json:"id"`
	OwnerID         string     `json:"owner_id"`
	PlanCode        string     `json:"plan_code"`
	SourceRef       string     `json:"source_ref"`
	Status          string     `json:"status"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	ErrorSummary    string     `json:"error_summary,omitempty"`
	RetryCount      int        `json:"retry_count"`
	MaxRetries      int        `json:"max_retries"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	OutputURLs      []string   `json:"output_urls,omitempty"`
	Clips           []ClipView `json:"clips,omitempty"`
}

// ErrorBody is the wire shape of a rejected request.
type ErrorBody struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	UpgradeRequired bool   `json:"upgrade_required,omitempty"`
}

// FromJob converts a stored job (and optionally its clips) to the wire view.
func FromJob(job *queue.Job, clips []*queue.Clip) JobView {
	return jobView(job, clips)
}

func jobView(job *queue.Job, clips []*queue.Clip) JobView {
	view := JobView{
		ID:              job.ID,
		OwnerID:         job.OwnerID,
		PlanCode:        job.PlanCode,
		SourceRef:       job.SourceRef,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		ErrorSummary:    job.ErrorSummary,
		RetryCount:      job.RetryCount,
		MaxRetries:      job.MaxRetries,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
	}
	for _, clip := range clips {
		if clip.Status == queue.ClipCompleted && clip.OutputURL != "" {
			view.OutputURLs = append(view.OutputURLs, clip.OutputURL)
		}
		view.Clips = append(view.Clips, ClipView{
			Seq:          clip.Seq,
			StartSec:     clip.StartSec,
			EndSec:       clip.EndSec,
			Title:        clip.Title,
			Platform:     clip.Platform,
			Status:       string(clip.Status),
			OutputURL:    clip.OutputURL,
			ThumbnailURL: clip.ThumbnailURL,
			Error:        clip.ErrorMessage,
			DurationSec:  clip.DurationSec,
			Width:        clip.Width,
			Height:       clip.Height,
			FileSize:     clip.FileSize,
		})
	}
	return view
}
