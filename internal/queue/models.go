package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// validTransitions encodes the forward-only job state machine. Terminal
// states have no outgoing edges except the failed→queued retry path, which
// the store guards with the retry counter.
var validTransitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusQueued},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status has no forward transitions left.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal forward
// step of the state machine.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ClipStatus represents the lifecycle of one clip segment within a job.
type ClipStatus string

const (
	ClipPending    ClipStatus = "pending"
	ClipProcessing ClipStatus = "processing"
	ClipCompleted  ClipStatus = "completed"
	ClipFailed     ClipStatus = "failed"
)

// Job represents a clip job persisted in SQLite.
type Job struct {
	ID              int64
	OwnerID         string
	PlanCode        string
	SourceRef       string
	OptionsJSON     string
	Status          Status
	ProgressPercent float64
	ProgressMessage string
	ErrorSummary    string
	RetryCount      int
	MaxRetries      int
	CancelRequested bool
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// IsProcessing returns true when the job reflects an in-flight run.
func (j Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}

// CanRetry reports whether a retry request is currently allowed.
func (j Job) CanRetry() bool {
	return j.Status == StatusFailed && j.RetryCount < j.MaxRetries
}

// CanCancel reports whether a cancel request is currently allowed.
func (j Job) CanCancel() bool {
	return j.Status == StatusQueued || j.Status == StatusProcessing
}

// SetFailed records the failure summary on the job. The status itself moves
// through Store.Transition so the state machine stays authoritative.
func (j *Job) SetFailed(summary string) {
	j.ErrorSummary = summary
	j.ProgressMessage = summary
	j.LastHeartbeat = nil
}

// Clip is the per-segment terminal record persisted alongside its job.
type Clip struct {
	JobID        int64
	Seq          int
	StartSec     float64
	EndSec       float64
	Title        string
	Platform     string
	AIScore      float64
	Status       ClipStatus
	OutputURL    string
	ThumbnailURL string
	ErrorMessage string
	DurationSec  float64
	Width        int
	Height       int
	FileSize     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}
