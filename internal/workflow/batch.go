package workflow

import (
	"fmt"
	"math"

	"clipper/internal/queue"
)

// BatchState tracks how far a job's segment batch has progressed. The
// orchestrator threads it through the segment loop; Advance and Settle are
// pure so the partial-failure rules stay testable without a pipeline.
type BatchState struct {
	Total     int
	Completed int
	Failed    int
	Cancelled bool
}

// Outcome is the terminal result of one segment attempt.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
)

// Advance folds one segment outcome into the batch state and returns the
// job progress it implies: settled segments over total, as a whole percent.
// A failed segment consumes its share of the job the same as a finished one.
func (b BatchState) Advance(outcome Outcome) (BatchState, float64) {
	switch outcome {
	case OutcomeCompleted:
		b.Completed++
	case OutcomeFailed:
		b.Failed++
	}
	return b, b.Percent()
}

// Percent reports settled segments over total, rounded to a whole percent.
func (b BatchState) Percent() float64 {
	if b.Total <= 0 {
		return 0
	}
	settled := b.Completed + b.Failed
	return math.Round(float64(settled) / float64(b.Total) * 100)
}

// Remaining reports how many segments have not settled.
func (b BatchState) Remaining() int {
	return b.Total - b.Completed - b.Failed
}

// Settle derives the job's terminal status and summary message. A batch
// with at least one finished clip completes even when siblings failed; a
// batch where every attempted clip failed fails the job. Cancellation wins
// over both and leaves unattempted segments unsettled.
func (b BatchState) Settle() (queue.Status, string) {
	if b.Cancelled {
		return queue.StatusCancelled, fmt.Sprintf("Cancelled after %d of %d clips", b.Completed, b.Total)
	}
	if b.Completed == 0 {
		return queue.StatusFailed, fmt.Sprintf("All %d clips failed", b.Total)
	}
	if b.Failed > 0 {
		return queue.StatusCompleted, fmt.Sprintf("Completed %d of %d clips (%d failed)", b.Completed, b.Total, b.Failed)
	}
	return queue.StatusCompleted, fmt.Sprintf("Completed %d of %d clips", b.Completed, b.Total)
}
