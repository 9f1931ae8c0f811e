package batch

import "autocoder/internal/coder"

// State tags how a batch run ended. A cancelled run is a valid partial
// result, not a failure.
type State string

const (
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Outcome is the result of one batch run. TotalResponses and StatusCounts
// reflect whatever had been computed when the run ended; for a failed run
// they are the pre-persistence snapshot and Err carries the cause.
type Outcome struct {
	State          State
	TotalResponses int
	StatusCounts   map[coder.Status]int
	Err            error
}

func completed(counts map[coder.Status]int, total int) Outcome {
	return Outcome{State: StateCompleted, TotalResponses: total, StatusCounts: counts}
}

func cancelled(counts map[coder.Status]int, total int) Outcome {
	return Outcome{State: StateCancelled, TotalResponses: total, StatusCounts: counts}
}

// Empty is the zero outcome returned by the short-circuit paths: nothing to
// do is a completed run.
func Empty() Outcome {
	return Outcome{State: StateCompleted, StatusCounts: map[coder.Status]int{}}
}

// CountsByName renders the status tally keyed by status name, the shape the
// job queue records.
func (o Outcome) CountsByName() map[string]int {
	out := make(map[string]int, len(o.StatusCounts))
	for status, count := range o.StatusCounts {
		out[status.String()] = count
	}
	return out
}
