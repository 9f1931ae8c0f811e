package jobs

import (
	"strings"
	"time"
)

// State represents the lifecycle of a coding job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var allStates = []State{
	StateWaiting,
	StateActive,
	StateDelayed,
	StatePaused,
	StateCompleted,
	StateFailed,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// ParseState normalizes a state string. Unknown values return false.
func ParseState(value string) (State, bool) {
	state := State(strings.ToLower(strings.TrimSpace(value)))
	_, ok := stateSet[state]
	return state, ok
}

// IsTerminal reports whether a job in this state will never run again
// without an explicit resume.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed:
		return true
	default:
		return false
	}
}

// BatchSpec is the payload of a coding job: which persons of a workspace to
// code, in which run. PersonIDs and Groups are alternatives; when Groups is
// set the coordinator resolves the considered persons of those groups.
type BatchSpec struct {
	WorkspaceID int64    `json:"workspaceId"`
	PersonIDs   []string `json:"personIds,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Run         int      `json:"run"`
}

// Job represents one coding job persisted in SQLite.
type Job struct {
	ID            string
	WorkspaceID   int64
	Spec          BatchSpec
	State         State
	IsPaused      bool
	Progress      float64
	ErrorMessage  string
	ResultJSON    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AvailableAt   time.Time
	LastHeartbeat *time.Time
}

// Result is the terminal outcome a batch runner reports for a job.
type Result struct {
	Cancelled      bool           `json:"cancelled"`
	TotalResponses int            `json:"totalResponses"`
	StatusCounts   map[string]int `json:"statusCounts"`
}

// Stats is a count of jobs grouped by state.
type Stats map[State]int

// Total sums all state counts.
func (s Stats) Total() int {
	total := 0
	for _, count := range s {
		total += count
	}
	return total
}
