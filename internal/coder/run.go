package coder

import "fmt"

// RunVersion selects which result slot an autocoder run writes. The first run
// writes the v1 triple; the second run writes the v3 triple (v2 is reserved
// for manual coding).
type RunVersion int

const (
	RunFirst  RunVersion = 1
	RunSecond RunVersion = 2
)

// Valid reports whether the run version is one the engine knows.
func (r RunVersion) Valid() bool {
	return r == RunFirst || r == RunSecond
}

func (r RunVersion) String() string {
	switch r {
	case RunFirst:
		return "run-1"
	case RunSecond:
		return "run-2"
	default:
		return fmt.Sprintf("run-%d", int(r))
	}
}

// ParseRunVersion converts the persisted numeric form into a RunVersion.
func ParseRunVersion(value int) (RunVersion, error) {
	run := RunVersion(value)
	if !run.Valid() {
		return 0, fmt.Errorf("run version %d not supported", value)
	}
	return run, nil
}
