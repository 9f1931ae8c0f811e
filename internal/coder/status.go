package coder

import "strings"

// Status represents the coding lifecycle state of a response. The numeric
// values are the persisted wire form; names are used in logs, statistics, and
// the CLI. Keep the two in sync when adding states.
type Status int

const (
	StatusUnset              Status = 1
	StatusValueChanged       Status = 2
	StatusCodingIncomplete   Status = 3
	StatusDerivePending      Status = 4
	StatusCodingComplete     Status = 5
	StatusInvalid            Status = 6
	StatusIntendedIncomplete Status = 7
	StatusCodingError        Status = 8
)

var statusNames = map[Status]string{
	StatusUnset:              "UNSET",
	StatusValueChanged:       "VALUE_CHANGED",
	StatusCodingIncomplete:   "CODING_INCOMPLETE",
	StatusDerivePending:      "DERIVE_PENDING",
	StatusCodingComplete:     "CODING_COMPLETE",
	StatusInvalid:            "INVALID",
	StatusIntendedIncomplete: "INTENDED_INCOMPLETE",
	StatusCodingError:        "CODING_ERROR",
}

var statusByName = func() map[string]Status {
	m := make(map[string]Status, len(statusNames))
	for status, name := range statusNames {
		m[name] = status
	}
	return m
}()

// String returns the canonical name for the status, or "UNKNOWN" for
// unrecognized numeric values.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Numeric returns the persisted integer form of the status.
func (s Status) Numeric() int { return int(s) }

// ParseStatus converts a canonical name into a Status.
func ParseStatus(name string) (Status, bool) {
	status, ok := statusByName[strings.ToUpper(strings.TrimSpace(name))]
	return status, ok
}

// FromNumeric converts a persisted integer into a Status.
func FromNumeric(value int) (Status, bool) {
	status := Status(value)
	_, ok := statusNames[status]
	return status, ok
}

// IsRunnable reports whether a response in this state is eligible as input to
// an automated coding run.
func (s Status) IsRunnable() bool {
	switch s {
	case StatusUnset, StatusValueChanged, StatusCodingIncomplete:
		return true
	default:
		return false
	}
}

// AllStatuses returns the known statuses in ascending numeric order.
func AllStatuses() []Status {
	return []Status{
		StatusUnset,
		StatusValueChanged,
		StatusCodingIncomplete,
		StatusDerivePending,
		StatusCodingComplete,
		StatusInvalid,
		StatusIntendedIncomplete,
		StatusCodingError,
	}
}
