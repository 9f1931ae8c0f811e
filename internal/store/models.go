package store

import "autocoder/internal/coder"

// Person is a test-taker. The coding engine reads persons, it never mutates
// them.
type Person struct {
	ID          string
	WorkspaceID int64
	GroupName   string
	Login       string
	Code        string
	Consider    bool
}

// Booklet is an ordered assignment of units to a person.
type Booklet struct {
	ID       int64
	PersonID string
}

// Unit is one task instance within a booklet. Alias is the key into the
// test-definition file registry.
type Unit struct {
	ID        int64
	BookletID int64
	Name      string
	Alias     string
}

// Triple is one run-specific coding result slot on a response. All fields are
// nil until the corresponding run has coded the response.
type Triple struct {
	Code   *int64
	Score  *int64
	Status *coder.Status
}

// Response is the answer a person gave to one variable within a unit. The
// base Status reflects the import-time state; V1 and V3 are owned by
// autocoder runs one and two, V2 belongs to manual coding and is never
// written by the engine.
type Response struct {
	ID         int64
	UnitID     int64
	VariableID string
	Value      string
	Status     coder.Status
	V1         Triple
	V2         Triple
	V3         Triple
}

// InputStatus resolves the status an autocoder run reads for this response.
// Run one reads the base status. Run two prefers the manual (v2) status, then
// the first run's (v1), then the base status.
func (r *Response) InputStatus(run coder.RunVersion) coder.Status {
	if run == coder.RunSecond {
		if r.V2.Status != nil {
			return *r.V2.Status
		}
		if r.V1.Status != nil {
			return *r.V1.Status
		}
	}
	return r.Status
}

// CodedResponse is the transient output of the coding executor for one
// response, prior to persistence.
type CodedResponse struct {
	ResponseID int64
	Code       *int64
	Score      *int64
	Status     coder.Status
}

// TestFile is one uploaded unit-definition file, keyed per workspace by the
// uppercase unit alias.
type TestFile struct {
	WorkspaceID int64
	Alias       string
	Content     string
}
