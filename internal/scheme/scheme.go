package scheme

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Rule methods supported by code conditions.
const (
	MethodMatch        = "MATCH"
	MethodMatchRegex   = "MATCH_REGEX"
	MethodNumericMatch = "NUMERIC_MATCH"
	MethodNumericRange = "NUMERIC_RANGE"
	MethodIsEmpty      = "IS_EMPTY"
	MethodIsNull       = "IS_NULL"
)

// Code semantic types. Codes without a recognized type are treated as regular
// scoring codes.
const (
	CodeTypeResidualAuto       = "RESIDUAL_AUTO"
	CodeTypeResidual           = "RESIDUAL"
	CodeTypeIntendedIncomplete = "INTENDED_INCOMPLETE"
)

// Variable source types. Variables whose source carries no storable value are
// excluded from coding entirely.
const (
	SourceTypeBase        = "BASE"
	SourceTypeBaseNoValue = "BASE_NO_VALUE"
	SourceTypeDerived     = "DERIVED"
)

// Rule is one condition on a raw response value.
type Rule struct {
	Method     string   `json:"method"`
	Parameters []string `json:"parameters,omitempty"`

	regex *regexp.Regexp
}

// Code is one ordered rule entry inside a VariableCoding: the conditions under
// which a response receives this code, the score it carries, and its semantic
// type.
type Code struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"`
	Score int64  `json:"score,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}

// VariableCoding identifies one variable and enumerates its codes in
// evaluation order.
type VariableCoding struct {
	ID         string `json:"id"`
	Alias      string `json:"alias,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
	Codes      []Code `json:"codes,omitempty"`
}

// Scheme is the rule set governing one unit or a family of units.
type Scheme struct {
	VariableCodings []VariableCoding `json:"variableCodings"`
}

// Empty returns the sentinel scheme used when a payload is missing or
// unparseable. Coding against it yields a deterministic uncoded outcome.
func Empty() *Scheme {
	return &Scheme{}
}

// IsEmpty reports whether the scheme carries no variable codings.
func (s *Scheme) IsEmpty() bool {
	return s == nil || len(s.VariableCodings) == 0
}

// Parse decodes a scheme payload and precompiles its regular-expression
// rules. A payload that fails to decode or carries an invalid regex returns
// an error; callers substitute the Empty sentinel.
func Parse(data []byte) (*Scheme, error) {
	var s Scheme
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scheme: %w", err)
	}
	for vi := range s.VariableCodings {
		vc := &s.VariableCodings[vi]
		if strings.TrimSpace(vc.ID) == "" {
			return nil, fmt.Errorf("variable coding %d: missing id", vi)
		}
		for ci := range vc.Codes {
			code := &vc.Codes[ci]
			for ri := range code.Rules {
				rule := &code.Rules[ri]
				if err := rule.compile(); err != nil {
					return nil, fmt.Errorf("variable %q code %d: %w", vc.ID, code.ID, err)
				}
			}
		}
	}
	return &s, nil
}

func (r *Rule) compile() error {
	switch r.Method {
	case MethodMatch, MethodNumericMatch, MethodNumericRange, MethodIsEmpty, MethodIsNull:
		return nil
	case MethodMatchRegex:
		if len(r.Parameters) == 0 {
			return fmt.Errorf("rule %s: missing pattern", r.Method)
		}
		re, err := regexp.Compile(r.Parameters[0])
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.Method, err)
		}
		r.regex = re
		return nil
	default:
		return fmt.Errorf("rule method %q not supported", r.Method)
	}
}

// Regex returns the precompiled pattern for MATCH_REGEX rules, or nil.
func (r *Rule) Regex() *regexp.Regexp { return r.regex }
