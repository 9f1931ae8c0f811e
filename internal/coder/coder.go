package coder

import (
	"strconv"
	"strings"

	"autocoder/internal/scheme"
)

// Outcome is the result of coding one response value: the code and score to
// write into the run-specific triple, plus the derived status. Code and Score
// are nil when no code applies.
type Outcome struct {
	Code   *int64
	Score  *int64
	Status Status
}

// Code evaluates a raw response value against the ordered code rules of a
// variable coding. The function is pure: identical inputs always produce
// identical outcomes.
//
// Evaluation order is the scheme's code order; the first matching code wins.
// Residual-auto codes match any value. A nil or codeless variable coding is
// the empty-scheme case and yields an uncoded CODING_ERROR outcome. When no
// code matches and no residual exists the response stays CODING_INCOMPLETE so
// a later pass (or manual coder) can pick it up.
func Code(value string, inputStatus Status, vc *scheme.VariableCoding) Outcome {
	if vc == nil || len(vc.Codes) == 0 {
		return Outcome{Status: StatusCodingError}
	}
	if inputStatus == StatusInvalid {
		return Outcome{Status: StatusInvalid}
	}

	for i := range vc.Codes {
		code := &vc.Codes[i]
		if codeMatches(code, value) {
			return outcomeFor(code)
		}
	}

	return Outcome{Status: StatusCodingIncomplete}
}

func outcomeFor(code *scheme.Code) Outcome {
	id := code.ID
	switch code.Type {
	case scheme.CodeTypeIntendedIncomplete:
		return Outcome{Code: &id, Status: StatusIntendedIncomplete}
	case scheme.CodeTypeResidual:
		// Manual instruction required: the code is recorded but the response
		// stays incomplete for a human coder.
		return Outcome{Code: &id, Status: StatusCodingIncomplete}
	default:
		score := code.Score
		return Outcome{Code: &id, Score: &score, Status: StatusCodingComplete}
	}
}

func codeMatches(code *scheme.Code, value string) bool {
	if code.Type == scheme.CodeTypeResidualAuto || code.Type == scheme.CodeTypeResidual || code.Type == scheme.CodeTypeIntendedIncomplete {
		return true
	}
	for i := range code.Rules {
		if ruleMatches(&code.Rules[i], value) {
			return true
		}
	}
	return false
}

func ruleMatches(rule *scheme.Rule, value string) bool {
	switch rule.Method {
	case scheme.MethodMatch:
		for _, param := range rule.Parameters {
			if value == param {
				return true
			}
		}
		return false
	case scheme.MethodMatchRegex:
		re := rule.Regex()
		if re == nil {
			return false
		}
		return re.MatchString(value)
	case scheme.MethodNumericMatch:
		num, ok := parseNumeric(value)
		if !ok {
			return false
		}
		for _, param := range rule.Parameters {
			want, ok := parseNumeric(param)
			if !ok {
				continue
			}
			if num == want {
				return true
			}
		}
		return false
	case scheme.MethodNumericRange:
		if len(rule.Parameters) < 2 {
			return false
		}
		num, ok := parseNumeric(value)
		if !ok {
			return false
		}
		min, okMin := parseNumeric(rule.Parameters[0])
		max, okMax := parseNumeric(rule.Parameters[1])
		if !okMin || !okMax {
			return false
		}
		return num >= min && num <= max
	case scheme.MethodIsEmpty:
		return strings.TrimSpace(value) == ""
	case scheme.MethodIsNull:
		// No stored value at all. Whitespace-only counts as a value here,
		// unlike IS_EMPTY.
		return value == ""
	default:
		return false
	}
}

func parseNumeric(value string) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return num, true
}
