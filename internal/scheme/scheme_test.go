package scheme_test

import (
	"testing"

	"autocoder/internal/scheme"
)

func TestParseRejectsMalformedPayload(t *testing.T) {
	if _, err := scheme.Parse([]byte(`{"variableCodings": [`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseRejectsInvalidRegex(t *testing.T) {
	payload := `{"variableCodings": [{"id": "v", "codes": [
		{"id": 1, "rules": [{"method": "MATCH_REGEX", "parameters": ["("]}]}
	]}]}`
	if _, err := scheme.Parse([]byte(payload)); err == nil {
		t.Fatal("expected regex compile error")
	}
}

func TestParseAcceptsAllRuleMethods(t *testing.T) {
	payload := `{"variableCodings": [{"id": "v", "codes": [
		{"id": 1, "rules": [
			{"method": "MATCH", "parameters": ["x"]},
			{"method": "MATCH_REGEX", "parameters": ["^x$"]},
			{"method": "NUMERIC_MATCH", "parameters": ["1"]},
			{"method": "NUMERIC_RANGE", "parameters": ["1", "2"]},
			{"method": "IS_EMPTY"},
			{"method": "IS_NULL"}
		]}
	]}]}`
	if _, err := scheme.Parse([]byte(payload)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParseRejectsUnknownRuleMethod(t *testing.T) {
	payload := `{"variableCodings": [{"id": "v", "codes": [
		{"id": 1, "rules": [{"method": "SOUNDS_LIKE", "parameters": ["x"]}]}
	]}]}`
	if _, err := scheme.Parse([]byte(payload)); err == nil {
		t.Fatal("expected unsupported-method error")
	}
}

func TestParseRejectsMissingVariableID(t *testing.T) {
	payload := `{"variableCodings": [{"alias": "A", "codes": []}]}`
	if _, err := scheme.Parse([]byte(payload)); err == nil {
		t.Fatal("expected missing-id error")
	}
}

func TestEmptySentinel(t *testing.T) {
	if !scheme.Empty().IsEmpty() {
		t.Fatal("Empty() should report empty")
	}
	var nilScheme *scheme.Scheme
	if !nilScheme.IsEmpty() {
		t.Fatal("nil scheme should report empty")
	}
}

func TestLookupAliasTakesPrecedence(t *testing.T) {
	s, err := scheme.Parse([]byte(`{"variableCodings": [
		{"id": "v1", "alias": "shared", "codes": [{"id": 1, "score": 1}]},
		{"id": "shared", "codes": [{"id": 2, "score": 2}]}
	]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lookup := scheme.NewLookup(s)

	vc := lookup.For("shared")
	if vc == nil || vc.ID != "v1" {
		t.Fatalf("expected alias entry to win, got %+v", vc)
	}
	if lookup.For("v1") == nil {
		t.Fatal("id lookup should still resolve")
	}
	if lookup.For("missing") != nil {
		t.Fatal("unknown variable should resolve to nil")
	}
}

func TestCodableVariablesExcludesNoValueSources(t *testing.T) {
	s, err := scheme.Parse([]byte(`{"variableCodings": [
		{"id": "keep", "sourceType": "BASE"},
		{"id": "drop", "sourceType": "BASE_NO_VALUE"}
	]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	vars := scheme.NewLookup(s).CodableVariables()
	if len(vars) != 1 || vars[0] != "keep" {
		t.Fatalf("unexpected codable variables: %v", vars)
	}
}
