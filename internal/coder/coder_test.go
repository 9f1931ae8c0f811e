package coder_test

import (
	"testing"

	"autocoder/internal/coder"
	"autocoder/internal/scheme"
)

func mustParse(t *testing.T, payload string) *scheme.Scheme {
	t.Helper()
	s, err := scheme.Parse([]byte(payload))
	if err != nil {
		t.Fatalf("scheme.Parse: %v", err)
	}
	return s
}

const matchScheme = `{
  "variableCodings": [
    {
      "id": "var1",
      "codes": [
        {"id": 1, "score": 1, "rules": [{"method": "MATCH", "parameters": ["a", "b"]}]},
        {"id": 2, "score": 0, "rules": [{"method": "IS_EMPTY"}]},
        {"id": 9, "type": "RESIDUAL_AUTO"}
      ]
    }
  ]
}`

func TestCodeFirstMatchingRuleWins(t *testing.T) {
	s := mustParse(t, matchScheme)
	vc := scheme.NewLookup(s).For("var1")

	out := coder.Code("a", coder.StatusValueChanged, vc)
	if out.Status != coder.StatusCodingComplete {
		t.Fatalf("unexpected status: %s", out.Status)
	}
	if out.Code == nil || *out.Code != 1 || out.Score == nil || *out.Score != 1 {
		t.Fatalf("unexpected code/score: %+v", out)
	}
}

func TestCodeResidualAutoCatchesRest(t *testing.T) {
	s := mustParse(t, matchScheme)
	vc := scheme.NewLookup(s).For("var1")

	out := coder.Code("something else", coder.StatusValueChanged, vc)
	if out.Status != coder.StatusCodingComplete {
		t.Fatalf("unexpected status: %s", out.Status)
	}
	if out.Code == nil || *out.Code != 9 {
		t.Fatalf("expected residual code 9, got %+v", out)
	}
}

func TestCodeEmptyValueMatchesIsEmpty(t *testing.T) {
	s := mustParse(t, matchScheme)
	vc := scheme.NewLookup(s).For("var1")

	out := coder.Code("  ", coder.StatusUnset, vc)
	if out.Code == nil || *out.Code != 2 {
		t.Fatalf("expected IS_EMPTY code 2, got %+v", out)
	}
}

func TestCodeAgainstEmptySchemeIsDeterministicError(t *testing.T) {
	out := coder.Code("x", coder.StatusValueChanged, nil)
	if out.Status != coder.StatusCodingError || out.Code != nil || out.Score != nil {
		t.Fatalf("unexpected empty-scheme outcome: %+v", out)
	}
}

func TestCodeNoMatchStaysIncomplete(t *testing.T) {
	s := mustParse(t, `{"variableCodings": [{"id": "v", "codes": [
		{"id": 1, "score": 1, "rules": [{"method": "MATCH", "parameters": ["only"]}]}
	]}]}`)
	vc := scheme.NewLookup(s).For("v")

	out := coder.Code("other", coder.StatusValueChanged, vc)
	if out.Status != coder.StatusCodingIncomplete || out.Code != nil {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestCodeRuleMethods(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		value   string
		want    bool
	}{
		{"regex match", `[{"method": "MATCH_REGEX", "parameters": ["^ab+c$"]}]`, "abbbc", true},
		{"regex miss", `[{"method": "MATCH_REGEX", "parameters": ["^ab+c$"]}]`, "ac", false},
		{"numeric match", `[{"method": "NUMERIC_MATCH", "parameters": ["4"]}]`, "4.0", true},
		{"numeric match comma", `[{"method": "NUMERIC_MATCH", "parameters": ["1.5"]}]`, "1,5", true},
		{"numeric range inside", `[{"method": "NUMERIC_RANGE", "parameters": ["1", "10"]}]`, "10", true},
		{"numeric range outside", `[{"method": "NUMERIC_RANGE", "parameters": ["1", "10"]}]`, "10.1", false},
		{"numeric range non-numeric", `[{"method": "NUMERIC_RANGE", "parameters": ["1", "10"]}]`, "abc", false},
		{"is null absent value", `[{"method": "IS_NULL"}]`, "", true},
		{"is null whitespace is a value", `[{"method": "IS_NULL"}]`, " ", false},
		{"is empty whitespace", `[{"method": "IS_EMPTY"}]`, " ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := mustParse(t, `{"variableCodings": [{"id": "v", "codes": [{"id": 1, "score": 1, "rules": `+tc.payload+`}]}]}`)
			vc := scheme.NewLookup(s).For("v")
			out := coder.Code(tc.value, coder.StatusValueChanged, vc)
			got := out.Status == coder.StatusCodingComplete
			if got != tc.want {
				t.Fatalf("value %q: matched=%v want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestCodeSemanticTypes(t *testing.T) {
	s := mustParse(t, `{"variableCodings": [
		{"id": "intended", "codes": [{"id": 7, "type": "INTENDED_INCOMPLETE"}]},
		{"id": "manual", "codes": [{"id": 8, "type": "RESIDUAL"}]}
	]}`)
	lookup := scheme.NewLookup(s)

	out := coder.Code("anything", coder.StatusValueChanged, lookup.For("intended"))
	if out.Status != coder.StatusIntendedIncomplete || out.Score != nil {
		t.Fatalf("unexpected intended-incomplete outcome: %+v", out)
	}

	out = coder.Code("anything", coder.StatusValueChanged, lookup.For("manual"))
	if out.Status != coder.StatusCodingIncomplete {
		t.Fatalf("unexpected manual-residual outcome: %+v", out)
	}
	if out.Code == nil || *out.Code != 8 {
		t.Fatalf("manual residual should record its code: %+v", out)
	}
}

func TestCodeIsDeterministic(t *testing.T) {
	s := mustParse(t, matchScheme)
	vc := scheme.NewLookup(s).For("var1")

	first := coder.Code("b", coder.StatusCodingIncomplete, vc)
	second := coder.Code("b", coder.StatusCodingIncomplete, vc)
	if first.Status != second.Status || *first.Code != *second.Code || *first.Score != *second.Score {
		t.Fatalf("outcomes differ: %+v vs %+v", first, second)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, status := range coder.AllStatuses() {
		parsed, ok := coder.ParseStatus(status.String())
		if !ok || parsed != status {
			t.Fatalf("name round trip failed for %s", status)
		}
		numeric, ok := coder.FromNumeric(status.Numeric())
		if !ok || numeric != status {
			t.Fatalf("numeric round trip failed for %s", status)
		}
	}
	if _, ok := coder.ParseStatus("NOPE"); ok {
		t.Fatal("unexpected parse success")
	}
}

func TestRunnableStatuses(t *testing.T) {
	runnable := map[coder.Status]bool{
		coder.StatusUnset:            true,
		coder.StatusValueChanged:     true,
		coder.StatusCodingIncomplete: true,
	}
	for _, status := range coder.AllStatuses() {
		if status.IsRunnable() != runnable[status] {
			t.Fatalf("IsRunnable(%s) = %v", status, status.IsRunnable())
		}
	}
}
