package kappa_test

import (
	"math"
	"testing"

	"autocoder/internal/kappa"
)

func code(v int64) *int64 { return &v }

func pairOf(observations ...kappa.Observation) kappa.CoderPair {
	return kappa.CoderPair{
		Coder1:       "alice",
		Coder2:       "bob",
		UnitName:     "UNIT_1",
		VariableID:   "var1",
		Observations: observations,
	}
}

func swap(pair kappa.CoderPair) kappa.CoderPair {
	swapped := pair
	swapped.Coder1, swapped.Coder2 = pair.Coder2, pair.Coder1
	swapped.Observations = make([]kappa.Observation, len(pair.Observations))
	for i, obs := range pair.Observations {
		swapped.Observations[i] = kappa.Observation{Code1: obs.Code2, Code2: obs.Code1}
	}
	return swapped
}

func TestPerfectAgreement(t *testing.T) {
	result := kappa.Calculate([]kappa.CoderPair{pairOf(
		kappa.Observation{Code1: code(1), Code2: code(1)},
		kappa.Observation{Code1: code(0), Code2: code(0)},
		kappa.Observation{Code1: code(1), Code2: code(1)},
	)})[0]
	if result.Kappa == nil {
		t.Fatal("kappa should be defined with mixed marginals")
	}
	if *result.Kappa != 1 {
		t.Errorf("perfect agreement kappa = %v, want 1", *result.Kappa)
	}
	if result.Agreement != 100 {
		t.Errorf("agreement = %v, want 100", result.Agreement)
	}
	if result.ValidPairs != 3 {
		t.Errorf("valid pairs = %d, want 3", result.ValidPairs)
	}
	if result.Interpretation != "almost perfect" {
		t.Errorf("interpretation = %q", result.Interpretation)
	}
}

func TestKnownKappaValue(t *testing.T) {
	// Classic 2x2 worked example: 20 observations, Po = 0.7, Pe = 0.5,
	// kappa = 0.4.
	observations := make([]kappa.Observation, 0, 20)
	add := func(c1, c2 int64, count int) {
		for i := 0; i < count; i++ {
			observations = append(observations, kappa.Observation{Code1: code(c1), Code2: code(c2)})
		}
	}
	add(1, 1, 7)
	add(1, 0, 3)
	add(0, 1, 3)
	add(0, 0, 7)

	result := kappa.Calculate([]kappa.CoderPair{pairOf(observations...)})[0]
	if result.Kappa == nil {
		t.Fatal("kappa should be defined")
	}
	if math.Abs(*result.Kappa-0.4) > 1e-9 {
		t.Errorf("kappa = %v, want 0.4", *result.Kappa)
	}
	if math.Abs(result.Agreement-70) > 1e-9 {
		t.Errorf("agreement = %v, want 70", result.Agreement)
	}
	if result.Interpretation != "fair" {
		t.Errorf("interpretation = %q, want fair", result.Interpretation)
	}
}

func TestSymmetryUnderCoderSwap(t *testing.T) {
	pair := pairOf(
		kappa.Observation{Code1: code(1), Code2: code(2)},
		kappa.Observation{Code1: code(2), Code2: code(2)},
		kappa.Observation{Code1: code(1), Code2: code(1)},
		kappa.Observation{Code1: code(3), Code2: code(1)},
		kappa.Observation{Code1: code(3), Code2: code(3)},
	)
	forward := kappa.Calculate([]kappa.CoderPair{pair})[0]
	backward := kappa.Calculate([]kappa.CoderPair{swap(pair)})[0]
	if forward.Kappa == nil || backward.Kappa == nil {
		t.Fatal("kappa should be defined in both directions")
	}
	if math.Abs(*forward.Kappa-*backward.Kappa) > 1e-12 {
		t.Errorf("kappa not symmetric: %v vs %v", *forward.Kappa, *backward.Kappa)
	}
	if *forward.Kappa < -1 || *forward.Kappa > 1 {
		t.Errorf("kappa out of bounds: %v", *forward.Kappa)
	}
}

func TestUndefinedWhenNoDisagreementPossible(t *testing.T) {
	// Both coders always assign the same single code, so expected agreement
	// is 1 and kappa is undefined.
	result := kappa.Calculate([]kappa.CoderPair{pairOf(
		kappa.Observation{Code1: code(1), Code2: code(1)},
		kappa.Observation{Code1: code(1), Code2: code(1)},
	)})[0]
	if result.Kappa != nil {
		t.Errorf("kappa should be undefined, got %v", *result.Kappa)
	}
	if result.Agreement != 100 {
		t.Errorf("agreement = %v, want 100", result.Agreement)
	}
	if result.ValidPairs != 2 {
		t.Errorf("valid pairs = %d, want 2", result.ValidPairs)
	}
}

func TestUndefinedWithZeroValidPairs(t *testing.T) {
	result := kappa.Calculate([]kappa.CoderPair{pairOf(
		kappa.Observation{Code1: code(1), Code2: nil},
		kappa.Observation{Code1: nil, Code2: code(2)},
	)})[0]
	if result.Kappa != nil {
		t.Error("kappa should be undefined with no valid pairs")
	}
	if result.ValidPairs != 0 {
		t.Errorf("valid pairs = %d, want 0", result.ValidPairs)
	}
	if result.Interpretation != "undefined" {
		t.Errorf("interpretation = %q", result.Interpretation)
	}
}

func TestHalfCodedPairsAreDropped(t *testing.T) {
	result := kappa.Calculate([]kappa.CoderPair{pairOf(
		kappa.Observation{Code1: code(1), Code2: code(1)},
		kappa.Observation{Code1: code(2), Code2: nil},
		kappa.Observation{Code1: code(2), Code2: code(2)},
	)})[0]
	if result.ValidPairs != 2 {
		t.Errorf("valid pairs = %d, want 2", result.ValidPairs)
	}
	if result.Kappa == nil || *result.Kappa != 1 {
		t.Errorf("kappa = %v, want 1", result.Kappa)
	}
}

func TestInterpretationBuckets(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{-0.3, "poor"},
		{0.0, "slight"},
		{0.20, "slight"},
		{0.35, "fair"},
		{0.55, "moderate"},
		{0.75, "substantial"},
		{0.95, "almost perfect"},
	}
	for _, tc := range cases {
		if got := kappa.Interpret(tc.value); got != tc.want {
			t.Errorf("Interpret(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestSummarizeSkipsUndefinedPairs(t *testing.T) {
	k1, k2 := 0.4, 0.8
	summary := kappa.Summarize([]kappa.CoderPairResult{
		{Kappa: &k1},
		{Kappa: nil},
		{Kappa: &k2},
	})
	if summary.PairCount != 3 || summary.DefinedPairs != 2 {
		t.Errorf("counts = %d/%d, want 3/2", summary.PairCount, summary.DefinedPairs)
	}
	if math.Abs(summary.AverageKappa-0.6) > 1e-9 {
		t.Errorf("average = %v, want 0.6", summary.AverageKappa)
	}
	if summary.Interpretation != "moderate" {
		t.Errorf("interpretation = %q", summary.Interpretation)
	}
}

func TestSummarizeWithNoDefinedPairsReportsZero(t *testing.T) {
	summary := kappa.Summarize([]kappa.CoderPairResult{{Kappa: nil}, {Kappa: nil}})
	if summary.AverageKappa != 0 {
		t.Errorf("average = %v, want 0", summary.AverageKappa)
	}
	if summary.DefinedPairs != 0 {
		t.Errorf("defined pairs = %d, want 0", summary.DefinedPairs)
	}
}
