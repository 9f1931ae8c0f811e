// Package kappa computes Cohen's Kappa inter-rater agreement statistics for
// pairs of coders who scored the same responses.
package kappa

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Observation is one response both coders coded. A side with no assigned code
// is nil; such pairs are excluded from the comparison.
type Observation struct {
	Code1 *int64
	Code2 *int64
}

// CoderPair is the input for one coder pairing on one unit/variable.
type CoderPair struct {
	Coder1       string
	Coder2       string
	UnitName     string
	VariableID   string
	Observations []Observation
}

// CoderPairResult is the agreement statistics for one coder pairing. Kappa is
// nil when it is undefined: zero valid pairs, or expected agreement of 1.
type CoderPairResult struct {
	Coder1         string
	Coder2         string
	UnitName       string
	VariableID     string
	Kappa          *float64
	Agreement      float64
	ValidPairs     int
	Interpretation string
}

// WorkspaceSummary aggregates pair results across a workspace. AverageKappa
// counts only pairs with a defined kappa and is 0, not undefined, when no
// such pair exists.
type WorkspaceSummary struct {
	AverageKappa   float64
	PairCount      int
	DefinedPairs   int
	Interpretation string
}

// Calculate computes agreement statistics for every coder pair. The result
// slice is parallel to the input.
func Calculate(pairs []CoderPair) []CoderPairResult {
	results := make([]CoderPairResult, 0, len(pairs))
	for _, pair := range pairs {
		results = append(results, calculatePair(pair))
	}
	return results
}

func calculatePair(pair CoderPair) CoderPairResult {
	result := CoderPairResult{
		Coder1:     pair.Coder1,
		Coder2:     pair.Coder2,
		UnitName:   pair.UnitName,
		VariableID: pair.VariableID,
	}

	// Distinct code values across both coders index the confusion matrix.
	codeIndex := make(map[int64]int)
	for _, obs := range pair.Observations {
		if obs.Code1 == nil || obs.Code2 == nil {
			continue
		}
		for _, code := range []int64{*obs.Code1, *obs.Code2} {
			if _, ok := codeIndex[code]; !ok {
				codeIndex[code] = len(codeIndex)
			}
		}
	}
	n := len(codeIndex)
	if n == 0 {
		result.Interpretation = interpretUndefined
		return result
	}

	confusion := mat.NewDense(n, n, nil)
	total := 0.0
	for _, obs := range pair.Observations {
		if obs.Code1 == nil || obs.Code2 == nil {
			continue
		}
		row := codeIndex[*obs.Code1]
		col := codeIndex[*obs.Code2]
		confusion.Set(row, col, confusion.At(row, col)+1)
		total++
	}
	result.ValidPairs = int(total)

	observed := mat.Trace(confusion) / total
	expected := 0.0
	for i := 0; i < n; i++ {
		rowSum := mat.Sum(confusion.RowView(i))
		colSum := mat.Sum(confusion.ColView(i))
		expected += (rowSum / total) * (colSum / total)
	}

	result.Agreement = observed * 100
	if 1-expected < 1e-12 {
		result.Interpretation = interpretUndefined
		return result
	}
	value := (observed - expected) / (1 - expected)
	result.Kappa = &value
	result.Interpretation = Interpret(value)
	return result
}

// Summarize averages kappa across all pair results, counting only pairs with
// a defined value.
func Summarize(results []CoderPairResult) WorkspaceSummary {
	summary := WorkspaceSummary{PairCount: len(results)}
	values := make([]float64, 0, len(results))
	for _, result := range results {
		if result.Kappa != nil {
			values = append(values, *result.Kappa)
		}
	}
	summary.DefinedPairs = len(values)
	if len(values) == 0 {
		summary.Interpretation = interpretUndefined
		return summary
	}
	mean, err := stats.Mean(values)
	if err != nil || math.IsNaN(mean) {
		summary.Interpretation = interpretUndefined
		return summary
	}
	summary.AverageKappa = mean
	summary.Interpretation = Interpret(mean)
	return summary
}

const interpretUndefined = "undefined"

// Interpret maps a kappa value to the Landis & Koch agreement label.
func Interpret(kappa float64) string {
	switch {
	case kappa < 0:
		return "poor"
	case kappa <= 0.20:
		return "slight"
	case kappa <= 0.40:
		return "fair"
	case kappa <= 0.60:
		return "moderate"
	case kappa <= 0.80:
		return "substantial"
	default:
		return "almost perfect"
	}
}

// PairLabel renders a stable identifier for a pair result, used in reports.
func (r CoderPairResult) PairLabel() string {
	return fmt.Sprintf("%s/%s %s:%s", r.Coder1, r.Coder2, r.UnitName, r.VariableID)
}
