package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func nan() float64 { return math.NaN() }

// ZScores standardises values with the sample mean and sample standard
// deviation. Fewer than two values or zero spread yields ErrInsufficientData.
func ZScores(values []float64) ([]float64, error) {
	if len(values) < 2 {
		return nil, ErrInsufficientData
	}
	mean, sd := stat.MeanStdDev(values, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / sd
	}
	return out, nil
}

// PercentileRanks returns each value's rank divided by the number of values.
// Ties share the average of the ranks they span, so a unique maximum maps to 1.
func PercentileRanks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	out := make([]float64, n)
	for start := 0; start < n; {
		end := start + 1
		for end < n && values[order[end]] == values[order[start]] {
			end++
		}
		// ranks start+1 .. end are tied
		avg := float64(start+1+end) / 2
		for _, idx := range order[start:end] {
			out[idx] = avg / float64(n)
		}
		start = end
	}
	return out
}

// mean and sum return nil for an empty population.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := stat.Mean(values, nil)
	return &m
}

func sum(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	s := floats.Sum(values)
	return &s
}
