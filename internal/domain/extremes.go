package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Thresholds configure the extreme-event detector.
type Thresholds struct {
	TempZ            float64 `json:"temp_z"`            // flag when |z| is strictly greater
	PrecipPercentile float64 `json:"precip_percentile"` // flag when the rank is greater or equal
}

// DefaultThresholds returns the detector defaults: |z| > 1.5, pctile >= 0.95.
func DefaultThresholds() Thresholds {
	return Thresholds{TempZ: 1.5, PrecipPercentile: 0.95}
}

// Validate checks that both thresholds are in range.
func (t Thresholds) Validate() error {
	if t.TempZ < 0 || math.IsNaN(t.TempZ) {
		return errors.New("temperature z-score threshold must be >= 0")
	}
	if t.PrecipPercentile < 0 || t.PrecipPercentile > 1 || math.IsNaN(t.PrecipPercentile) {
		return errors.New("precipitation percentile threshold must be within [0, 1]")
	}
	return nil
}

// ScoredMonth is a monthly aggregate with its per-location scores. A nil score
// means it could not be computed.
type ScoredMonth struct {
	MonthlyAggregate
	TempZ        *float64
	PrecipPctile *float64
}

// DetectResult is the outcome of one detection pass.
type DetectResult struct {
	Events []ExtremeEvent
	// Locations whose temperature series was too short or flat for a z-score.
	InsufficientLocations []string
	TempFlags             int
	PrecipFlags           int
}

// ScoreMonthly computes the temperature z-score and precipitation percentile
// rank of every row within its own location's series. Output order matches input.
func ScoreMonthly(monthly []MonthlyAggregate) ([]ScoredMonth, []string) {
	scored := make([]ScoredMonth, len(monthly))
	byLocation := make(map[string][]int)
	var locations []string
	for i, m := range monthly {
		scored[i].MonthlyAggregate = m
		if _, ok := byLocation[m.Location]; !ok {
			locations = append(locations, m.Location)
		}
		byLocation[m.Location] = append(byLocation[m.Location], i)
	}

	var insufficient []string
	for _, loc := range locations {
		rows := byLocation[loc]

		tIdx, tVals := presentValues(monthly, rows, func(m MonthlyAggregate) *float64 { return m.TemperatureC })
		if z, err := ZScores(tVals); err == nil {
			for j, i := range tIdx {
				scored[i].TempZ = ptr(z[j])
			}
		} else if len(tVals) > 0 {
			insufficient = append(insufficient, loc)
		}

		pIdx, pVals := presentValues(monthly, rows, func(m MonthlyAggregate) *float64 { return m.PrecipMM })
		for j, rank := range PercentileRanks(pVals) {
			scored[pIdx[j]].PrecipPctile = ptr(rank)
		}
	}
	return scored, insufficient
}

// DetectExtremes flags months whose |temp_z| exceeds th.TempZ or whose
// precip_pctile reaches th.PrecipPercentile. An empty result is not an error.
func DetectExtremes(monthly []MonthlyAggregate, th Thresholds) DetectResult {
	scored, insufficient := ScoreMonthly(monthly)
	res := DetectResult{Events: []ExtremeEvent{}, InsufficientLocations: insufficient}
	for _, s := range scored {
		var reasons []string
		if s.TempZ != nil && math.Abs(*s.TempZ) > th.TempZ {
			reasons = append(reasons, fmt.Sprintf("%s=%.2f", ColTempZ, *s.TempZ))
			res.TempFlags++
		}
		if s.PrecipPctile != nil && *s.PrecipPctile >= th.PrecipPercentile {
			reasons = append(reasons, fmt.Sprintf("%s=%.2f", ColPrecipPctile, *s.PrecipPctile))
			res.PrecipFlags++
		}
		if len(reasons) == 0 {
			continue
		}
		res.Events = append(res.Events, ExtremeEvent{
			MonthlyAggregate: s.MonthlyAggregate,
			TempZ:            s.TempZ,
			PrecipPctile:     s.PrecipPctile,
			Reason:           strings.Join(reasons, "; "),
		})
	}
	return res
}

func presentValues(monthly []MonthlyAggregate, rows []int, get func(MonthlyAggregate) *float64) ([]int, []float64) {
	idx := make([]int, 0, len(rows))
	vals := make([]float64, 0, len(rows))
	for _, i := range rows {
		if v := get(monthly[i]); v != nil {
			idx = append(idx, i)
			vals = append(vals, *v)
		}
	}
	return idx, vals
}

func ptr(v float64) *float64 { return &v }
