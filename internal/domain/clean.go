package domain

import (
	"slices"
	"sort"
	"strings"
)

// measurementColumns must hold numbers wherever they are not missing; a row
// with a non-numeric value in one of them is malformed.
var measurementColumns = []string{
	"temperature", "temperature_celsius", "temperature_c",
	"humidity", "precip_mm", "wind_kph", "wind_mps", "pressure_mb",
}

// CleanStats summarises one cleaning pass.
type CleanStats struct {
	RowsRead       int
	RowsWritten    int
	Malformed      int
	Duplicates     int
	ImputedNumeric int
	ImputedText    int
	DateColumn     string
	Derived        []string
}

// CleanResult is the cleaned table plus what was dropped along the way.
type CleanResult struct {
	Table     Table
	Stats     CleanStats
	Malformed []*MalformedRecordError
}

// Clean turns a raw table into a cleaned one: it resolves and normalises the
// timestamp column, drops malformed rows, removes exact duplicates, imputes
// missing values and derives unit-converted columns. The input is not modified.
// Only a missing date column is fatal.
func Clean(raw Table) (CleanResult, error) {
	dateCol, err := ResolveDateColumn(raw, "raw")
	if err != nil {
		return CleanResult{}, err
	}

	t := Table{Header: slices.Clone(raw.Header)}
	res := CleanResult{Stats: CleanStats{RowsRead: raw.Len(), DateColumn: dateCol}}

	rows, malformed := parseRows(raw, dateCol)
	res.Malformed = malformed
	res.Stats.Malformed = len(malformed)

	t.Rows, res.Stats.Duplicates = Deduplicate(rows)
	res.Stats.ImputedNumeric, res.Stats.ImputedText = imputeMissing(&t, dateCol)
	res.Stats.Derived = deriveUnits(&t)

	res.Table = t
	res.Stats.RowsWritten = t.Len()
	return res, nil
}

// parseRows copies every row with a valid timestamp and numeric measurements,
// rewriting the timestamp in canonical form.
func parseRows(raw Table, dateCol string) ([][]string, []*MalformedRecordError) {
	dateIdx := raw.Index(dateCol)
	var measureIdx []int
	for _, c := range measurementColumns {
		if i := raw.Index(c); i >= 0 {
			measureIdx = append(measureIdx, i)
		}
	}

	out := make([][]string, 0, raw.Len())
	var malformed []*MalformedRecordError
	for r, src := range raw.Rows {
		row := make([]string, len(raw.Header))
		copy(row, src)
		line := r + 2

		ts, ok := ParseTimestamp(row[dateIdx])
		if !ok {
			malformed = append(malformed, &MalformedRecordError{
				Line: line, Column: dateCol, Value: row[dateIdx], Reason: "unparseable date",
			})
			continue
		}
		row[dateIdx] = FormatTimestamp(ts)

		if bad := firstNonNumeric(row, measureIdx); bad >= 0 {
			malformed = append(malformed, &MalformedRecordError{
				Line: line, Column: raw.Header[bad], Value: row[bad], Reason: "non-numeric measurement",
			})
			continue
		}
		out = append(out, row)
	}
	return out, malformed
}

func firstNonNumeric(row []string, idx []int) int {
	for _, i := range idx {
		if IsMissing(row[i]) {
			continue
		}
		if _, ok := parseNumber(row[i]); !ok {
			return i
		}
	}
	return -1
}

// Deduplicate removes rows identical across all fields, keeping the first
// occurrence and the original order. It returns the kept rows and the number removed.
func Deduplicate(rows [][]string) ([][]string, int) {
	seen := make(map[string]struct{}, len(rows))
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out, len(rows) - len(out)
}

// imputeMissing fills numeric columns with their median and text columns with
// UnknownValue. The timestamp column is never touched. A column without any
// value is left empty (see Table.AllMissing).
func imputeMissing(t *Table, dateCol string) (numeric, text int) {
	for c, name := range t.Header {
		if name == dateCol {
			continue
		}
		if t.AllMissing(c) {
			for _, row := range t.Rows {
				row[c] = ""
			}
			continue
		}
		values, isNumeric := numericValues(t.Rows, c)
		fill := UnknownValue
		if isNumeric {
			fill = formatNumber(Median(values))
		}
		for _, row := range t.Rows {
			if !IsMissing(row[c]) {
				continue
			}
			row[c] = fill
			if isNumeric {
				numeric++
			} else {
				text++
			}
		}
	}
	return numeric, text
}

// numericValues collects the non-missing values of column c and reports whether
// every one of them parses as a number.
func numericValues(rows [][]string, c int) ([]float64, bool) {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if IsMissing(row[c]) {
			continue
		}
		v, ok := parseNumber(row[c])
		if !ok {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// Median returns the median of values, averaging the two middle values for an
// even count. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return nan()
	}
	sorted := slices.Clone(values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
