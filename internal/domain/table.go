package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// UnknownValue fills missing cells of text columns.
const UnknownValue = "unknown"

// Candidate column names in priority order.
var (
	DateCandidates     = []string{"date", "last_updated", "datetime", "timestamp"}
	LocationCandidates = []string{"country", "location", "location_name", "station"}
)

// missingMarkers are compared case-insensitively after trimming.
var missingMarkers = []string{"", "na", "n/a", "nan", "null", "none"}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// Table is an in-memory CSV: a header and rows of string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of a column, or -1.
func (t Table) Index(name string) int {
	return slices.Index(t.Header, name)
}

// Has reports whether the header contains name.
func (t Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Column returns a copy of the named column's cells, or nil when absent.
func (t Table) Column(name string) []string {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// AllMissing reports whether every cell of column c is missing. The cleaner
// leaves such columns empty rather than imputing them.
func (t Table) AllMissing(c int) bool {
	for _, row := range t.Rows {
		if c < len(row) && !IsMissing(row[c]) {
			return false
		}
	}
	return true
}

// ResolveColumn returns the first candidate present in header.
func ResolveColumn(header, candidates []string) (string, bool) {
	for _, c := range candidates {
		if slices.Contains(header, c) {
			return c, true
		}
	}
	return "", false
}

// ResolveDateColumn picks the first date candidate that is present and holds
// at least one parseable value. A present candidate in a table with no rows is
// accepted as is.
func ResolveDateColumn(t Table, table string) (string, error) {
	firstPresent := ""
	for _, c := range DateCandidates {
		idx := t.Index(c)
		if idx < 0 {
			continue
		}
		if firstPresent == "" {
			firstPresent = c
		}
		for _, row := range t.Rows {
			if idx < len(row) {
				if _, ok := ParseTimestamp(row[idx]); ok {
					return c, nil
				}
			}
		}
	}
	if firstPresent != "" && t.Len() == 0 {
		return firstPresent, nil
	}
	return "", &SchemaError{Table: table, Missing: []string{joinAlternatives(DateCandidates)}}
}

// joinAlternatives renders a candidate list in SchemaError.Missing.
func joinAlternatives(candidates []string) string {
	return strings.Join(candidates, "|")
}

// ParseTimestamp parses s with the accepted layouts. An explicit UTC offset is
// kept so the calendar date stays the observation's own; zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTimestamp is the canonical timestamp encoding of cleaned tables. The
// offset of t is written out unchanged.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// IsMissing reports whether a cell counts as a missing value.
func IsMissing(s string) bool {
	return slices.Contains(missingMarkers, strings.ToLower(strings.TrimSpace(s)))
}

// parseNumber parses a finite float from a cell.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// formatNumber renders a float for CSV output, rounded to 6 decimals.
func formatNumber(v float64) string {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// formatOptional renders nil as an empty cell.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(*v)
}

// parseOptional reads an optional numeric cell; missing cells yield nil.
func parseOptional(s string) (*float64, bool) {
	if IsMissing(s) {
		return nil, true
	}
	v, ok := parseNumber(s)
	if !ok {
		return nil, false
	}
	return &v, true
}
