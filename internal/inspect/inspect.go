// Package inspect profiles a raw weather dataset and renders the Markdown
// summary report: shape, inferred column types, missing values, date range.
package inspect

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// ColumnProfile describes one column of the dataset.
type ColumnProfile struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"` // int, float, bool or string
	Missing    int      `json:"missing"`
	MissingPct float64  `json:"missing_pct"`
	Distinct   int      `json:"distinct"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Mean       *float64 `json:"mean,omitempty"`
}

// Profile summarises a raw dataset.
type Profile struct {
	Rows       int             `json:"rows"`
	Columns    int             `json:"columns"`
	DateColumn string          `json:"date_column,omitempty"`
	From       time.Time       `json:"from,omitempty"`
	To         time.Time       `json:"to,omitempty"`
	Locations  int             `json:"locations"`
	Fields     []ColumnProfile `json:"fields"`
}

// Run profiles t. Missing markers count as missing in every column.
func Run(t domain.Table) (Profile, error) {
	p := Profile{Rows: t.Len(), Columns: len(t.Header)}
	if len(t.Header) == 0 {
		return p, nil
	}

	df, err := load(t)
	if err != nil {
		return p, err
	}
	for _, name := range df.Names() {
		p.Fields = append(p.Fields, profileColumn(df.Col(name), p.Rows))
	}

	if col, err := domain.ResolveDateColumn(t, "raw"); err == nil {
		p.DateColumn = col
		p.From, p.To = dateRange(t.Column(col))
	}
	if col, ok := domain.ResolveColumn(t.Header, domain.LocationCandidates); ok {
		for _, f := range p.Fields {
			if f.Name == col {
				p.Locations = f.Distinct
			}
		}
	}
	return p, nil
}

// load builds a dataframe with every missing marker normalised to an empty
// cell so gota reports it as NaN. Ragged rows are padded.
func load(t domain.Table) (dataframe.DataFrame, error) {
	records := make([][]string, 0, t.Len()+1)
	records = append(records, t.Header)
	for _, row := range t.Rows {
		rec := make([]string, len(t.Header))
		for i := range rec {
			if i < len(row) && !domain.IsMissing(row[i]) {
				rec[i] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues([]string{""}),
	)
	if df.Err != nil {
		return df, fmt.Errorf("profile dataset: %w", df.Err)
	}
	return df, nil
}

func profileColumn(s series.Series, rows int) ColumnProfile {
	cp := ColumnProfile{Name: s.Name, Type: string(s.Type())}

	present := make(map[string]struct{})
	records := s.Records()
	for i, isNaN := range s.IsNaN() {
		if isNaN {
			cp.Missing++
			continue
		}
		present[records[i]] = struct{}{}
	}
	cp.Distinct = len(present)
	if rows > 0 {
		cp.MissingPct = math.Round(float64(cp.Missing)/float64(rows)*10000) / 100
	}

	if s.Type() == series.Int || s.Type() == series.Float {
		var values []float64
		for _, v := range s.Float() {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			lo, hi := values[0], values[0]
			for _, v := range values[1:] {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
			mean := stat.Mean(values, nil)
			cp.Min, cp.Max, cp.Mean = &lo, &hi, &mean
		}
	}
	return cp
}

func dateRange(cells []string) (from, to time.Time) {
	for _, c := range cells {
		ts, ok := domain.ParseTimestamp(c)
		if !ok {
			continue
		}
		if from.IsZero() || ts.Before(from) {
			from = ts
		}
		if to.IsZero() || ts.After(to) {
			to = ts
		}
	}
	return from, to
}
