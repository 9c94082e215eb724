package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const monthLayout = "2006-01-02"

// CheckConsumerContract verifies that an aggregate or extremes table carries
// the key columns (location, year and month or season) and at least one variable.
func CheckConsumerContract(t Table, table, period string) error {
	var missing []string
	for _, c := range []string{ColLocation, ColYear, period} {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(presentVariables(t.Header)) == 0 {
		names := make([]string, len(Variables))
		for i, v := range Variables {
			names[i] = v.Name
		}
		missing = append(missing, joinAlternatives(names))
	}
	if len(missing) > 0 {
		return &SchemaError{Table: table, Missing: missing}
	}
	return nil
}

func presentVariables(header []string) []string {
	var out []string
	for _, v := range Variables {
		if slices.Contains(header, v.Name) {
			out = append(out, v.Name)
		}
	}
	return out
}

// MonthlyTable encodes monthly aggregates with the given variable columns.
func MonthlyTable(rows []MonthlyAggregate, variables []string) Table {
	t := Table{Header: append([]string{ColLocation, ColYear, ColMonth}, variables...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, m := range rows {
		t.Rows = append(t.Rows, append(monthKeyCells(m), measureCells(m.Measures, variables)...))
	}
	return t
}

// SeasonalTable encodes seasonal aggregates with the given variable columns.
func SeasonalTable(rows []SeasonalAggregate, variables []string) Table {
	t := Table{Header: append([]string{ColLocation, ColYear, ColSeason}, variables...)}
	t.Rows = make([][]string, 0, len(rows))
	for _, s := range rows {
		key := []string{s.Location, strconv.Itoa(s.Year), string(s.Season)}
		t.Rows = append(t.Rows, append(key, measureCells(s.Measures, variables)...))
	}
	return t
}

// ExtremesTable encodes extreme events: the monthly columns, then temp_z,
// precip_pctile and reason.
func ExtremesTable(events []ExtremeEvent, variables []string) Table {
	header := append([]string{ColLocation, ColYear, ColMonth}, variables...)
	t := Table{Header: append(header, ColTempZ, ColPrecipPctile, ColReason)}
	t.Rows = make([][]string, 0, len(events))
	for _, e := range events {
		row := append(monthKeyCells(e.MonthlyAggregate), measureCells(e.Measures, variables)...)
		row = append(row, formatOptional(e.TempZ), formatOptional(e.PrecipPctile), e.Reason)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ParseMonthlyTable decodes a monthly table, returning the rows and the
// variables it carries.
func ParseMonthlyTable(t Table) ([]MonthlyAggregate, []string, error) {
	if err := CheckConsumerContract(t, "monthly", ColMonth); err != nil {
		return nil, nil, err
	}
	variables := presentVariables(t.Header)
	out := make([]MonthlyAggregate, 0, t.Len())
	for r, row := range t.Rows {
		m, err := parseMonthlyRow(t, row, variables)
		if err != nil {
			return nil, nil, fmt.Errorf("monthly table line %d: %w", r+2, err)
		}
		out = append(out, m)
	}
	return out, variables, nil
}

// ParseSeasonalTable decodes a seasonal table.
func ParseSeasonalTable(t Table) ([]SeasonalAggregate, []string, error) {
	if err := CheckConsumerContract(t, "seasonal", ColSeason); err != nil {
		return nil, nil, err
	}
	variables := presentVariables(t.Header)
	out := make([]SeasonalAggregate, 0, t.Len())
	for r, row := range t.Rows {
		year, err := strconv.Atoi(strings.TrimSpace(cell(row, t.Index(ColYear))))
		if err != nil {
			return nil, nil, fmt.Errorf("seasonal table line %d: year: %w", r+2, err)
		}
		season := Season(cell(row, t.Index(ColSeason)))
		if !season.Valid() {
			return nil, nil, fmt.Errorf("seasonal table line %d: invalid season %q", r+2, season)
		}
		measures, err := parseMeasures(t, row, variables)
		if err != nil {
			return nil, nil, fmt.Errorf("seasonal table line %d: %w", r+2, err)
		}
		out = append(out, SeasonalAggregate{
			Location: cell(row, t.Index(ColLocation)),
			Year:     year,
			Season:   season,
			Measures: measures,
		})
	}
	return out, variables, nil
}

// ParseExtremesTable decodes an extremes table.
func ParseExtremesTable(t Table) ([]ExtremeEvent, []string, error) {
	if err := CheckConsumerContract(t, "extremes", ColMonth); err != nil {
		return nil, nil, err
	}
	if !t.Has(ColReason) {
		return nil, nil, &SchemaError{Table: "extremes", Missing: []string{ColReason}}
	}
	variables := presentVariables(t.Header)
	out := make([]ExtremeEvent, 0, t.Len())
	for r, row := range t.Rows {
		m, err := parseMonthlyRow(t, row, variables)
		if err != nil {
			return nil, nil, fmt.Errorf("extremes table line %d: %w", r+2, err)
		}
		z, okZ := parseOptional(cell(row, t.Index(ColTempZ)))
		p, okP := parseOptional(cell(row, t.Index(ColPrecipPctile)))
		if !okZ || !okP {
			return nil, nil, fmt.Errorf("extremes table line %d: invalid score", r+2)
		}
		out = append(out, ExtremeEvent{
			MonthlyAggregate: m,
			TempZ:            z,
			PrecipPctile:     p,
			Reason:           cell(row, t.Index(ColReason)),
		})
	}
	return out, variables, nil
}

func parseMonthlyRow(t Table, row []string, variables []string) (MonthlyAggregate, error) {
	year, err := strconv.Atoi(strings.TrimSpace(cell(row, t.Index(ColYear))))
	if err != nil {
		return MonthlyAggregate{}, fmt.Errorf("year: %w", err)
	}
	month, ok := ParseTimestamp(cell(row, t.Index(ColMonth)))
	if !ok {
		return MonthlyAggregate{}, fmt.Errorf("month: unparseable %q", cell(row, t.Index(ColMonth)))
	}
	measures, err := parseMeasures(t, row, variables)
	if err != nil {
		return MonthlyAggregate{}, err
	}
	return MonthlyAggregate{
		Location: cell(row, t.Index(ColLocation)),
		Year:     year,
		Month:    time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC),
		Measures: measures,
	}, nil
}

func parseMeasures(t Table, row []string, variables []string) (Measures, error) {
	var m Measures
	for _, name := range variables {
		v, ok := parseOptional(cell(row, t.Index(name)))
		if !ok {
			return Measures{}, fmt.Errorf("%s: not a number: %q", name, cell(row, t.Index(name)))
		}
		m.Set(name, v)
	}
	return m, nil
}

func monthKeyCells(m MonthlyAggregate) []string {
	return []string{m.Location, strconv.Itoa(m.Year), m.Month.Format(monthLayout)}
}

func measureCells(m Measures, variables []string) []string {
	cells := make([]string, len(variables))
	for i, name := range variables {
		cells[i] = formatOptional(m.Get(name))
	}
	return cells
}
