package domain

import (
	"cmp"
	"slices"
	"time"
)

// RecordSet is a cleaned table decoded into WeatherRecords.
type RecordSet struct {
	Records   []WeatherRecord
	Variables []string // output names of the variables present in the source table
	Malformed []*MalformedRecordError
}

// ParseRecords decodes a cleaned table. The location and date columns are
// required; variables whose source columns are absent are skipped. Rows with an
// unparseable timestamp are reported as malformed and skipped.
func ParseRecords(t Table) (RecordSet, error) {
	locCol, hasLoc := ResolveColumn(t.Header, LocationCandidates)
	dateCol, dateErr := ResolveDateColumn(t, "cleaned")

	var missing []string
	if !hasLoc {
		missing = append(missing, joinAlternatives(LocationCandidates))
	}
	if dateErr != nil {
		missing = append(missing, joinAlternatives(DateCandidates))
	}
	if len(missing) > 0 {
		return RecordSet{}, &SchemaError{Table: "cleaned", Missing: missing}
	}

	type source struct {
		name string
		idx  int
	}
	var sources []source
	var set RecordSet
	for _, v := range Variables {
		if col, ok := ResolveColumn(t.Header, v.Sources); ok {
			sources = append(sources, source{name: v.Name, idx: t.Index(col)})
			set.Variables = append(set.Variables, v.Name)
		}
	}

	locIdx, dateIdx := t.Index(locCol), t.Index(dateCol)
	set.Records = make([]WeatherRecord, 0, t.Len())
	for r, row := range t.Rows {
		ts, ok := ParseTimestamp(cell(row, dateIdx))
		if !ok {
			set.Malformed = append(set.Malformed, &MalformedRecordError{
				Line: r + 2, Column: dateCol, Value: cell(row, dateIdx), Reason: "unparseable date",
			})
			continue
		}
		rec := WeatherRecord{
			Location:  cell(row, locIdx),
			Timestamp: ts,
			Values:    make(map[string]float64, len(sources)),
		}
		for _, s := range sources {
			if v, ok := parseNumber(cell(row, s.idx)); ok {
				rec.Values[s.name] = v
			}
		}
		set.Records = append(set.Records, rec)
	}
	return set, nil
}

// monthKey groups records by location and calendar month.
type monthKey struct {
	location string
	year     int
	month    time.Month
}

type seasonKey struct {
	location string
	year     int
	season   Season
}

// accumulator collects the present values of each variable in a group.
type accumulator map[string][]float64

func (a accumulator) add(rec WeatherRecord) {
	for name, v := range rec.Values {
		a[name] = append(a[name], v)
	}
}

func (a accumulator) measures(variables []string) Measures {
	var m Measures
	for _, name := range variables {
		v := variableByName(name)
		switch v.Reduce {
		case ReduceSum:
			m.Set(name, sum(a[name]))
		default:
			m.Set(name, mean(a[name]))
		}
	}
	return m
}

// AggregateMonthly groups records by (location, year, month), sorted by location then month.
func AggregateMonthly(set RecordSet) []MonthlyAggregate {
	groups := make(map[monthKey]accumulator)
	for _, rec := range set.Records {
		k := monthKey{location: rec.Location, year: rec.Timestamp.Year(), month: rec.Timestamp.Month()}
		if groups[k] == nil {
			groups[k] = accumulator{}
		}
		groups[k].add(rec)
	}

	out := make([]MonthlyAggregate, 0, len(groups))
	for k, acc := range groups {
		out = append(out, MonthlyAggregate{
			Location: k.location,
			Year:     k.year,
			Month:    time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC),
			Measures: acc.measures(set.Variables),
		})
	}
	SortMonthly(out)
	return out
}

// AggregateSeasonal groups records by (location, year, season), sorted by
// location, year and season order DJF, MAM, JJA, SON.
func AggregateSeasonal(set RecordSet) []SeasonalAggregate {
	groups := make(map[seasonKey]accumulator)
	for _, rec := range set.Records {
		k := seasonKey{location: rec.Location, year: rec.Timestamp.Year(), season: SeasonOf(rec.Timestamp.Month())}
		if groups[k] == nil {
			groups[k] = accumulator{}
		}
		groups[k].add(rec)
	}

	out := make([]SeasonalAggregate, 0, len(groups))
	for k, acc := range groups {
		out = append(out, SeasonalAggregate{
			Location: k.location,
			Year:     k.year,
			Season:   k.season,
			Measures: acc.measures(set.Variables),
		})
	}
	slices.SortFunc(out, func(a, b SeasonalAggregate) int {
		return cmp.Or(
			cmp.Compare(a.Location, b.Location),
			cmp.Compare(a.Year, b.Year),
			cmp.Compare(a.Season.order(), b.Season.order()),
		)
	})
	return out
}

// SortMonthly orders rows by location, then month.
func SortMonthly(rows []MonthlyAggregate) {
	slices.SortFunc(rows, func(a, b MonthlyAggregate) int {
		return cmp.Or(
			cmp.Compare(a.Location, b.Location),
			a.Month.Compare(b.Month),
		)
	})
}

func variableByName(name string) Variable {
	for _, v := range Variables {
		if v.Name == name {
			return v
		}
	}
	return Variable{Name: name}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
