package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanedTable(rows ...[]string) Table {
	return Table{
		Header: []string{"country", "last_updated", "temperature_celsius", "humidity", "precip_mm", "wind_mps"},
		Rows:   rows,
	}
}

func fp(v float64) *float64 { return &v }

func monthStart(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestParseRecords_RequiresLocationAndDate(t *testing.T) {
	_, err := ParseRecords(Table{Header: []string{"humidity"}, Rows: [][]string{{"1"}}})
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "cleaned", schemaErr.Table)
	assert.Equal(t, []string{
		"country|location|location_name|station",
		"date|last_updated|datetime|timestamp",
	}, schemaErr.Missing)
}

func TestParseRecords_SkipsAbsentVariables(t *testing.T) {
	tbl := Table{
		Header: []string{"location", "date", "humidity"},
		Rows:   [][]string{{"A", "2024-01-01T00:00:00Z", "40"}},
	}
	set, err := ParseRecords(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{ColHumidity}, set.Variables)
	require.Len(t, set.Records, 1)
	assert.Equal(t, map[string]float64{ColHumidity: 40}, set.Records[0].Values)
}

func TestAggregateMonthly(t *testing.T) {
	tbl := cleanedTable(
		[]string{"B", "2024-02-10T00:00:00Z", "5", "70", "1", "2"},
		[]string{"A", "2024-01-01T00:00:00Z", "10", "50", "2", "3"},
		[]string{"A", "2024-01-20T00:00:00Z", "20", "70", "3", "5"},
		[]string{"A", "2023-12-31T23:00:00Z", "0", "90", "", "1"},
		[]string{"A", "2024-02-01T00:00:00Z", "12", "", "", ""},
	)
	set, err := ParseRecords(tbl)
	require.NoError(t, err)

	got := AggregateMonthly(set)
	want := []MonthlyAggregate{
		{Location: "A", Year: 2023, Month: monthStart(2023, time.December), Measures: Measures{TemperatureC: fp(0), Humidity: fp(90), PrecipMM: nil, WindMPS: fp(1)}},
		{Location: "A", Year: 2024, Month: monthStart(2024, time.January), Measures: Measures{TemperatureC: fp(15), Humidity: fp(60), PrecipMM: fp(5), WindMPS: fp(4)}},
		{Location: "A", Year: 2024, Month: monthStart(2024, time.February), Measures: Measures{TemperatureC: fp(12)}},
		{Location: "B", Year: 2024, Month: monthStart(2024, time.February), Measures: Measures{TemperatureC: fp(5), Humidity: fp(70), PrecipMM: fp(1), WindMPS: fp(2)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("monthly aggregates mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateMonthly_UsesObservationCalendarMonth(t *testing.T) {
	set, err := ParseRecords(cleanedTable(
		[]string{"A", "2024-01-31T23:30:00-05:00", "10", "50", "1", "2"},
		[]string{"A", "2024-02-29T23:00:00+09:00", "12", "50", "1", "2"},
	))
	require.NoError(t, err)

	monthly := AggregateMonthly(set)
	require.Len(t, monthly, 2)
	assert.Equal(t, monthStart(2024, time.January), monthly[0].Month)
	assert.Equal(t, monthStart(2024, time.February), monthly[1].Month)
}

func TestAggregateMonthly_KeySetMatchesInput(t *testing.T) {
	tbl := cleanedTable(
		[]string{"A", "2024-01-01T00:00:00Z", "1", "1", "1", "1"},
		[]string{"A", "2024-01-02T00:00:00Z", "1", "1", "1", "1"},
		[]string{"A", "2024-03-02T00:00:00Z", "1", "1", "1", "1"},
		[]string{"B", "2024-01-05T00:00:00Z", "1", "1", "1", "1"},
		[]string{"C", "2025-01-05T00:00:00Z", "1", "1", "1", "1"},
	)
	set, err := ParseRecords(tbl)
	require.NoError(t, err)

	inputKeys := map[monthKey]bool{}
	for _, r := range set.Records {
		inputKeys[monthKey{r.Location, r.Timestamp.Year(), r.Timestamp.Month()}] = true
	}
	outputKeys := map[monthKey]bool{}
	for _, m := range AggregateMonthly(set) {
		k := monthKey{m.Location, m.Year, m.Month.Month()}
		assert.False(t, outputKeys[k], "duplicate key %v", k)
		outputKeys[k] = true
	}
	assert.Equal(t, inputKeys, outputKeys)
}

func TestAggregateMonthly_PrecipAllMissingIsNil(t *testing.T) {
	tbl := cleanedTable(
		[]string{"A", "2024-01-01T00:00:00Z", "1", "1", "", "1"},
		[]string{"A", "2024-01-02T00:00:00Z", "1", "1", "", "1"},
		[]string{"A", "2024-02-01T00:00:00Z", "1", "1", "0", "1"},
	)
	set, err := ParseRecords(tbl)
	require.NoError(t, err)

	got := AggregateMonthly(set)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].PrecipMM)
	require.NotNil(t, got[1].PrecipMM)
	assert.InDelta(t, 0.0, *got[1].PrecipMM, 1e-9)
}

func TestAggregateSeasonal(t *testing.T) {
	tbl := cleanedTable(
		[]string{"A", "2024-12-01T00:00:00Z", "2", "", "1", ""},
		[]string{"A", "2024-01-15T00:00:00Z", "4", "", "2", ""},
		[]string{"A", "2024-07-01T00:00:00Z", "30", "", "0", ""},
		[]string{"A", "2024-04-01T00:00:00Z", "15", "", "5", ""},
		[]string{"A", "2024-10-01T00:00:00Z", "10", "", "7", ""},
	)
	set, err := ParseRecords(tbl)
	require.NoError(t, err)

	got := AggregateSeasonal(set)
	require.Len(t, got, 4)

	seasons := make([]Season, len(got))
	for i, s := range got {
		seasons[i] = s.Season
		assert.Equal(t, 2024, s.Year)
	}
	assert.Equal(t, []Season{SeasonDJF, SeasonMAM, SeasonJJA, SeasonSON}, seasons)

	// December and January of the same calendar year share DJF.
	require.NotNil(t, got[0].TemperatureC)
	assert.InDelta(t, 3.0, *got[0].TemperatureC, 1e-9)
	assert.InDelta(t, 3.0, *got[0].PrecipMM, 1e-9)
	assert.Nil(t, got[0].Humidity)
}

func TestSeasonOf(t *testing.T) {
	expected := map[time.Month]Season{
		time.January: SeasonDJF, time.February: SeasonDJF, time.March: SeasonMAM,
		time.April: SeasonMAM, time.May: SeasonMAM, time.June: SeasonJJA,
		time.July: SeasonJJA, time.August: SeasonJJA, time.September: SeasonSON,
		time.October: SeasonSON, time.November: SeasonSON, time.December: SeasonDJF,
	}

	for m := time.January; m <= time.December; m++ {
		got := SeasonOf(m)
		assert.True(t, got.Valid())
		assert.Equal(t, expected[m], got, "month %s", m)
	}
	assert.False(t, Season("XYZ").Valid())
}
