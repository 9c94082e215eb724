package domain

import "time"

// Output column names shared by the aggregate and extremes tables.
const (
	ColLocation     = "location"
	ColYear         = "year"
	ColMonth        = "month"
	ColSeason       = "season"
	ColTemperatureC = "temperature_c"
	ColHumidity     = "humidity"
	ColPrecipMM     = "precip_mm"
	ColWindMPS      = "wind_mps"
	ColTempZ        = "temp_z"
	ColPrecipPctile = "precip_pctile"
	ColReason       = "reason"
)

// Reduction is how a variable is summarised within a group.
type Reduction int

const (
	ReduceMean Reduction = iota
	ReduceSum
)

// Variable is an aggregated measurement: its output column, the cleaned
// columns it may be read from (first present wins) and its reduction.
type Variable struct {
	Name    string
	Sources []string
	Reduce  Reduction
}

// Variables lists the aggregated measurements in output column order.
var Variables = []Variable{
	{Name: ColTemperatureC, Sources: []string{"temperature_c", "temperature_celsius"}, Reduce: ReduceMean},
	{Name: ColHumidity, Sources: []string{"humidity"}, Reduce: ReduceMean},
	{Name: ColPrecipMM, Sources: []string{"precip_mm"}, Reduce: ReduceSum},
	{Name: ColWindMPS, Sources: []string{"wind_mps", "wind_speed_mps"}, Reduce: ReduceMean},
}

// Measures holds the aggregated variables of one group. Nil means the
// variable had no observed value in the group.
type Measures struct {
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	PrecipMM     *float64 `json:"precip_mm,omitempty"`
	WindMPS      *float64 `json:"wind_mps,omitempty"`
}

// Get returns the value of a variable by output column name.
func (m Measures) Get(name string) *float64 {
	switch name {
	case ColTemperatureC:
		return m.TemperatureC
	case ColHumidity:
		return m.Humidity
	case ColPrecipMM:
		return m.PrecipMM
	case ColWindMPS:
		return m.WindMPS
	default:
		return nil
	}
}

// Set assigns a variable by output column name; unknown names are ignored.
func (m *Measures) Set(name string, v *float64) {
	switch name {
	case ColTemperatureC:
		m.TemperatureC = v
	case ColHumidity:
		m.Humidity = v
	case ColPrecipMM:
		m.PrecipMM = v
	case ColWindMPS:
		m.WindMPS = v
	}
}

// WeatherRecord is one cleaned observation, keyed for aggregation.
type WeatherRecord struct {
	Location  string
	Timestamp time.Time
	Values    map[string]float64 // by Variable.Name; absent when missing
}

// MonthlyAggregate summarises one (location, year, month).
type MonthlyAggregate struct {
	Location string    `json:"location"`
	Year     int       `json:"year"`
	Month    time.Time `json:"month"` // first day of the month, UTC
	Measures
}

// Season is a meteorological season code.
type Season string

const (
	SeasonDJF Season = "DJF"
	SeasonMAM Season = "MAM"
	SeasonJJA Season = "JJA"
	SeasonSON Season = "SON"
)

// Seasons in output order.
var Seasons = []Season{SeasonDJF, SeasonMAM, SeasonJJA, SeasonSON}

// SeasonOf maps a calendar month to its season.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonDJF
	case time.March, time.April, time.May:
		return SeasonMAM
	case time.June, time.July, time.August:
		return SeasonJJA
	default:
		return SeasonSON
	}
}

// Valid reports whether s is one of the four season codes.
func (s Season) Valid() bool {
	return s.order() >= 0
}

func (s Season) order() int {
	for i, v := range Seasons {
		if v == s {
			return i
		}
	}
	return -1
}

// SeasonalAggregate summarises one (location, year, season).
type SeasonalAggregate struct {
	Location string `json:"location"`
	Year     int    `json:"year"`
	Season   Season `json:"season"`
	Measures
}

// ExtremeEvent is a flagged monthly aggregate with the scores that flagged it.
type ExtremeEvent struct {
	MonthlyAggregate
	TempZ        *float64 `json:"temp_z"`
	PrecipPctile *float64 `json:"precip_pctile"`
	Reason       string   `json:"reason"`
}
