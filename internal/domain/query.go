package domain

import "time"

// Artifacts are the tables one pipeline run produces, handed to optional sinks.
type Artifacts struct {
	RunID       string
	GeneratedAt time.Time
	Variables   []string
	Monthly     []MonthlyAggregate
	Seasonal    []SeasonalAggregate
	Extremes    []ExtremeEvent
}

// Query filters aggregate and extremes rows. Zero values match everything.
type Query struct {
	Location string
	FromYear int
	ToYear   int
}

// Match reports whether a row with the given location and year passes the filter.
func (q Query) Match(location string, year int) bool {
	if q.Location != "" && q.Location != location {
		return false
	}
	if q.FromYear != 0 && year < q.FromYear {
		return false
	}
	if q.ToYear != 0 && year > q.ToYear {
		return false
	}
	return true
}
