package http

import "github.com/couchcryptid/climatescope-etl/internal/domain"

type monthlyResponse struct {
	Location string `json:"location"`
	Year     int    `json:"year"`
	Month    string `json:"month"` // YYYY-MM
	domain.Measures
}

func toMonthlyResponse(m domain.MonthlyAggregate) monthlyResponse {
	return monthlyResponse{
		Location: m.Location,
		Year:     m.Year,
		Month:    m.Month.Format("2006-01"),
		Measures: m.Measures,
	}
}

type extremeResponse struct {
	monthlyResponse
	TempZ        *float64 `json:"temp_z"`
	PrecipPctile *float64 `json:"precip_pctile"`
	Reason       string   `json:"reason"`
}
