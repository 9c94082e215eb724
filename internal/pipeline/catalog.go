package pipeline

import (
	"context"
	"slices"

	"github.com/couchcryptid/climatescope-etl/internal/config"
	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// Catalog serves persisted artifacts to read-only consumers. Every call goes
// through the reader, so it reflects the latest run on disk as long as the
// reader does (filestore.CachedReader invalidates on modification).
type Catalog struct {
	reader TableReader
	paths  config.Paths
}

// NewCatalog creates a Catalog over the artifact paths.
func NewCatalog(reader TableReader, paths config.Paths) *Catalog {
	return &Catalog{reader: reader, paths: paths}
}

// CheckReadiness returns nil when the monthly and extremes tables exist and
// satisfy the consumer contract.
func (c *Catalog) CheckReadiness(_ context.Context) error {
	if _, err := c.monthly(); err != nil {
		return err
	}
	_, err := c.extremes()
	return err
}

func (c *Catalog) monthly() ([]domain.MonthlyAggregate, error) {
	t, err := c.reader.ReadTable(c.paths.Monthly)
	if err != nil {
		return nil, err
	}
	rows, _, err := domain.ParseMonthlyTable(t)
	return rows, err
}

func (c *Catalog) extremes() ([]domain.ExtremeEvent, error) {
	t, err := c.reader.ReadTable(c.paths.Extremes)
	if err != nil {
		return nil, err
	}
	rows, _, err := domain.ParseExtremesTable(t)
	return rows, err
}

// Locations lists the distinct locations in the monthly table, sorted.
func (c *Catalog) Locations(_ context.Context) ([]string, error) {
	rows, err := c.monthly()
	if err != nil {
		return nil, err
	}
	locations := make([]string, 0)
	for _, r := range rows {
		locations = append(locations, r.Location)
	}
	slices.Sort(locations)
	return slices.Compact(locations), nil
}

// Monthly returns monthly aggregates matching q, ordered by location and month.
func (c *Catalog) Monthly(_ context.Context, q domain.Query) ([]domain.MonthlyAggregate, error) {
	rows, err := c.monthly()
	if err != nil {
		return nil, err
	}
	out := make([]domain.MonthlyAggregate, 0, len(rows))
	for _, r := range rows {
		if q.Match(r.Location, r.Year) {
			out = append(out, r)
		}
	}
	domain.SortMonthly(out)
	return out, nil
}

// Seasonal returns seasonal aggregates matching q in file order.
func (c *Catalog) Seasonal(_ context.Context, q domain.Query) ([]domain.SeasonalAggregate, error) {
	t, err := c.reader.ReadTable(c.paths.Seasonal)
	if err != nil {
		return nil, err
	}
	rows, _, err := domain.ParseSeasonalTable(t)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SeasonalAggregate, 0, len(rows))
	for _, r := range rows {
		if q.Match(r.Location, r.Year) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Extremes returns flagged months matching q.
func (c *Catalog) Extremes(_ context.Context, q domain.Query) ([]domain.ExtremeEvent, error) {
	rows, err := c.extremes()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExtremeEvent, 0, len(rows))
	for _, r := range rows {
		if q.Match(r.Location, r.Year) {
			out = append(out, r)
		}
	}
	return out, nil
}
