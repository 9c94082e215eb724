package inspect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

func sample() domain.Table {
	return domain.Table{
		Header: []string{"country", "last_updated", "temperature_celsius", "condition"},
		Rows: [][]string{
			{"A", "2024-01-03 10:00", "10.5", "Sunny"},
			{"B", "2023-12-30 08:00", "NA", "Rain"},
			{"A", "2024-02-10 09:30", "-2", ""},
			{"C", "not a date", "4"},
		},
	}
}

func field(t *testing.T, p Profile, name string) ColumnProfile {
	t.Helper()
	for _, f := range p.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no profile for column %q", name)
	return ColumnProfile{}
}

func TestRun(t *testing.T) {
	p, err := Run(sample())
	require.NoError(t, err)

	assert.Equal(t, 4, p.Rows)
	assert.Equal(t, 4, p.Columns)
	assert.Equal(t, 3, p.Locations)
	assert.Equal(t, "last_updated", p.DateColumn)
	assert.Equal(t, time.Date(2023, time.December, 30, 8, 0, 0, 0, time.UTC), p.From)
	assert.Equal(t, time.Date(2024, time.February, 10, 9, 30, 0, 0, time.UTC), p.To)

	temp := field(t, p, "temperature_celsius")
	assert.Equal(t, "float", temp.Type)
	assert.Equal(t, 1, temp.Missing)
	assert.InDelta(t, 25.0, temp.MissingPct, 1e-9)
	require.NotNil(t, temp.Min)
	assert.InDelta(t, -2.0, *temp.Min, 1e-9)
	assert.InDelta(t, 10.5, *temp.Max, 1e-9)
	assert.InDelta(t, 12.5/3, *temp.Mean, 1e-9)

	cond := field(t, p, "condition")
	assert.Equal(t, "string", cond.Type)
	assert.Equal(t, 2, cond.Missing, "empty and absent trailing cells are missing")
	assert.Nil(t, cond.Mean)
}

func TestRun_EmptyTable(t *testing.T) {
	p, err := Run(domain.Table{})
	require.NoError(t, err)
	assert.Zero(t, p.Rows)
	assert.Empty(t, p.Fields)
}

func TestMarkdown(t *testing.T) {
	p, err := Run(sample())
	require.NoError(t, err)

	md := Markdown(p)
	assert.Contains(t, md, "# Dataset Summary Report")
	assert.Contains(t, md, "- **Shape:** 4 rows × 4 columns")
	assert.Contains(t, md, "| temperature_celsius | float | 1 | 25.00 | 3 | -2.00 | 10.50 | 4.17 |")
	assert.Contains(t, md, "## Date Range")
	assert.Contains(t, md, "2023-12-30T08:00:00Z → 2024-02-10T09:30:00Z")
}
