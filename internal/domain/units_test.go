package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCelsiusFahrenheitRoundTrip(t *testing.T) {
	for _, c := range []float64{-40, -12.3, 0, 21.7, 36.6, 100} {
		got := FahrenheitToCelsius(CelsiusToFahrenheit(c))
		assert.InDelta(t, c, got, 0.01, "round trip of %v", c)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(float64) float64
		in       float64
		expected float64
	}{
		{"freezing to fahrenheit", CelsiusToFahrenheit, 0, 32},
		{"boiling to fahrenheit", CelsiusToFahrenheit, 100, 212},
		{"celsius to kelvin", CelsiusToKelvin, 0, 273.15},
		{"kelvin to celsius", KelvinToCelsius, 300, 26.85},
		{"kph to mph", KphToMph, 100, 62.1371},
		{"kph to mps", KphToMps, 36, 10},
		{"mm to inches", MillimetresToInches, 25.4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.fn(tt.in), 1e-9)
		})
	}
}

func TestIsKelvin(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected bool
	}{
		{"celsius", []float64{-5, 12, 30}, false},
		{"kelvin", []float64{260.5, 290, 305}, true},
		{"boundary is celsius", []float64{180, 200}, false},
		{"nan ignored", []float64{math.NaN(), 250, 281}, true},
		{"empty", nil, false},
		{"all nan", []float64{math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsKelvin(tt.values))
		})
	}
}

func TestClean_DerivesTemperatureFromKelvin(t *testing.T) {
	raw := rawTable([]string{"country", "date", "temperature"},
		[]string{"A", "2024-01-01", "273.15"},
		[]string{"A", "2024-01-02", "300.15"},
	)

	res, err := Clean(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "27"}, res.Table.Column("temperature_c"))
	assert.Equal(t, []string{"32", "80.6"}, res.Table.Column("temperature_f"))
	assert.Equal(t, []string{"273.15", "300.15"}, res.Table.Column("temperature_k"))
	assert.Contains(t, res.Stats.Derived, "temperature_c")
}

func TestClean_DerivesTemperatureFromCelsius(t *testing.T) {
	raw := rawTable([]string{"country", "date", "temperature"},
		[]string{"A", "2024-01-01", "20"},
		[]string{"A", "2024-01-02", "-10"},
	)

	res, err := Clean(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"20", "-10"}, res.Table.Column("temperature_c"))
	assert.Equal(t, []string{"68", "14"}, res.Table.Column("temperature_f"))
	assert.Equal(t, []string{"293.15", "263.15"}, res.Table.Column("temperature_k"))
}

func TestClean_DerivesWindPrecipPressure(t *testing.T) {
	raw := rawTable([]string{"country", "date", "wind_kph", "precip_mm", "pressure_mb"},
		[]string{"A", "2024-01-01", "36", "25.4", "1013"},
	)

	res, err := Clean(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"22.369356"}, res.Table.Column("wind_mph"))
	assert.Equal(t, []string{"10"}, res.Table.Column("wind_mps"))
	assert.Equal(t, []string{"1"}, res.Table.Column("precip_in"))
	assert.Equal(t, []string{"1013"}, res.Table.Column("pressure_hpa"))
	assert.Equal(t, []string{"wind_mph", "wind_mps", "precip_in", "pressure_hpa"}, res.Stats.Derived)
}

func TestClean_SkipsDerivationWithoutSource(t *testing.T) {
	raw := rawTable([]string{"country", "date", "humidity"},
		[]string{"A", "2024-01-01", "60"},
	)

	res, err := Clean(raw)
	require.NoError(t, err)
	assert.Empty(t, res.Stats.Derived)
	assert.False(t, res.Table.Has("temperature_c"))
	assert.False(t, res.Table.Has("wind_mps"))
}

func TestClean_OverwritesExistingDerivedColumn(t *testing.T) {
	raw := rawTable([]string{"country", "date", "precip_mm", "precip_in"},
		[]string{"A", "2024-01-01", "50.8", "999"},
	)

	res, err := Clean(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "date", "precip_mm", "precip_in"}, res.Table.Header)
	assert.Equal(t, []string{"2"}, res.Table.Column("precip_in"))
}
