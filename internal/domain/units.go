package domain

import (
	"math"
	"slices"
)

// kelvinThreshold: a temperature column whose minimum exceeds this is read as Kelvin.
const kelvinThreshold = 180.0

const (
	kelvinOffset = 273.15
	kphToMph     = 0.621371
	mmPerInch    = 25.4
)

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

// CelsiusToKelvin converts °C to K.
func CelsiusToKelvin(c float64) float64 { return c + kelvinOffset }

// KelvinToCelsius converts K to °C.
func KelvinToCelsius(k float64) float64 { return k - kelvinOffset }

// KphToMph converts km/h to miles per hour.
func KphToMph(kph float64) float64 { return kph * kphToMph }

// KphToMps converts km/h to metres per second.
func KphToMps(kph float64) float64 { return kph / 3.6 }

// MillimetresToInches converts precipitation depth from mm to inches.
func MillimetresToInches(mm float64) float64 { return mm / mmPerInch }

// unitOutput is one derived column computed value by value.
type unitOutput struct {
	name    string
	convert func(float64) float64
}

// unitDerivation derives columns from a source column. prepare sees every
// parsed source value (NaN where missing) and returns the per-value outputs,
// which lets dataset-level heuristics pick a conversion.
type unitDerivation struct {
	source  string
	prepare func(values []float64) []unitOutput
}

// unitDerivations is applied in order; entries whose source column is absent are skipped.
var unitDerivations = []unitDerivation{
	{source: "temperature", prepare: temperatureOutputs},
	{source: "wind_kph", prepare: fixed(
		unitOutput{name: "wind_mph", convert: KphToMph},
		unitOutput{name: "wind_mps", convert: KphToMps},
	)},
	{source: "precip_mm", prepare: fixed(
		unitOutput{name: "precip_in", convert: MillimetresToInches},
	)},
	{source: "pressure_mb", prepare: fixed(
		unitOutput{name: "pressure_hpa", convert: func(mb float64) float64 { return mb }},
	)},
}

func fixed(outputs ...unitOutput) func([]float64) []unitOutput {
	return func([]float64) []unitOutput { return outputs }
}

// temperatureOutputs normalises to Celsius first, guessing Kelvin from the minimum.
func temperatureOutputs(values []float64) []unitOutput {
	toC := func(v float64) float64 { return v }
	if IsKelvin(values) {
		toC = KelvinToCelsius
	}
	return []unitOutput{
		{name: "temperature_c", convert: toC},
		{name: "temperature_f", convert: func(v float64) float64 { return CelsiusToFahrenheit(toC(v)) }},
		{name: "temperature_k", convert: func(v float64) float64 { return CelsiusToKelvin(toC(v)) }},
	}
}

// IsKelvin reports whether the minimum of the non-NaN values exceeds 180.
// A column with no values is treated as Celsius.
func IsKelvin(values []float64) bool {
	lowest := math.Inf(1)
	for _, v := range values {
		if !math.IsNaN(v) && v < lowest {
			lowest = v
		}
	}
	return !math.IsInf(lowest, 1) && lowest > kelvinThreshold
}

// deriveUnits appends (or overwrites) the derived columns of every derivation
// whose source is present. It returns the names of the columns it wrote.
func deriveUnits(t *Table) []string {
	var written []string
	for _, d := range unitDerivations {
		src := t.Index(d.source)
		if src < 0 {
			continue
		}
		values := make([]float64, len(t.Rows))
		for r, row := range t.Rows {
			v, ok := parseNumber(row[src])
			if !ok {
				v = math.NaN()
			}
			values[r] = v
		}
		for _, out := range d.prepare(values) {
			col := ensureColumn(t, out.name)
			for r, v := range values {
				cell := ""
				if !math.IsNaN(v) {
					cell = formatNumber(out.convert(v))
				}
				t.Rows[r][col] = cell
			}
			written = append(written, out.name)
		}
	}
	return written
}

// ensureColumn returns the index of name, appending an empty column when absent.
func ensureColumn(t *Table, name string) int {
	if i := t.Index(name); i >= 0 {
		return i
	}
	t.Header = append(slices.Clip(t.Header), name)
	for r := range t.Rows {
		t.Rows[r] = append(slices.Clip(t.Rows[r]), "")
	}
	return len(t.Header) - 1
}
