// Package domain models the global weather dataset and the pure transformations
// applied to it: cleaning, monthly/seasonal aggregation and extreme-event detection.
//
// # Data Source
//
// The input is a CSV export of a global weather repository (one row per
// observation, e.g. the Kaggle "Global Weather Repository" dataset). The schema is
// permissive: only a date-like column and a location column are required, and
// every unrecognised column passes through cleaning untouched.
//
// # Column Resolution
//
// Columns are located by ordered candidate lists rather than by guessing:
//
//	date:     date, last_updated, datetime, timestamp
//	location: country, location, location_name, station
//
// The first candidate present in the header wins (for dates, the first one that is
// present and holds at least one parseable value). See [ResolveColumn].
//
// # Missing Values
//
// Empty cells and the markers NA, N/A, NaN, null and None (any case) are missing.
// Numeric columns are filled with the column median over the whole dataset; text
// columns are filled with [UnknownValue].
//
// # Unit Conventions
//
//	temperature  Kelvin when the column minimum exceeds 180, otherwise Celsius.
//	             Derives temperature_c, temperature_f, temperature_k.
//	wind_kph     Derives wind_mph (x 0.621371) and wind_mps (/ 3.6).
//	precip_mm    Derives precip_in (/ 25.4).
//	pressure_mb  Derives pressure_hpa (1 mb = 1 hPa).
//
// The Kelvin heuristic misclassifies a Celsius dataset whose minimum exceeds 180.
// That cannot happen for surface air temperature, so it is kept as is.
//
// # Seasons
//
// Meteorological seasons by calendar month: DJF (Dec, Jan, Feb), MAM, JJA, SON.
// The season year is the calendar year of the observation, so December 2023 is
// aggregated into DJF 2023 together with January and February 2023.
//
// # Extremes
//
// Within each location's monthly series, temperature is standardised with the
// sample mean and sample standard deviation (n-1), and precipitation sums are
// ranked (average rank for ties) and divided by the series length. A month is
// extreme when |z| exceeds the temperature threshold or the precipitation
// percentile reaches its threshold.
package domain
