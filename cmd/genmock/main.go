// Command genmock writes a deterministic synthetic raw weather CSV shaped like
// the Global Weather Repository export. The data carries the defects the
// cleaner must handle: missing cells, duplicate rows, an unparseable timestamp
// and a handful of hot, wet spikes for the extremes detector to find.
//
// Usage:
//
//	go run ./cmd/genmock -out data/raw/GlobalWeatherRepository.csv -months 24 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/climatescope-etl/internal/adapter/filestore"
	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

var baseDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

var header = []string{
	"country", "location_name", "last_updated",
	"temperature_celsius", "humidity", "precip_mm", "wind_kph", "pressure_mb",
	"condition_text",
}

// site is one synthetic location with its climate baseline.
type site struct {
	country  string
	city     string
	meanTemp float64 // annual mean, °C
	swing    float64 // seasonal amplitude, °C; negative in the southern hemisphere
	humidity float64
	rainfall float64 // typical daily precipitation, mm
}

var sites = []site{
	{country: "Norway", city: "Oslo", meanTemp: 6, swing: 10, humidity: 75, rainfall: 2.2},
	{country: "India", city: "Mumbai", meanTemp: 27.5, swing: 2.5, humidity: 78, rainfall: 6},
	{country: "Australia", city: "Sydney", meanTemp: 18, swing: -5, humidity: 65, rainfall: 3.3},
	{country: "Kenya", city: "Nairobi", meanTemp: 19, swing: 1.5, humidity: 70, rainfall: 2.5},
	{country: "Canada", city: "Winnipeg", meanTemp: 3, swing: 18, humidity: 68, rainfall: 1.4},
}

var conditions = []string{"Sunny", "Partly cloudy", "Overcast", "Light rain", "Heavy rain", "Mist"}

type options struct {
	out        string
	months     int
	perMonth   int
	seed       uint64
	missingPct float64
	dupes      int
	spikes     int
}

func main() {
	var o options
	flag.StringVar(&o.out, "out", "data/raw/GlobalWeatherRepository.csv", "output path for the raw CSV")
	flag.IntVar(&o.months, "months", 24, "number of months to generate, starting January 2023")
	flag.IntVar(&o.perMonth, "per-month", 4, "observations per location per month")
	flag.Uint64Var(&o.seed, "seed", 42, "random seed")
	flag.Float64Var(&o.missingPct, "missing", 0.03, "probability that a measurement cell is blank")
	flag.IntVar(&o.dupes, "dupes", 5, "number of duplicated rows")
	flag.IntVar(&o.spikes, "spikes", 3, "number of location-months given a hot, wet spike")
	flag.Parse()

	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func run(o options) error {
	if o.months <= 0 || o.perMonth <= 0 {
		return fmt.Errorf("months and per-month must be positive")
	}
	t := generate(o)
	if err := filestore.New().WriteTable(o.out, t); err != nil {
		return fmt.Errorf("writing raw CSV: %w", err)
	}
	log.Printf("wrote %d rows for %d locations over %d months: %s", t.Len(), len(sites), o.months, o.out)
	return nil
}

func generate(o options) domain.Table {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	spiked := pickSpikes(rng, o)

	t := domain.Table{Header: header}
	for m := range o.months {
		month := baseDate.AddDate(0, m, 0)
		for si, s := range sites {
			spike := spiked[[2]int{si, m}]
			for obs := range o.perMonth {
				day := 1 + obs*(28/o.perMonth) + rng.IntN(3)
				ts := month.AddDate(0, 0, day-1).Add(time.Duration(6+rng.IntN(12)) * time.Hour)
				t.Rows = append(t.Rows, observation(rng, s, ts, spike, o.missingPct))
			}
		}
	}

	for range o.dupes {
		row := t.Rows[rng.IntN(len(t.Rows))]
		t.Rows = append(t.Rows, append([]string(nil), row...))
	}

	// One row with a timestamp the cleaner cannot parse.
	bad := append([]string(nil), t.Rows[rng.IntN(len(t.Rows))]...)
	bad[2] = "not-a-date"
	t.Rows = append(t.Rows, bad)

	rng.Shuffle(len(t.Rows), func(i, j int) { t.Rows[i], t.Rows[j] = t.Rows[j], t.Rows[i] })
	return t
}

func pickSpikes(rng *rand.Rand, o options) map[[2]int]bool {
	spiked := make(map[[2]int]bool, o.spikes)
	for len(spiked) < min(o.spikes, len(sites)*o.months) {
		spiked[[2]int{rng.IntN(len(sites)), rng.IntN(o.months)}] = true
	}
	return spiked
}

func observation(rng *rand.Rand, s site, ts time.Time, spike bool, missingPct float64) []string {
	phase := 2 * math.Pi * float64(ts.Month()-time.January) / 12
	temp := s.meanTemp - s.swing*math.Cos(phase) + rng.NormFloat64()*1.5
	precip := math.Max(0, s.rainfall*rng.ExpFloat64())
	if spike {
		temp += 12 + rng.Float64()*4
		precip = s.rainfall*15 + rng.Float64()*20
	}
	humidity := math.Min(100, math.Max(5, s.humidity+rng.NormFloat64()*8))
	wind := math.Max(0, 12+rng.NormFloat64()*6)
	pressure := 1013 + rng.NormFloat64()*7

	measure := func(v float64) string {
		if rng.Float64() < missingPct {
			return ""
		}
		return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
	}
	condition := conditions[rng.IntN(len(conditions))]
	if rng.Float64() < missingPct {
		condition = ""
	}

	return []string{
		s.country, s.city, ts.Format("2006-01-02 15:04"),
		measure(temp), measure(humidity), measure(precip), measure(wind), measure(pressure),
		condition,
	}
}
