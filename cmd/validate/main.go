// Command validate performs end-to-end integrity checks across the artifacts
// of a pipeline run: the cleaned CSV, the monthly and seasonal aggregates, and
// the extremes table. Each downstream artifact is recomputed from its upstream
// input and compared against what is on disk.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -cleaned data/processed/cleaned_weather.csv \
//	  -monthly data/processed/monthly_agg.csv \
//	  -seasonal data/processed/seasonal_agg.csv \
//	  -extremes analysis/extremes.csv \
//	  -manifest data/processed/manifest.json
//
// Extremes are checked against the thresholds in the manifest, which a full
// run writes and a standalone extremes stage updates.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/climatescope-etl/internal/adapter/filestore"
	"github.com/couchcryptid/climatescope-etl/internal/config"
	"github.com/couchcryptid/climatescope-etl/internal/domain"
	"github.com/couchcryptid/climatescope-etl/internal/pipeline"
)

// tolerance absorbs the rounding applied when numbers are written to CSV.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// artifacts holds every table a run produces.
type artifacts struct {
	cleaned  domain.Table
	monthly  domain.Table
	seasonal domain.Table
	extremes domain.Table
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	paths := cfg.Paths
	flag.StringVar(&paths.Cleaned, "cleaned", paths.Cleaned, "cleaned CSV")
	flag.StringVar(&paths.Monthly, "monthly", paths.Monthly, "monthly aggregate CSV")
	flag.StringVar(&paths.Seasonal, "seasonal", paths.Seasonal, "seasonal aggregate CSV")
	flag.StringVar(&paths.Extremes, "extremes", paths.Extremes, "extremes CSV")
	flag.StringVar(&paths.Manifest, "manifest", paths.Manifest, "run manifest JSON (thresholds fall back to the environment when absent)")
	flag.Parse()

	os.Exit(run(paths, cfg.Thresholds, os.Stdout))
}

func run(paths config.Paths, fallback domain.Thresholds, out io.Writer) int {
	fmt.Fprintln(out, "=== Weather Artifact Integrity Validation ===")
	fmt.Fprintln(out)

	store := filestore.New()
	a, err := load(store, paths)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	th := fallback
	var manifest pipeline.RunReport
	switch err := store.ReadJSON(paths.Manifest, &manifest); {
	case err == nil:
		th = manifest.Thresholds
		fmt.Fprintf(out, "  Thresholds from run %s\n", manifest.RunID)
	case errors.Is(err, domain.ErrInputMissing):
		fmt.Fprintln(out, "  Note: no manifest found, using configured thresholds")
	default:
		fmt.Fprintf(out, "FATAL: load manifest: %v\n", err)
		return 1
	}

	set, err := domain.ParseRecords(a.cleaned)
	if err != nil {
		fmt.Fprintf(out, "FATAL: parse cleaned table: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCleaned(a.cleaned),
		validateMonthly(set, a.monthly),
		validateSeasonal(set, a.seasonal),
		validateExtremes(a.monthly, a.extremes, th),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d cleaned, %d monthly, %d seasonal, %d extremes\n",
		a.cleaned.Len(), a.monthly.Len(), a.seasonal.Len(), a.extremes.Len())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func load(store *filestore.Store, paths config.Paths) (artifacts, error) {
	var a artifacts
	for _, t := range []struct {
		path string
		dst  *domain.Table
	}{
		{paths.Cleaned, &a.cleaned},
		{paths.Monthly, &a.monthly},
		{paths.Seasonal, &a.seasonal},
		{paths.Extremes, &a.extremes},
	} {
		table, err := store.ReadTable(t.path)
		if err != nil {
			return artifacts{}, fmt.Errorf("load %s: %w", t.path, err)
		}
		*t.dst = table
	}
	return a, nil
}

// ── Phase 1: Cleaned table ──
// Every timestamp parses, no row repeats, and imputation left no gaps. Columns
// with no value at all stay empty by design of the cleaner and are skipped.

func validateCleaned(t domain.Table) *phase {
	p := &phase{name: "Phase 1: Cleaned Table"}

	dateCol, err := domain.ResolveDateColumn(t, "cleaned")
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	dateIdx := t.Index(dateCol)

	blank := make([]bool, len(t.Header))
	for c := range t.Header {
		blank[c] = t.AllMissing(c)
	}

	if _, dupes := domain.Deduplicate(t.Rows); dupes > 0 {
		p.errorf("%d duplicate row(s) survived cleaning", dupes)
	}

	for i, row := range t.Rows {
		line := i + 2
		if _, ok := domain.ParseTimestamp(row[dateIdx]); !ok {
			p.errorf("line %d: unparseable timestamp %q", line, row[dateIdx])
		}
		for c, v := range row {
			if c < len(blank) && !blank[c] && domain.IsMissing(v) {
				p.errorf("line %d: column %q is still missing", line, t.Header[c])
			}
		}
	}
	return p
}

// ── Phase 2: Monthly aggregates ──
// The monthly table equals a fresh aggregation of the cleaned table.

func validateMonthly(set domain.RecordSet, t domain.Table) *phase {
	p := &phase{name: "Phase 2: Monthly Aggregates (vs cleaned)"}

	got, _, err := domain.ParseMonthlyTable(t)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	want := domain.AggregateMonthly(set)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, tolerance)); diff != "" {
		p.errorf("monthly table differs from recomputed aggregates (-want +got):\n%s", diff)
	}
	return p
}

// ── Phase 3: Seasonal aggregates ──
// Season codes are valid and values match a fresh aggregation.

func validateSeasonal(set domain.RecordSet, t domain.Table) *phase {
	p := &phase{name: "Phase 3: Seasonal Aggregates (vs cleaned)"}

	got, _, err := domain.ParseSeasonalTable(t)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	want := domain.AggregateSeasonal(set)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, tolerance)); diff != "" {
		p.errorf("seasonal table differs from recomputed aggregates (-want +got):\n%s", diff)
	}
	return p
}

// ── Phase 4: Extremes ──
// The flagged months are exactly those the thresholds select.

func validateExtremes(monthlyTable, t domain.Table, th domain.Thresholds) *phase {
	p := &phase{name: "Phase 4: Extremes (vs monthly + thresholds)"}

	if err := th.Validate(); err != nil {
		p.errorf("thresholds: %v", err)
		return p
	}
	monthly, _, err := domain.ParseMonthlyTable(monthlyTable)
	if err != nil {
		p.errorf("monthly: %v", err)
		return p
	}
	got, _, err := domain.ParseExtremesTable(t)
	if err != nil {
		p.errorf("%v", err)
		return p
	}

	for i, e := range got {
		if e.Reason == "" {
			p.errorf("extreme %d (%s %s): empty reason", i, e.Location, e.Month.Format("2006-01"))
		}
	}

	want := domain.DetectExtremes(monthly, th).Events
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, tolerance), cmpopts.EquateEmpty()); diff != "" {
		p.errorf("extremes differ from recomputed detection (-want +got):\n%s", diff)
	}
	return p
}
