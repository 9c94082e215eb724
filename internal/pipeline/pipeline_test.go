package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climatescope-etl/internal/adapter/filestore"
	"github.com/couchcryptid/climatescope-etl/internal/config"
	"github.com/couchcryptid/climatescope-etl/internal/domain"
	"github.com/couchcryptid/climatescope-etl/internal/observability"
	"github.com/couchcryptid/climatescope-etl/internal/pipeline"
)

// --- mocks ---

type memStore struct {
	tables   map[string]domain.Table
	json     map[string]any
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{tables: map[string]domain.Table{}, json: map[string]any{}}
}

func (m *memStore) ReadTable(path string) (domain.Table, error) {
	t, ok := m.tables[path]
	if !ok {
		return domain.Table{}, &domain.InputMissingError{Path: path}
	}
	return t, nil
}

func (m *memStore) WriteTable(path string, t domain.Table) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.tables[path] = t
	return nil
}

func (m *memStore) WriteJSON(path string, v any) error {
	m.json[path] = v
	return nil
}

func (m *memStore) ReadJSON(path string, v any) error {
	stored, ok := m.json[path]
	if !ok {
		return &domain.InputMissingError{Path: path}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

type mockExporter struct {
	got domain.Artifacts
	err error
}

func (m *mockExporter) Export(_ context.Context, a domain.Artifacts) (int, error) {
	m.got = a
	if m.err != nil {
		return 0, m.err
	}
	return len(a.Monthly) + len(a.Seasonal) + len(a.Extremes), nil
}

type mockPublisher struct {
	runID  string
	events []domain.ExtremeEvent
}

func (m *mockPublisher) PublishExtremes(_ context.Context, runID string, events []domain.ExtremeEvent) (int, error) {
	m.runID = runID
	m.events = events
	return len(events), nil
}

// --- fixtures ---

var testPaths = config.Paths{
	Raw:      "raw.csv",
	Cleaned:  "cleaned.csv",
	Monthly:  "monthly.csv",
	Seasonal: "seasonal.csv",
	Extremes: "extremes.csv",
	Manifest: "manifest.json",
}

// rawTestland has one observation per month for Jan-May 2024; May is hot and wet.
func rawTestland() domain.Table {
	return domain.Table{
		Header: []string{"country", "last_updated", "temperature_celsius", "humidity", "precip_mm", "wind_kph", "condition"},
		Rows: [][]string{
			{"Testland", "2024-01-15 12:00", "10", "50", "5", "36", "Sunny"},
			{"Testland", "2024-02-15 12:00", "11", "", "6", "18", ""},
			{"Testland", "2024-03-15 12:00", "9", "55", "4", "36", "Cloudy"},
			{"Testland", "2024-03-15 12:00", "9", "55", "4", "36", "Cloudy"},
			{"Testland", "2024-04-15 12:00", "10", "60", "5", "36", "Rain"},
			{"Testland", "2024-05-15 12:00", "40", "70", "200", "72", "Storm"},
			{"Testland", "yesterday", "12", "50", "1", "10", "Sunny"},
		},
	}
}

func newTestPipeline(t *testing.T, store pipeline.Store, opts ...pipeline.Option) (*pipeline.Pipeline, *observability.Metrics) {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC))
	pipeline.SetClock(fake)
	t.Cleanup(func() { pipeline.SetClock(nil) })

	metrics := observability.NewMetricsForTesting()
	return pipeline.New(store, testPaths, domain.DefaultThresholds(), slog.Default(), metrics, opts...), metrics
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Raw] = rawTestland()
	exp := &mockExporter{}
	pub := &mockPublisher{}
	p, metrics := newTestPipeline(t, store, pipeline.WithExporter(exp), pipeline.WithPublisher(pub))

	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSucceeded, report.Status)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC), report.StartedAt)

	stages := make([]string, len(report.Stages))
	for i, s := range report.Stages {
		stages[i] = s.Stage
	}
	assert.Equal(t, []string{"clean", "aggregate", "extremes", "export", "publish"}, stages)

	clean, _ := report.Stage(pipeline.StageClean)
	assert.Equal(t, 7, clean.RowsIn)
	assert.Equal(t, 5, clean.RowsOut)
	assert.Equal(t, 1, clean.Malformed)
	assert.Equal(t, 1, clean.Counts["duplicates"])

	monthly := store.tables[testPaths.Monthly]
	assert.Equal(t, []string{"location", "year", "month", "temperature_c", "humidity", "precip_mm", "wind_mps"}, monthly.Header)
	assert.Equal(t, 5, monthly.Len())

	extremes := store.tables[testPaths.Extremes]
	require.Equal(t, 1, extremes.Len())
	row := extremes.Rows[0]
	assert.Equal(t, "Testland", row[extremes.Index("location")])
	assert.Equal(t, "2024-05-01", row[extremes.Index("month")])
	assert.Equal(t, "temp_z=1.79; precip_pctile=1.00", row[extremes.Index("reason")])

	require.Len(t, pub.events, 1)
	assert.Equal(t, report.RunID, pub.runID)
	assert.Equal(t, report.RunID, exp.got.RunID)
	assert.Len(t, exp.got.Monthly, 5)

	manifest, ok := store.json[testPaths.Manifest].(pipeline.RunReport)
	require.True(t, ok)
	if diff := cmp.Diff(report, manifest); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ExtremesFlagged.WithLabelValues("temp_z")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.DuplicatesRemoved), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.MalformedRecords.WithLabelValues("clean")), 1e-9)
}

func TestPipeline_Run_MissingRawInput(t *testing.T) {
	store := newMemStore()
	p, metrics := newTestPipeline(t, store)

	report, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInputMissing)
	assert.Equal(t, pipeline.StatusFailed, report.Status)
	require.Len(t, report.Stages, 1)
	assert.NotEmpty(t, report.Stages[0].Error)

	_, written := store.json[testPaths.Manifest]
	assert.True(t, written, "manifest is written for failed runs")
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.StageErrors.WithLabelValues("clean")), 1e-9)
}

func TestPipeline_Run_SchemaMismatch(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Raw] = domain.Table{
		Header: []string{"country", "humidity"},
		Rows:   [][]string{{"A", "1"}},
	}
	p, _ := newTestPipeline(t, store)

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
	_, cleaned := store.tables[testPaths.Cleaned]
	assert.False(t, cleaned, "no cleaned table is written on a schema error")
}

func TestPipeline_Run_ExportFailureFailsRun(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Raw] = rawTestland()
	p, _ := newTestPipeline(t, store, pipeline.WithExporter(&mockExporter{err: errors.New("disk full")}))

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.StatusFailed, report.Status)
	export, ok := report.Stage(pipeline.StageExport)
	require.True(t, ok)
	assert.Equal(t, "disk full", export.Error)
}

func TestPipeline_Run_CancelledContext(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Raw] = rawTestland()
	p, _ := newTestPipeline(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Stages)
}

func TestPipeline_DetectExtremes_NoFlagsWritesHeader(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Monthly] = domain.Table{
		Header: []string{"location", "year", "month", "temperature_c"},
		Rows: [][]string{
			{"Calm", "2024", "2024-01-01", "10"},
			{"Calm", "2024", "2024-02-01", "11"},
			{"Calm", "2024", "2024-03-01", "10"},
		},
	}
	p, _ := newTestPipeline(t, store)

	sr, err := p.DetectExtremes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sr.RowsOut)

	out := store.tables[testPaths.Extremes]
	assert.Equal(t, []string{"location", "year", "month", "temperature_c", "temp_z", "precip_pctile", "reason"}, out.Header)
	assert.Zero(t, out.Len())
}

func TestPipeline_DetectExtremes_ContractViolation(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Monthly] = domain.Table{Header: []string{"location", "month", "temperature_c"}}
	p, _ := newTestPipeline(t, store)

	_, err := p.DetectExtremes(context.Background())
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"year"}, schemaErr.Missing)
}

func TestPipeline_Aggregate_WriteFailure(t *testing.T) {
	store := newMemStore()
	store.tables[testPaths.Cleaned] = domain.Table{
		Header: []string{"country", "last_updated", "humidity"},
		Rows:   [][]string{{"A", "2024-01-01T00:00:00Z", "1"}},
	}
	store.writeErr = errors.New("read-only filesystem")
	p, _ := newTestPipeline(t, store)

	_, err := p.Aggregate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write monthly table")
}

func TestPipeline_Run_FileStoreEndToEnd(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{
		Raw:      filepath.Join(dir, "raw", "weather.csv"),
		Cleaned:  filepath.Join(dir, "processed", "cleaned.csv"),
		Monthly:  filepath.Join(dir, "processed", "monthly.csv"),
		Seasonal: filepath.Join(dir, "processed", "seasonal.csv"),
		Extremes: filepath.Join(dir, "analysis", "extremes.csv"),
		Manifest: filepath.Join(dir, "processed", "manifest.json"),
	}
	store := filestore.New()
	require.NoError(t, store.WriteTable(paths.Raw, rawTestland()))

	p := pipeline.New(store, paths, domain.DefaultThresholds(), slog.Default(), observability.NewMetricsForTesting())
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, path := range []string{paths.Cleaned, paths.Monthly, paths.Seasonal, paths.Extremes, paths.Manifest} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	var manifest pipeline.RunReport
	require.NoError(t, store.ReadJSON(paths.Manifest, &manifest))
	assert.Equal(t, pipeline.StatusSucceeded, manifest.Status)
	assert.Len(t, manifest.Stages, 3)

	catalog := pipeline.NewCatalog(store, paths)
	require.NoError(t, catalog.CheckReadiness(context.Background()))
	events, err := catalog.Extremes(context.Background(), domain.Query{Location: "Testland"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.May, events[0].Month.Month())
}

func TestPipeline_RecordThresholds_UpdatesManifest(t *testing.T) {
	dir := t.TempDir()
	paths := config.Paths{
		Raw:      filepath.Join(dir, "raw.csv"),
		Cleaned:  filepath.Join(dir, "cleaned.csv"),
		Monthly:  filepath.Join(dir, "monthly.csv"),
		Seasonal: filepath.Join(dir, "seasonal.csv"),
		Extremes: filepath.Join(dir, "extremes.csv"),
		Manifest: filepath.Join(dir, "manifest.json"),
	}
	store := filestore.New()
	require.NoError(t, store.WriteTable(paths.Raw, rawTestland()))

	first := pipeline.New(store, paths, domain.DefaultThresholds(), slog.Default(), observability.NewMetricsForTesting())
	report, err := first.Run(context.Background())
	require.NoError(t, err)

	strict := domain.Thresholds{TempZ: 5, PrecipPercentile: 1}
	rerun := pipeline.New(store, paths, strict, slog.Default(), observability.NewMetricsForTesting())
	_, err = rerun.DetectExtremes(context.Background())
	require.NoError(t, err)
	require.NoError(t, rerun.RecordThresholds())

	var manifest pipeline.RunReport
	require.NoError(t, store.ReadJSON(paths.Manifest, &manifest))
	assert.Equal(t, strict, manifest.Thresholds)
	assert.Equal(t, report.RunID, manifest.RunID)
	assert.Len(t, manifest.Stages, 3)
}

func TestPipeline_RecordThresholds_NoManifest(t *testing.T) {
	store := newMemStore()
	p, _ := newTestPipeline(t, store)

	require.NoError(t, p.RecordThresholds())
	assert.Empty(t, store.json)
}
