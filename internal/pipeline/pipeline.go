package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/couchcryptid/climatescope-etl/internal/config"
	"github.com/couchcryptid/climatescope-etl/internal/domain"
	"github.com/couchcryptid/climatescope-etl/internal/observability"
)

// TableReader loads a CSV artifact.
type TableReader interface {
	ReadTable(path string) (domain.Table, error)
}

// TableWriter persists CSV and JSON artifacts.
type TableWriter interface {
	WriteTable(path string, t domain.Table) error
	WriteJSON(path string, v any) error
}

// Store reads and writes artifacts.
type Store interface {
	TableReader
	TableWriter
	ReadJSON(path string, v any) error
}

// Exporter copies a run's artifacts into a queryable store.
type Exporter interface {
	Export(ctx context.Context, a domain.Artifacts) (int, error)
}

// Publisher sends extreme events downstream.
type Publisher interface {
	PublishExtremes(ctx context.Context, runID string, events []domain.ExtremeEvent) (int, error)
}

// Option configures optional pipeline sinks.
type Option func(*Pipeline)

// WithExporter exports artifacts after every successful run.
func WithExporter(e Exporter) Option {
	return func(p *Pipeline) { p.exporter = e }
}

// WithPublisher publishes extreme events after every successful run.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// Pipeline runs the clean, aggregate and extremes stages over file artifacts.
// Each stage reads only what the previous stage persisted.
type Pipeline struct {
	store      Store
	paths      config.Paths
	thresholds domain.Thresholds
	logger     *slog.Logger
	metrics    *observability.Metrics
	exporter   Exporter
	publisher  Publisher
	ready      atomic.Bool
}

// New creates a Pipeline with the given store, artifact locations and observability.
func New(store Store, paths config.Paths, th domain.Thresholds, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		paths:      paths,
		thresholds: th,
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a full run has succeeded in this process.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes every stage in order, then the optional sinks, and writes the
// run manifest. The manifest is written even when a stage fails.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  clock.Now().UTC(),
		Thresholds: p.thresholds,
		Status:     StatusFailed,
	}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("pipeline run started")

	err := p.runStages(ctx, &report)

	report.FinishedAt = clock.Now().UTC()
	if err == nil {
		report.Status = StatusSucceeded
	}
	if werr := p.store.WriteJSON(p.paths.Manifest, report); werr != nil {
		logger.Error("write manifest failed", "path", p.paths.Manifest, "error", werr)
		if err == nil {
			err = fmt.Errorf("write manifest: %w", werr)
			report.Status = StatusFailed
		}
	}
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		return report, err
	}

	p.metrics.LastSuccess.Set(float64(report.FinishedAt.Unix()))
	p.ready.Store(true)
	logger.Info("pipeline run finished",
		"duration", report.FinishedAt.Sub(report.StartedAt), "stages", len(report.Stages))
	return report, nil
}

// RecordThresholds stores the pipeline's thresholds in an existing manifest, so
// the manifest keeps describing the extremes table after that stage is rerun on
// its own. Without a manifest there is nothing to update.
func (p *Pipeline) RecordThresholds() error {
	var report RunReport
	if err := p.store.ReadJSON(p.paths.Manifest, &report); err != nil {
		if errors.Is(err, domain.ErrInputMissing) {
			return nil
		}
		return fmt.Errorf("read manifest: %w", err)
	}
	if report.Thresholds == p.thresholds {
		return nil
	}
	report.Thresholds = p.thresholds
	if err := p.store.WriteJSON(p.paths.Manifest, report); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	p.logger.Info("manifest thresholds updated", "run_id", report.RunID,
		"temp_z", p.thresholds.TempZ, "precip_pctile", p.thresholds.PrecipPercentile)
	return nil
}

func (p *Pipeline) runStages(ctx context.Context, report *RunReport) error {
	steps := []func(context.Context) (StageReport, error){
		p.Clean,
		p.Aggregate,
		p.DetectExtremes,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		sr, err := step(ctx)
		report.Stages = append(report.Stages, sr)
		if err != nil {
			return err
		}
	}

	if p.exporter == nil && p.publisher == nil {
		return nil
	}
	artifacts, err := p.loadArtifacts(report)
	if err != nil {
		return err
	}
	if p.exporter != nil {
		sr, err := p.export(ctx, artifacts)
		report.Stages = append(report.Stages, sr)
		if err != nil {
			return err
		}
	}
	if p.publisher != nil {
		sr, err := p.publish(ctx, artifacts)
		report.Stages = append(report.Stages, sr)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadArtifacts rereads the persisted tables so sinks see exactly what was written.
func (p *Pipeline) loadArtifacts(report *RunReport) (domain.Artifacts, error) {
	a := domain.Artifacts{RunID: report.RunID, GeneratedAt: clock.Now().UTC()}

	monthlyTbl, err := p.store.ReadTable(p.paths.Monthly)
	if err != nil {
		return a, err
	}
	if a.Monthly, a.Variables, err = domain.ParseMonthlyTable(monthlyTbl); err != nil {
		return a, err
	}
	seasonalTbl, err := p.store.ReadTable(p.paths.Seasonal)
	if err != nil {
		return a, err
	}
	if a.Seasonal, _, err = domain.ParseSeasonalTable(seasonalTbl); err != nil {
		return a, err
	}
	extremesTbl, err := p.store.ReadTable(p.paths.Extremes)
	if err != nil {
		return a, err
	}
	if a.Extremes, _, err = domain.ParseExtremesTable(extremesTbl); err != nil {
		return a, err
	}
	return a, nil
}
