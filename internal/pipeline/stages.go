package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// finish records duration, row metrics and the error of a stage.
func (p *Pipeline) finish(sr *StageReport, start time.Time, err error) {
	elapsed := clock.Since(start)
	sr.DurationMS = elapsed.Milliseconds()
	p.metrics.StageDuration.WithLabelValues(sr.Stage).Observe(elapsed.Seconds())
	if err != nil {
		sr.Error = err.Error()
		p.metrics.StageErrors.WithLabelValues(sr.Stage).Inc()
		p.logger.Error("stage failed", "stage", sr.Stage, "error", err)
		return
	}
	p.metrics.RowsRead.WithLabelValues(sr.Stage).Add(float64(sr.RowsIn))
	p.metrics.RowsWritten.WithLabelValues(sr.Stage).Add(float64(sr.RowsOut))
	p.metrics.MalformedRecords.WithLabelValues(sr.Stage).Add(float64(sr.Malformed))
	p.logger.Info("stage finished", "stage", sr.Stage,
		"rows_in", sr.RowsIn, "rows_out", sr.RowsOut, "malformed", sr.Malformed, "duration", elapsed)
}

func (p *Pipeline) logMalformed(stage string, malformed []*domain.MalformedRecordError) {
	for _, m := range malformed {
		p.logger.Warn("malformed record dropped",
			"stage", stage, "line", m.Line, "column", m.Column, "value", m.Value, "reason", m.Reason)
	}
}

// Clean reads the raw dataset and writes the cleaned table.
func (p *Pipeline) Clean(_ context.Context) (sr StageReport, err error) {
	sr = StageReport{Stage: StageClean, Inputs: []string{p.paths.Raw}, Outputs: []string{p.paths.Cleaned}}
	start := clock.Now()
	defer func() { p.finish(&sr, start, err) }()
	p.logger.Info("stage started", "stage", sr.Stage, "input", p.paths.Raw)

	raw, err := p.store.ReadTable(p.paths.Raw)
	if err != nil {
		return sr, err
	}
	res, err := domain.Clean(raw)
	if err != nil {
		return sr, err
	}
	p.logMalformed(sr.Stage, res.Malformed)

	if err := p.store.WriteTable(p.paths.Cleaned, res.Table); err != nil {
		return sr, fmt.Errorf("write cleaned table: %w", err)
	}

	st := res.Stats
	sr.RowsIn, sr.RowsOut, sr.Malformed = st.RowsRead, st.RowsWritten, st.Malformed
	sr.Counts = map[string]int{
		"duplicates":      st.Duplicates,
		"imputed_numeric": st.ImputedNumeric,
		"imputed_text":    st.ImputedText,
		"derived_columns": len(st.Derived),
	}
	p.metrics.DuplicatesRemoved.Add(float64(st.Duplicates))
	p.metrics.ImputedCells.WithLabelValues("numeric").Add(float64(st.ImputedNumeric))
	p.metrics.ImputedCells.WithLabelValues("text").Add(float64(st.ImputedText))
	p.logger.Info("cleaning summary",
		"date_column", st.DateColumn, "duplicates", st.Duplicates,
		"imputed_numeric", st.ImputedNumeric, "imputed_text", st.ImputedText, "derived", st.Derived)
	return sr, nil
}

// Aggregate reads the cleaned table and writes the monthly and seasonal tables.
func (p *Pipeline) Aggregate(_ context.Context) (sr StageReport, err error) {
	sr = StageReport{
		Stage:   StageAggregate,
		Inputs:  []string{p.paths.Cleaned},
		Outputs: []string{p.paths.Monthly, p.paths.Seasonal},
	}
	start := clock.Now()
	defer func() { p.finish(&sr, start, err) }()
	p.logger.Info("stage started", "stage", sr.Stage, "input", p.paths.Cleaned)

	cleaned, err := p.store.ReadTable(p.paths.Cleaned)
	if err != nil {
		return sr, err
	}
	set, err := domain.ParseRecords(cleaned)
	if err != nil {
		return sr, err
	}
	p.logMalformed(sr.Stage, set.Malformed)
	if len(set.Variables) == 0 {
		p.logger.Warn("no aggregatable variables in cleaned table", "path", p.paths.Cleaned)
	}

	monthly := domain.AggregateMonthly(set)
	seasonal := domain.AggregateSeasonal(set)

	if err := p.store.WriteTable(p.paths.Monthly, domain.MonthlyTable(monthly, set.Variables)); err != nil {
		return sr, fmt.Errorf("write monthly table: %w", err)
	}
	if err := p.store.WriteTable(p.paths.Seasonal, domain.SeasonalTable(seasonal, set.Variables)); err != nil {
		return sr, fmt.Errorf("write seasonal table: %w", err)
	}

	sr.RowsIn, sr.RowsOut, sr.Malformed = cleaned.Len(), len(monthly)+len(seasonal), len(set.Malformed)
	sr.Counts = map[string]int{"monthly": len(monthly), "seasonal": len(seasonal), "variables": len(set.Variables)}
	return sr, nil
}

// DetectExtremes reads the monthly table and writes the extremes table. No
// flagged rows still produces a header-only table.
func (p *Pipeline) DetectExtremes(_ context.Context) (sr StageReport, err error) {
	sr = StageReport{Stage: StageExtremes, Inputs: []string{p.paths.Monthly}, Outputs: []string{p.paths.Extremes}}
	start := clock.Now()
	defer func() { p.finish(&sr, start, err) }()
	p.logger.Info("stage started", "stage", sr.Stage, "input", p.paths.Monthly,
		"temp_z", p.thresholds.TempZ, "precip_pctile", p.thresholds.PrecipPercentile)

	if err := p.thresholds.Validate(); err != nil {
		return sr, err
	}
	tbl, err := p.store.ReadTable(p.paths.Monthly)
	if err != nil {
		return sr, err
	}
	monthly, variables, err := domain.ParseMonthlyTable(tbl)
	if err != nil {
		return sr, err
	}

	res := domain.DetectExtremes(monthly, p.thresholds)
	for _, loc := range res.InsufficientLocations {
		p.logger.Warn("temperature z-score unavailable", "location", loc, "error", domain.ErrInsufficientData)
	}

	if err := p.store.WriteTable(p.paths.Extremes, domain.ExtremesTable(res.Events, variables)); err != nil {
		return sr, fmt.Errorf("write extremes table: %w", err)
	}

	sr.RowsIn, sr.RowsOut = len(monthly), len(res.Events)
	sr.Counts = map[string]int{
		"temp_z_flags":           res.TempFlags,
		"precip_pctile_flags":    res.PrecipFlags,
		"insufficient_locations": len(res.InsufficientLocations),
	}
	p.metrics.ExtremesFlagged.WithLabelValues(domain.ColTempZ).Add(float64(res.TempFlags))
	p.metrics.ExtremesFlagged.WithLabelValues(domain.ColPrecipPctile).Add(float64(res.PrecipFlags))
	p.metrics.InsufficientData.Add(float64(len(res.InsufficientLocations)))
	return sr, nil
}

func (p *Pipeline) export(ctx context.Context, a domain.Artifacts) (sr StageReport, err error) {
	sr = StageReport{Stage: StageExport, RowsIn: len(a.Monthly) + len(a.Seasonal) + len(a.Extremes)}
	start := clock.Now()
	defer func() { p.finish(&sr, start, err) }()

	n, err := p.exporter.Export(ctx, a)
	if err != nil {
		return sr, err
	}
	sr.RowsOut = n
	p.metrics.ExportedRows.WithLabelValues("sqlite").Add(float64(n))
	return sr, nil
}

func (p *Pipeline) publish(ctx context.Context, a domain.Artifacts) (sr StageReport, err error) {
	sr = StageReport{Stage: StagePublish, RowsIn: len(a.Extremes)}
	start := clock.Now()
	defer func() { p.finish(&sr, start, err) }()

	n, err := p.publisher.PublishExtremes(ctx, a.RunID, a.Extremes)
	if err != nil {
		return sr, err
	}
	sr.RowsOut = n
	p.metrics.ExportedRows.WithLabelValues("kafka").Add(float64(n))
	return sr, nil
}
