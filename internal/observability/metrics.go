package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climatescope"

// Metrics holds the Prometheus counters, histograms, and gauges for the batch pipeline.
type Metrics struct {
	RowsRead         *prometheus.CounterVec // labels: stage={clean,aggregate,extremes}
	RowsWritten      *prometheus.CounterVec // labels: stage
	MalformedRecords *prometheus.CounterVec // labels: stage
	StageErrors      *prometheus.CounterVec // labels: stage

	DuplicatesRemoved prometheus.Counter
	ImputedCells      *prometheus.CounterVec // labels: kind={numeric,text}

	// Extreme detection metrics.
	ExtremesFlagged  *prometheus.CounterVec // labels: trigger={temp_z,precip_pctile}
	InsufficientData prometheus.Counter

	StageDuration *prometheus.HistogramVec // labels: stage
	LastSuccess   prometheus.Gauge

	ExportedRows *prometheus.CounterVec // labels: sink={sqlite,kafka}

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows read from a stage's input table.",
		}, []string{"stage"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written to a stage's output table.",
		}, []string{"stage"}),
		MalformedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Rows dropped because they could not be parsed.",
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Fatal stage failures.",
		}, []string{"stage"}),
		DuplicatesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_removed_total",
			Help:      "Exact duplicate rows removed by the cleaner.",
		}),
		ImputedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imputed_cells_total",
			Help:      "Missing cells filled by the cleaner by column kind.",
		}, []string{"kind"}),
		ExtremesFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extremes_flagged_total",
			Help:      "Monthly rows flagged as extreme by trigger.",
		}, []string{"trigger"}),
		InsufficientData: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_data_locations_total",
			Help:      "Locations whose temperature series could not be standardised.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful pipeline run.",
		}),
		ExportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exported_rows_total",
			Help:      "Rows or messages handed to an optional sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsRead,
		m.RowsWritten,
		m.MalformedRecords,
		m.StageErrors,
		m.DuplicatesRemoved,
		m.ImputedCells,
		m.ExtremesFlagged,
		m.InsufficientData,
		m.StageDuration,
		m.LastSuccess,
		m.ExportedRows,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Gatherer returns the registry the metrics were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// WriteTextfile dumps the current metric values in the node-exporter textfile
// format. Batch commands call it on exit since nothing scrapes them.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Gatherer())
}
