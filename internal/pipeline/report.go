package pipeline

import (
	"time"

	"github.com/couchcryptid/climatescope-etl/internal/domain"
)

// Stage names, also used as metric labels.
const (
	StageClean     = "clean"
	StageAggregate = "aggregate"
	StageExtremes  = "extremes"
	StageExport    = "export"
	StagePublish   = "publish"
)

// Run outcomes recorded in the manifest.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// StageReport summarises one stage execution.
type StageReport struct {
	Stage      string         `json:"stage"`
	Inputs     []string       `json:"inputs,omitempty"`
	Outputs    []string       `json:"outputs,omitempty"`
	RowsIn     int            `json:"rows_in"`
	RowsOut    int            `json:"rows_out"`
	Malformed  int            `json:"malformed"`
	Counts     map[string]int `json:"counts,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

// RunReport is the manifest written after a full pipeline run.
type RunReport struct {
	RunID      string            `json:"run_id"`
	Status     string            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Thresholds domain.Thresholds `json:"thresholds"`
	Stages     []StageReport     `json:"stages"`
}

// Stage returns the report of the named stage, if it ran.
func (r RunReport) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}
