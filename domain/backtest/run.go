package backtest

import (
	"time"

	"happycast/domain/core"
)

// RunStatus is the lifecycle state of a persisted run
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
)

// Run describes one execution of the aggregator for one model family
type Run struct {
	ID         core.RunID `json:"id" db:"id"`
	Model      string     `json:"model" db:"model"`
	Status     RunStatus  `json:"status" db:"status"`
	ConfigHash core.Hash  `json:"config_hash" db:"config_hash"`
	Config     []byte     `json:"-" db:"config"`
	Evaluated  int        `json:"evaluated" db:"evaluated"`
	Failed     int        `json:"failed" db:"failed"`
	Skipped    int        `json:"skipped" db:"skipped"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Finish marks the run finished at t with its final counters
func (r *Run) Finish(t time.Time, evaluated, failed, skipped int) {
	r.Status = RunFinished
	r.Evaluated = evaluated
	r.Failed = failed
	r.Skipped = skipped
	r.FinishedAt = &t
}
