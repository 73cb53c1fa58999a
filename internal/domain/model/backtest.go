// Package model contains domain records passed between layers.
package model

import (
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
)

// IntervalLabel is the level label of interval metric rows.
const IntervalLabel = "interval"

// Fold statuses.
const (
	FoldCompleted = "completed"
	FoldSkipped   = "skipped"
)

// Fold skip reasons.
const (
	ReasonMissingHyperparameter = "missing_hyperparameter"
	ReasonModelFit              = "model_fit_failure"
	ReasonCalibration           = "calibration_failure"
	ReasonCanceled              = "canceled"
	ReasonInternal              = "internal_error"
)

// Entity statuses.
const (
	EntityOK           = "ok"
	EntityInsufficient = "insufficient_window"
	EntityFailed       = "failed"
)

// EntityTask is one unit of work: an entity and its contiguous row range in
// the panel.
type EntityTask struct {
	Entity string
	Start  int // first panel row, inclusive
	End    int // last panel row, exclusive
}

// Len returns the number of rows owned by the task.
func (t EntityTask) Len() int { return t.End - t.Start }

// PredictionRecord is one assembled quantile for one test row.
type PredictionRecord struct {
	Entity    string
	Timestamp time.Time
	Fold      int
	Tau       float64
	YTrue     float64
	YPred     float64
}

// FoldMetric is a per-level pinball row or, when Interval is set, the
// central interval row of a fold.
type FoldMetric struct {
	Entity   string
	Fold     int
	Tau      float64 // zero for interval rows
	Interval bool

	Pinball float64

	Coverage     float64
	Width        float64
	Lambda       float64
	LambdaSearch float64
	Degenerate   bool
}

// Label returns the level as text, or IntervalLabel.
func (m FoldMetric) Label() string {
	if m.Interval {
		return IntervalLabel
	}
	return quantile.Format(m.Tau)
}

// FoldOutcome records how one fold ended.
type FoldOutcome struct {
	Entity       string
	Fold         int
	Status       string
	Reason       string // set when skipped
	Err          error
	Degenerate   bool
	RepairedRows int
	Duration     time.Duration
}

// EntityResult is everything one worker produced for one entity.
type EntityResult struct {
	Entity      string
	Status      string
	Err         error // set when the entity failed as a whole
	Folds       []FoldOutcome
	Predictions []PredictionRecord
	Metrics     []FoldMetric
}

// Summary aggregates a run.
type Summary struct {
	RunID          string
	Started        time.Time
	Finished       time.Time
	TargetCoverage float64

	Entities             int
	EntitiesFailed       int
	EntitiesInsufficient int

	Folds           int
	FoldsCompleted  int
	FoldsSkipped    int
	FoldsDegenerate int
	SkipReasons     map[string]int
	RepairedRows    int

	// MeanPinball is the unweighted mean of per-fold pinball loss by level.
	MeanPinball map[float64]float64
	// Coverage is pooled over every scored test row.
	Coverage  float64
	MeanWidth float64
	TestRows  int
}

// Duration returns the run wall time.
func (s Summary) Duration() time.Duration { return s.Finished.Sub(s.Started) }
