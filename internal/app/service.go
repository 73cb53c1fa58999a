// Package app runs the rolling-origin backtest: it fans entities out to a
// worker pool, runs the fold loop for each, and merges the results.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/mq/queue"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/mq/worker"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/adapters/repository"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/config"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/conformal"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
	"github.com/google/uuid"
)

// Service is the backtest orchestrator. It holds no per-run state and may
// run several panels in sequence.
type Service struct {
	logger      logger.Logger
	workerCount int

	predictor regressor.Predictor
	hyper     hyperparams.Map

	levels        []float64
	lowAnchor     float64
	coverage      float64
	windows       fold.Lengths
	widthFraction float64
	maxLambda     float64
	standardize   bool
}

// Result is the merged output of one run.
type Result struct {
	Summary     model.Summary
	Predictions []model.PredictionRecord
	Metrics     []model.FoldMetric
	Outcomes    []model.FoldOutcome
	Entities    []model.EntityResult
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	grid := quantile.Default()
	s := &Service{
		predictor:     regressor.GBT{},
		levels:        grid.Levels(),
		lowAnchor:     grid.Low(),
		coverage:      0.8,
		windows:       fold.Lengths{Train: 120, Cal: 24, Test: 6},
		widthFraction: conformal.DefaultWidthFraction,
		maxLambda:     conformal.DefaultMaxLambda,
		standardize:   true,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// plan is the validated, immutable view of a run shared by every worker.
type plan struct {
	grid        quantile.Grid
	modeled     []float64
	calibrator  *conformal.Calibrator
	search      conformal.SearchOptions
	windows     fold.Lengths
	predictor   regressor.Predictor
	hyper       hyperparams.Map
	standardize bool
}

// Validate checks the run parameters. Every failure wraps
// config.ErrInvalidConfig.
func (s *Service) Validate() error {
	_, err := s.plan()
	return err
}

func (s *Service) plan() (*plan, error) {
	grid, err := quantile.NewGrid(s.levels, s.lowAnchor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if err := s.windows.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	cal, err := conformal.NewCalibrator(s.coverage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if s.maxLambda <= 0 || s.widthFraction < 0 {
		return nil, fmt.Errorf("%w: max lambda %v, width fraction %v", config.ErrInvalidConfig, s.maxLambda, s.widthFraction)
	}
	return &plan{
		grid:        grid,
		modeled:     grid.Modeled(),
		calibrator:  cal,
		search:      conformal.SearchOptions{MaxLambda: s.maxLambda, WidthFraction: s.widthFraction},
		windows:     s.windows,
		predictor:   s.predictor,
		hyper:       s.hyper,
		standardize: s.standardize,
	}, nil
}

// Run backtests every entity of p. Configuration errors abort before any
// fold runs. Fold and entity failures are recorded in the result and never
// returned. If ctx is canceled the partial result is returned with ctx's
// error.
func (s *Service) Run(ctx context.Context, p *panel.Panel) (*Result, error) {
	if p == nil {
		return nil, ErrNilPanel
	}
	pl, err := s.plan()
	if err != nil {
		return nil, err
	}

	log := s.logger
	if log == nil {
		log = logger.Get().Named("backtest")
	}
	runID := uuid.NewString()
	log = log.With(logger.String("run_id", runID))
	started := time.Now()

	ranges := p.Entities()
	log.Info(ctx, "backtest started",
		logger.Int("entities", len(ranges)),
		logger.Int("rows", p.Len()),
		logger.String("family", string(pl.predictor.Family())),
		logger.Float64("target_coverage", s.coverage),
		logger.Any("modeled", pl.modeled),
	)

	tasks := make([]queue.Task, len(ranges))
	for i, r := range ranges {
		tasks[i] = model.EntityTask{Entity: r.Entity, Start: r.Start, End: r.End}
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(tasks)))
	if err := q.EnqueueAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("enqueue entities: %w", err)
	}
	if err := q.Close(); err != nil {
		return nil, fmt.Errorf("close entity queue: %w", err)
	}

	proc := &entityProcessor{plan: pl, panel: p, logger: log}
	pool := worker.NewPool(s.workerCount, q, proc, worker.WithLogger(log.Named("worker")))
	results := pool.Run(ctx)

	store := repository.NewMemoryStore(repository.WithCapacityHint(p.Len() * pl.grid.Len()))
	if err := store.Merge(ctx, results); err != nil {
		return nil, fmt.Errorf("merge results: %w", err)
	}

	res := &Result{
		Predictions: store.Predictions(ctx),
		Metrics:     store.Metrics(ctx),
		Outcomes:    store.Outcomes(ctx),
		Entities:    store.Entities(ctx),
	}
	res.Summary = summarize(res, pl)
	res.Summary.RunID = runID
	res.Summary.Started = started
	res.Summary.Finished = time.Now()
	res.Summary.TargetCoverage = s.coverage

	metrics.RecordRun(res.Summary.Duration().Seconds(), res.Summary.Coverage)
	log.Info(ctx, "backtest finished",
		logger.Int("entities", res.Summary.Entities),
		logger.Int("folds_completed", res.Summary.FoldsCompleted),
		logger.Int("folds_skipped", res.Summary.FoldsSkipped),
		logger.Int("folds_degenerate", res.Summary.FoldsDegenerate),
		logger.Float64("coverage", res.Summary.Coverage),
		logger.Duration("elapsed", res.Summary.Duration()),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
