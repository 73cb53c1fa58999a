package app

import (
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/fold"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/hyperparams"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/regressor"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkerCount sets the number of entity workers. Values below one mean
// one worker per CPU.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		s.workerCount = count
	}
}

// WithPredictor sets the model family.
func WithPredictor(p regressor.Predictor) Option {
	return func(s *Service) {
		if p != nil {
			s.predictor = p
		}
	}
}

// WithHyperparams sets the per-level hyperparameter map. A nil map means
// family defaults for every level.
func WithHyperparams(m hyperparams.Map) Option {
	return func(s *Service) {
		s.hyper = m
	}
}

// WithGrid sets the quantile levels.
func WithGrid(levels []float64) Option {
	return func(s *Service) {
		s.levels = append([]float64(nil), levels...)
	}
}

// WithLowerAnchor sets the lower interval level.
func WithLowerAnchor(tau float64) Option {
	return func(s *Service) {
		s.lowAnchor = tau
	}
}

// WithTargetCoverage sets the central interval coverage target.
func WithTargetCoverage(c float64) Option {
	return func(s *Service) {
		s.coverage = c
	}
}

// WithWindows sets the train, calibration and test lengths.
func WithWindows(l fold.Lengths) Option {
	return func(s *Service) {
		s.windows = l
	}
}

// WithWidthFraction sets the width floor as a fraction of std(y_cal).
func WithWidthFraction(f float64) Option {
	return func(s *Service) {
		s.widthFraction = f
	}
}

// WithMaxLambda sets the coverage search ceiling.
func WithMaxLambda(v float64) Option {
	return func(s *Service) {
		s.maxLambda = v
	}
}

// WithStandardize toggles per-fold feature scaling.
func WithStandardize(on bool) Option {
	return func(s *Service) {
		s.standardize = on
	}
}
