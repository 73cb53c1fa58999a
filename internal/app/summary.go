package app

import (
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/evaluate"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
)

// summarize aggregates merged results. Pinball and width are unweighted
// means over folds; coverage is pooled over test rows.
func summarize(res *Result, pl *plan) model.Summary {
	sum := model.Summary{
		Entities:    len(res.Entities),
		SkipReasons: map[string]int{},
		MeanPinball: map[float64]float64{},
	}
	for _, e := range res.Entities {
		switch e.Status {
		case model.EntityFailed:
			sum.EntitiesFailed++
		case model.EntityInsufficient:
			sum.EntitiesInsufficient++
		}
	}

	sum.Folds = len(res.Outcomes)
	for _, o := range res.Outcomes {
		switch o.Status {
		case model.FoldCompleted:
			sum.FoldsCompleted++
		case model.FoldSkipped:
			sum.FoldsSkipped++
			sum.SkipReasons[o.Reason]++
		}
		if o.Degenerate {
			sum.FoldsDegenerate++
		}
		sum.RepairedRows += o.RepairedRows
	}

	losses := map[float64][]float64{}
	var coverage, width, rows []float64
	for _, m := range res.Metrics {
		if m.Interval {
			coverage = append(coverage, m.Coverage)
			width = append(width, m.Width)
			rows = append(rows, float64(pl.windows.Test))
			continue
		}
		losses[m.Tau] = append(losses[m.Tau], m.Pinball)
	}
	for tau, v := range losses {
		if mean, err := evaluate.Aggregate(v, nil); err == nil {
			sum.MeanPinball[tau] = mean
		}
	}
	if c, err := evaluate.Aggregate(coverage, rows); err == nil {
		sum.Coverage = c
	}
	if w, err := evaluate.Aggregate(width, nil); err == nil {
		sum.MeanWidth = w
	}
	sum.TestRows = len(coverage) * pl.windows.Test
	return sum
}
