package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/metrics"
)

// Artifact file names.
const (
	PredictionsFile = "predictions.csv"
	MetricsFile     = "metrics.csv"
)

// CSV writes predictions.csv and metrics.csv into a directory.
type CSV struct {
	Dir string
}

// Name implements Writer.
func (c CSV) Name() string { return "csv" }

// Write implements Writer.
func (c CSV) Write(ctx context.Context, a *Artifacts) error {
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WritePredictionsCSV(filepath.Join(c.Dir, PredictionsFile), a.Predictions); err != nil {
		return err
	}
	metrics.RecordRowsWritten("predictions_csv", len(a.Predictions))
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteMetricsCSV(filepath.Join(c.Dir, MetricsFile), a.Metrics); err != nil {
		return err
	}
	metrics.RecordRowsWritten("metrics_csv", len(a.Metrics))
	return nil
}

// WritePredictionsCSV writes one row per prediction record.
func WritePredictionsCSV(path string, records []model.PredictionRecord) error {
	f, err := os.Create(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"entity", "timestamp", "fold", "tau", "y_true", "y_pred"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Entity,
			fmtTime(r.Timestamp),
			strconv.Itoa(r.Fold),
			fmtFloat(r.Tau),
			fmtFloat(r.YTrue),
			fmtFloat(r.YPred),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteMetricsCSV writes one row per fold metric. Level rows fill pinball;
// interval rows fill coverage, width and the lambda columns.
func WriteMetricsCSV(path string, rows []model.FoldMetric) error {
	f, err := os.Create(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	header := []string{"entity", "fold", "tau", "pinball", "coverage", "width", "lambda", "lambda_search", "degenerate"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, m := range rows {
		row := []string{m.Entity, strconv.Itoa(m.Fold), m.Label(), "", "", "", "", "", ""}
		if m.Interval {
			row[4] = fmtFloat(m.Coverage)
			row[5] = fmtFloat(m.Width)
			row[6] = fmtFloat(m.Lambda)
			row[7] = fmtFloat(m.LambdaSearch)
			row[8] = strconv.FormatBool(m.Degenerate)
		} else {
			row[3] = fmtFloat(m.Pinball)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
