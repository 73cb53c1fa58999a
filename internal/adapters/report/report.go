// Package report renders a run summary for humans.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/quantile"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatTable, FormatMarkdown, FormatCSV, FormatJSON}
}

// Render writes s to w in the given format. An empty format is a table.
func Render(w io.Writer, s model.Summary, format string) error {
	switch format {
	case "", FormatTable, FormatMarkdown, FormatCSV:
		for _, t := range tables(s) {
			t.SetOutputMirror(w)
			switch format {
			case FormatMarkdown:
				t.RenderMarkdown()
			case FormatCSV:
				t.RenderCSV()
			default:
				t.SetStyle(table.StyleLight)
				t.Render()
			}
			_, _ = fmt.Fprintln(w)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newView(s))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func tables(s model.Summary) []table.Writer {
	run := table.NewWriter()
	run.SetTitle("Run " + s.RunID)
	run.AppendHeader(table.Row{"Metric", "Value"})
	run.AppendRows([]table.Row{
		{"duration", s.Duration().Round(time.Millisecond).String()},
		{"target coverage", fmtFloat(s.TargetCoverage)},
		{"empirical coverage", fmtFloat(s.Coverage)},
		{"mean interval width", fmtFloat(s.MeanWidth)},
		{"test rows", s.TestRows},
		{"entities", s.Entities},
		{"entities insufficient", s.EntitiesInsufficient},
		{"entities failed", s.EntitiesFailed},
		{"folds", s.Folds},
		{"folds completed", s.FoldsCompleted},
		{"folds skipped", s.FoldsSkipped},
		{"folds degenerate", s.FoldsDegenerate},
		{"repaired rows", s.RepairedRows},
	})

	levels := table.NewWriter()
	levels.SetTitle("Mean pinball loss")
	levels.AppendHeader(table.Row{"tau", "pinball"})
	for _, tau := range sortedLevels(s.MeanPinball) {
		levels.AppendRow(table.Row{quantile.Format(tau), fmtFloat(s.MeanPinball[tau])})
	}

	out := []table.Writer{run, levels}
	if len(s.SkipReasons) > 0 {
		skips := table.NewWriter()
		skips.SetTitle("Skipped folds")
		skips.AppendHeader(table.Row{"reason", "folds"})
		reasons := make([]string, 0, len(s.SkipReasons))
		for r := range s.SkipReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			skips.AppendRow(table.Row{r, s.SkipReasons[r]})
		}
		out = append(out, skips)
	}
	return out
}

type view struct {
	RunID                string             `json:"run_id"`
	Started              string             `json:"started"`
	Finished             string             `json:"finished"`
	TargetCoverage       float64            `json:"target_coverage"`
	Coverage             float64            `json:"coverage"`
	MeanWidth            float64            `json:"mean_width"`
	TestRows             int                `json:"test_rows"`
	Entities             int                `json:"entities"`
	EntitiesInsufficient int                `json:"entities_insufficient"`
	EntitiesFailed       int                `json:"entities_failed"`
	Folds                int                `json:"folds"`
	FoldsCompleted       int                `json:"folds_completed"`
	FoldsSkipped         int                `json:"folds_skipped"`
	FoldsDegenerate      int                `json:"folds_degenerate"`
	RepairedRows         int                `json:"repaired_rows"`
	SkipReasons          map[string]int     `json:"skip_reasons,omitempty"`
	MeanPinball          map[string]float64 `json:"mean_pinball"`
}

func newView(s model.Summary) view {
	v := view{
		RunID:                s.RunID,
		Started:              s.Started.UTC().Format(time.RFC3339),
		Finished:             s.Finished.UTC().Format(time.RFC3339),
		TargetCoverage:       s.TargetCoverage,
		Coverage:             s.Coverage,
		MeanWidth:            s.MeanWidth,
		TestRows:             s.TestRows,
		Entities:             s.Entities,
		EntitiesInsufficient: s.EntitiesInsufficient,
		EntitiesFailed:       s.EntitiesFailed,
		Folds:                s.Folds,
		FoldsCompleted:       s.FoldsCompleted,
		FoldsSkipped:         s.FoldsSkipped,
		FoldsDegenerate:      s.FoldsDegenerate,
		RepairedRows:         s.RepairedRows,
		SkipReasons:          s.SkipReasons,
		MeanPinball:          make(map[string]float64, len(s.MeanPinball)),
	}
	for tau, loss := range s.MeanPinball {
		v.MeanPinball[quantile.Format(tau)] = loss
	}
	return v
}

func sortedLevels(m map[float64]float64) []float64 {
	out := make([]float64, 0, len(m))
	for tau := range m {
		out = append(out, tau)
	}
	sort.Float64s(out)
	return out
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
