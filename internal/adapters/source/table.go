// Package source reads a materialized panel from tabular files.
package source

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
)

// Columns names the panel columns of a table.
type Columns struct {
	Entity    string
	Timestamp string
	Target    string
	// Features lists feature columns in order; every other column when empty.
	Features []string
}

// Report describes what a load kept.
type Report struct {
	Rows     int // data rows read
	Kept     int
	Dropped  int // rows with a missing target or feature
	Features []string
}

var timeLayouts = []string{ //nolint:gochecknoglobals // fixed lookup table
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, "2006-01-02 15:04:05", "2006-01-02" or
// integer unix seconds. Times without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrBadValue, s)
}

// parseNumber returns NaN for blank or NA-style cells.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// FromRecords builds a panel from a header and string records. Rows whose
// target or any feature is missing are dropped and counted.
func FromRecords(header []string, records [][]string, cols Columns) (*panel.Panel, Report, error) {
	if len(records) == 0 {
		return nil, Report{}, ErrEmptyTable
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return i, nil
	}
	entityIdx, err := lookup(cols.Entity)
	if err != nil {
		return nil, Report{}, err
	}
	tsIdx, err := lookup(cols.Timestamp)
	if err != nil {
		return nil, Report{}, err
	}
	targetIdx, err := lookup(cols.Target)
	if err != nil {
		return nil, Report{}, err
	}

	features := cols.Features
	if len(features) == 0 {
		for _, h := range header {
			h = strings.TrimSpace(h)
			if h != cols.Entity && h != cols.Timestamp && h != cols.Target && h != "" {
				features = append(features, h)
			}
		}
	}
	featIdx := make([]int, len(features))
	for j, name := range features {
		if featIdx[j], err = lookup(name); err != nil {
			return nil, Report{}, err
		}
	}

	rep := Report{Rows: len(records), Features: append([]string(nil), features...)}
	rows := make([]panel.Row, 0, len(records))
	cell := func(rec []string, i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	for line, rec := range records {
		ts, err := ParseTimestamp(cell(rec, tsIdx))
		if err != nil {
			return nil, rep, fmt.Errorf("row %d: %w", line+2, err)
		}
		target, err := parseNumber(cell(rec, targetIdx))
		if err != nil {
			return nil, rep, fmt.Errorf("row %d: %w: target %q", line+2, ErrBadValue, cell(rec, targetIdx))
		}
		x := make([]float64, len(featIdx))
		missing := math.IsNaN(target)
		for j, i := range featIdx {
			if x[j], err = parseNumber(cell(rec, i)); err != nil {
				return nil, rep, fmt.Errorf("row %d: %w: %s=%q", line+2, ErrBadValue, features[j], cell(rec, i))
			}
			missing = missing || math.IsNaN(x[j])
		}
		if missing {
			rep.Dropped++
			continue
		}
		rows = append(rows, panel.Row{
			Entity:    strings.TrimSpace(cell(rec, entityIdx)),
			Timestamp: ts,
			Features:  x,
			Target:    target,
		})
	}
	rep.Kept = len(rows)
	if len(rows) == 0 {
		return nil, rep, ErrEmptyTable
	}
	p, err := panel.New(features, rows)
	if err != nil {
		return nil, rep, err
	}
	return p, rep, nil
}

// Load reads a .csv or .xlsx file; sheet applies to .xlsx only.
func Load(path, sheet string, cols Columns) (*panel.Panel, Report, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, cols)
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet, cols)
	default:
		return nil, Report{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}
