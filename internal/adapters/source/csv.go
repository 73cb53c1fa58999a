package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/panel"
)

// ReadCSV reads a panel from CSV with a header row.
func ReadCSV(r io.Reader, cols Columns) (*panel.Panel, Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, Report{}, ErrEmptyTable
	}
	if err != nil {
		return nil, Report{}, fmt.Errorf("read header: %w", err)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, Report{}, fmt.Errorf("read records: %w", err)
	}
	return FromRecords(header, records, cols)
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string, cols Columns) (*panel.Panel, Report, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, Report{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f, cols)
}

// WriteCSV writes p as a table LoadCSV can read back: entity, timestamp,
// features in panel order, target. Timestamps are RFC3339 UTC.
func WriteCSV(w io.Writer, p *panel.Panel, cols Columns) error {
	cw := csv.NewWriter(w)
	names := p.FeatureNames()
	header := make([]string, 0, len(names)+3)
	header = append(header, cols.Entity, cols.Timestamp)
	header = append(header, names...)
	header = append(header, cols.Target)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i := 0; i < p.Len(); i++ {
		r := p.Row(i)
		record[0] = r.Entity
		record[1] = r.Timestamp.UTC().Format(time.RFC3339)
		for j, v := range r.Features {
			record[2+j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.FormatFloat(r.Target, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
