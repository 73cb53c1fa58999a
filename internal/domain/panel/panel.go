// Package panel holds the materialized input table: one row per (entity,
// timestamp) with a numeric feature vector and a scalar target. A Panel is
// immutable after New and safe for concurrent readers.
package panel

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/dedupe"
)

// Sentinel errors for panel construction.
var (
	ErrEmptyPanel    = errors.New("panel has no rows")
	ErrRaggedRow     = errors.New("row feature width mismatch")
	ErrDuplicateKey  = errors.New("duplicate (entity, timestamp)")
	ErrMissingEntity = errors.New("row without entity id")
)

// Row is one observation.
type Row struct {
	Entity    string
	Timestamp time.Time
	Features  []float64
	Target    float64
}

// EntityRange is the contiguous block of rows owned by one entity, in
// strictly increasing timestamp order.
type EntityRange struct {
	Entity string
	Start  int
	End    int
}

// Len is the entity's row count.
func (r EntityRange) Len() int { return r.End - r.Start }

// Panel is the read-only input table, sorted by (entity, timestamp).
type Panel struct {
	featureNames []string
	rows         []Row
	entities     []EntityRange
}

// New validates rows and partitions them by entity. Rows are copied and
// sorted; the caller's slice is not retained.
func New(featureNames []string, rows []Row) (*Panel, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyPanel
	}
	width := len(featureNames)
	seen := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(rows)))
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	for i, r := range sorted {
		if r.Entity == "" {
			return nil, fmt.Errorf("%w: row %d", ErrMissingEntity, i)
		}
		if len(r.Features) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrRaggedRow, i, len(r.Features), width)
		}
		if seen.SeenAndRecord(dedupe.KeyOf(r.Entity, r.Timestamp)) {
			return nil, fmt.Errorf("%w: %s at %s", ErrDuplicateKey, r.Entity, r.Timestamp.Format(time.RFC3339))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Entity != sorted[j].Entity {
			return sorted[i].Entity < sorted[j].Entity
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	p := &Panel{featureNames: append([]string(nil), featureNames...), rows: sorted}
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Entity != sorted[start].Entity {
			p.entities = append(p.entities, EntityRange{Entity: sorted[start].Entity, Start: start, End: i})
			start = i
		}
	}
	return p, nil
}

// FeatureNames returns the feature column names.
func (p *Panel) FeatureNames() []string { return append([]string(nil), p.featureNames...) }

// Len is the total row count.
func (p *Panel) Len() int { return len(p.rows) }

// Entities returns the per-entity partition in entity order.
func (p *Panel) Entities() []EntityRange { return append([]EntityRange(nil), p.entities...) }

// Row returns the row at absolute index i.
func (p *Panel) Row(i int) Row { return p.rows[i] }

// Slice returns the feature matrix, targets and timestamps of the absolute
// range [start, end). Feature rows alias panel storage and must not be mutated.
func (p *Panel) Slice(start, end int) (x [][]float64, y []float64, ts []time.Time) {
	n := end - start
	x = make([][]float64, n)
	y = make([]float64, n)
	ts = make([]time.Time, n)
	for i := 0; i < n; i++ {
		r := p.rows[start+i]
		x[i] = r.Features
		y[i] = r.Target
		ts[i] = r.Timestamp
	}
	return x, y, ts
}
