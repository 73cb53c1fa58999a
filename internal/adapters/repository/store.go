// Package repository holds the merged results of a backtest run.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/domain/model"
)

// Record aliases.
type (
	PredictionRecord = model.PredictionRecord
	FoldMetric       = model.FoldMetric
	FoldOutcome      = model.FoldOutcome
	EntityResult     = model.EntityResult
)

// Store provides read/write access to run results.
type Store interface {
	// Merge adds per-entity results. Each entity may be merged once.
	Merge(ctx context.Context, results []EntityResult) error

	// Predictions returns every record sorted by (entity, fold, tau, timestamp).
	Predictions(ctx context.Context) []PredictionRecord

	// Metrics returns every metric row sorted by (entity, fold, tau); interval
	// rows sort after the levels of their fold.
	Metrics(ctx context.Context) []FoldMetric

	// Outcomes returns fold outcomes sorted by (entity, fold).
	Outcomes(ctx context.Context) []FoldOutcome

	// Entity returns the merged result of one entity.
	// Returns ErrNotFound if the entity is unknown.
	Entity(ctx context.Context, entity string) (EntityResult, error)

	// Entities returns entity results sorted by entity.
	Entities(ctx context.Context) []EntityResult

	// Count returns the number of merged entities.
	Count(ctx context.Context) int
}

// MemoryStore implements Store in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	entities    map[string]EntityResult
	predictions []PredictionRecord
	metrics     []FoldMetric
	outcomes    []FoldOutcome
	sorted      bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{entities: make(map[string]EntityResult)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Merge implements Store. Nothing is merged if any entity is a duplicate.
func (s *MemoryStore) Merge(_ context.Context, results []EntityResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		if _, ok := s.entities[r.Entity]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, r.Entity)
		}
		if _, ok := seen[r.Entity]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateEntity, r.Entity)
		}
		seen[r.Entity] = struct{}{}
	}

	for _, r := range results {
		s.entities[r.Entity] = EntityResult{Entity: r.Entity, Status: r.Status, Err: r.Err, Folds: r.Folds}
		s.predictions = append(s.predictions, r.Predictions...)
		s.metrics = append(s.metrics, r.Metrics...)
		s.outcomes = append(s.outcomes, r.Folds...)
	}
	s.sorted = false
	return nil
}

// sortLocked orders every buffer; the caller holds the write lock.
func (s *MemoryStore) sortLocked() {
	if s.sorted {
		return
	}
	sort.SliceStable(s.predictions, func(i, j int) bool {
		a, b := s.predictions[i], s.predictions[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Fold != b.Fold {
			return a.Fold < b.Fold
		}
		if a.Tau != b.Tau {
			return a.Tau < b.Tau
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	sort.SliceStable(s.metrics, func(i, j int) bool {
		a, b := s.metrics[i], s.metrics[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Fold != b.Fold {
			return a.Fold < b.Fold
		}
		if a.Interval != b.Interval {
			return !a.Interval
		}
		return a.Tau < b.Tau
	})
	sort.SliceStable(s.outcomes, func(i, j int) bool {
		a, b := s.outcomes[i], s.outcomes[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		return a.Fold < b.Fold
	})
	s.sorted = true
}

// Predictions implements Store.
func (s *MemoryStore) Predictions(_ context.Context) []PredictionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortLocked()
	return append([]PredictionRecord(nil), s.predictions...)
}

// Metrics implements Store.
func (s *MemoryStore) Metrics(_ context.Context) []FoldMetric {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortLocked()
	return append([]FoldMetric(nil), s.metrics...)
}

// Outcomes implements Store.
func (s *MemoryStore) Outcomes(_ context.Context) []FoldOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortLocked()
	return append([]FoldOutcome(nil), s.outcomes...)
}

// Entity implements Store.
func (s *MemoryStore) Entity(_ context.Context, entity string) (EntityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entities[entity]
	if !ok {
		return EntityResult{}, fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return r, nil
}

// Entities implements Store.
func (s *MemoryStore) Entities(_ context.Context) []EntityResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EntityResult, 0, len(s.entities))
	for _, r := range s.entities {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity < out[j].Entity })
	return out
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
