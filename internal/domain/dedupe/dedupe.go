// Package dedupe tracks (entity, timestamp) keys so a panel never holds two
// observations for the same entity at the same instant.
package dedupe

import (
	"sync"
	"sync/atomic"
	"time"
)

// Key identifies one panel observation.
type Key struct {
	Entity    string
	Timestamp int64 // unix nanoseconds
}

// KeyOf builds the key for an entity at t.
func KeyOf(entity string, t time.Time) Key {
	return Key{Entity: entity, Timestamp: t.UnixNano()}
}

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(key Key) bool

	// Unrecord removes a key, e.g. when the row it guarded was rejected later.
	Unrecord(key Key)

	Size() int64
}

// inMemoryDeduper keeps every key; panels are bounded by the input file.
type inMemoryDeduper struct {
	mu   sync.Mutex
	seen map[Key]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	capacity := 0
	for _, opt := range opts {
		opt(&capacity)
	}
	d.seen = make(map[Key]struct{}, capacity)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(key Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
