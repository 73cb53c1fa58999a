package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithCapacityHint pre-sizes the prediction buffer.
func WithCapacityHint(predictions int) Option {
	return func(s *MemoryStore) {
		if predictions > 0 {
			s.predictions = make([]PredictionRecord, 0, predictions)
		}
	}
}
