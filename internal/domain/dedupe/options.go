package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(capacity *int)

// WithCapacity pre-sizes the key set, typically to the panel row count.
func WithCapacity(n int) Option {
	return func(capacity *int) {
		if n > 0 {
			*capacity = n
		}
	}
}
