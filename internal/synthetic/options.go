package synthetic

import (
	"time"
)

// Option applies a configuration option to the generator Config.
type Option func(*Config)

// WithEntities sets the number of entities.
func WithEntities(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Entities = n
		}
	}
}

// WithRows sets the number of rows per entity.
func WithRows(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Rows = n
		}
	}
}

// WithNoiseFeatures sets how many pure-noise features follow the two
// informative ones.
func WithNoiseFeatures(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.NoiseFeatures = n
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithStart sets the first timestamp.
func WithStart(t time.Time) Option {
	return func(c *Config) {
		if !t.IsZero() {
			c.Start = t.UTC()
		}
	}
}

// WithInterval sets the spacing between rows.
func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Interval = d
		}
	}
}

// WithEntityPrefix names entities prefix-01, prefix-02, ... instead of
// seeded UUIDs.
func WithEntityPrefix(prefix string) Option {
	return func(c *Config) {
		c.Prefix = prefix
	}
}
