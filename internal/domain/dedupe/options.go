// Package dedupe tracks submission IDs for at-most-once processing.
package dedupe

// Option applies a configuration option to the in-memory tracker.
type Option func(*inMemoryTracker)

// WithMaxSize bounds how many IDs stay in memory. Once the bound is hit
// the oldest recorded IDs are evicted first. maxSize <= 0 keeps every ID
// with no eviction.
func WithMaxSize(maxSize int) Option {
	return func(t *inMemoryTracker) {
		t.maxSize = maxSize
	}
}
