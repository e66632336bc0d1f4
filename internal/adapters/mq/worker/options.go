// Package worker defines the pipeline consumers that score submissions
// and publish results.
package worker

import (
	"sync/atomic"

	"github.com/okian/fairshare/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithArchiver attaches a result archive for write-behind persistence.
func WithArchiver(archiver Archiver) Option {
	return func(w *InMemoryWorker) {
		if archiver != nil {
			w.archiver = archiver
		}
	}
}

// WithTracker attaches the dedupe tracker used to release submission IDs
// after failed standings updates.
func WithTracker(tracker Tracker) Option {
	return func(w *InMemoryWorker) {
		if tracker != nil {
			w.tracker = tracker
		}
	}
}

// withBusyCounter shares the pool's in-flight counter with a worker.
func withBusyCounter(busy *atomic.Int64) Option {
	return func(w *InMemoryWorker) {
		if busy != nil {
			w.busy = busy
		}
	}
}
