// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults; Load(ctx) layers file/env.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SubmissionQueueSize bounds the in-memory submission queue.
	SubmissionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// ScoreCap bounds every member score from above.
	ScoreCap float64 `koanf:"score_cap"`

	// ScoreFloorEnabled clamps negative member scores to zero when set.
	ScoreFloorEnabled bool `koanf:"score_floor_enabled"`

	// ArchiveEnabled toggles the SQLite result archive.
	ArchiveEnabled bool `koanf:"archive_enabled"`

	// ArchiveDir is the directory holding the archive database file.
	ArchiveDir string `koanf:"archive_dir"`

	// RateLimitRPS and RateLimitBurst shape the submission rate limiter.
	// An RPS of zero disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// New creates a Config with defaults. Context is accepted first to satisfy the
// project-wide convention; it is reserved for future use and currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		SubmissionQueueSize: 100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		MaxStandingsLimit:   100,
		ScoreCap:            120,
		ScoreFloorEnabled:   false,
		ArchiveEnabled:      true,
		ArchiveDir:          "data",
		RateLimitRPS:        100,
		RateLimitBurst:      200,
	}
	return c
}
