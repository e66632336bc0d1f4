package loadtest

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusAccepted = 202
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	// ProcessingWait gives the queue and workers time to drain accepted
	// submissions before standings are read back.
	ProcessingWait       = 5 * time.Second
	PercentageMultiplier = 100
)

// progressInterval rate-limits the per-worker progress lines.
const progressInterval = 1 * time.Second
