package scoring

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidInput marks a team that fails validation. Computation never
	// repairs bad input; the caller must fix the submission and retry.
	ErrInvalidInput = errors.New("invalid input")
)
