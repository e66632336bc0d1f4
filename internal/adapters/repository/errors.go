package repository

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrNotFound     = errors.New("standing not found")
	ErrTeamNotFound = errors.New("team not found")
	ErrInvalidLimit = errors.New("invalid standings limit")
)
