package config

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrLoadConfig wraps failures while layering defaults, file and env input.
	ErrLoadConfig = errors.New("load config")

	// ErrInvalidConfig wraps validation failures after a successful load.
	ErrInvalidConfig = errors.New("invalid config")
)
