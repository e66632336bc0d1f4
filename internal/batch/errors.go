package batch

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrReadInput    = errors.New("read input")
	ErrWriteOutput  = errors.New("write output")
	ErrInvalidTeams = errors.New("invalid teams")
)
