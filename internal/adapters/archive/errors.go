package archive

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrClosed   = errors.New("archive closed")
	ErrDisabled = errors.New("archive disabled")
)
