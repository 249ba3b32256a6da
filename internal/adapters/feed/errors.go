package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrClosed      = errors.New("feed closed")
	ErrInvalidKey  = errors.New("invalid event key")
	ErrNilCallback = errors.New("nil callback")
)
