package feedsim

import "errors"

// Error constants.
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrRejected      = errors.New("push rejected")
)
