package config

import "errors"

// Validation failures wrap ErrInvalidConfig; provider and decode failures
// wrap ErrLoadConfig.
var (
	ErrInvalidConfig = errors.New("invalid matchbar config")
	ErrLoadConfig    = errors.New("matchbar config load failed")
)
