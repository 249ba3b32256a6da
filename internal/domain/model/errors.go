package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrInvalidTeam = errors.New("invalid team number")
)
