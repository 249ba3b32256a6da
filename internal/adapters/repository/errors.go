package repository

import "errors"

// Sentinel kinds for follow store errors.
var (
	ErrDecode = errors.New("follow store: decode")
	ErrWrite  = errors.New("follow store: write")
)
