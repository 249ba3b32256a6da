package snapshot

import "errors"

// ErrMalformed marks a snapshot document that could not be turned into match
// records. Callers render it exactly like absent data.
var ErrMalformed = errors.New("malformed snapshot")
