package matchbar

import "errors"

var (
	// ErrRenderFailed wraps a renderer failure recorded on a surface.
	ErrRenderFailed = errors.New("render failed")
	// ErrBadOp is returned by Apply for an op that does not fit the list.
	ErrBadOp = errors.New("op does not apply")
)
