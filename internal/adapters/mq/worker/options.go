package worker

import (
	"github.com/okian/matchbar/pkg/logger"
)

type options struct {
	name   string
	logger logger.Logger
}

// Option configures a Loop.
type Option func(*options)

// WithName sets the loop name used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a custom logger for the loop.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
