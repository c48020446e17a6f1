package poolkeeper

import (
	"go.uber.org/zap"

	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// options holds the configuration New assembles from functional options.
type options struct {
	logger *zap.Logger
	sink   metrics.Sink
}

// Option customizes a Coordinator at construction time.
type Option func(*options)

// WithLogger sets the *zap.Logger the Coordinator uses for warnings about
// degraded operation (spawn failures, unknown handles, terminate errors).
// Without this option the Coordinator logs nothing.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsSink sets the metrics.Sink the Coordinator notifies on
// every pool-state transition. Without this option the Coordinator
// uses metrics.Noop.
func WithMetricsSink(sink metrics.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}
