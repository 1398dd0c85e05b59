package notify

import "github.com/questline/verity/pkg/logger"

type config struct {
	bufferSize  int
	dispatchers int
	sink        Sink
}

// Option configures the LogNotifier.
type Option func(n *LogNotifier, cfg *config)

// WithBufferSize sets the trigger queue capacity.
func WithBufferSize(size int) Option {
	return func(_ *LogNotifier, cfg *config) {
		if size > 0 {
			cfg.bufferSize = size
		}
	}
}

// WithDispatchers sets the number of dispatcher goroutines.
func WithDispatchers(count int) Option {
	return func(_ *LogNotifier, cfg *config) {
		if count > 0 {
			cfg.dispatchers = count
		}
	}
}

// WithSink routes dispatched triggers to a delivery sink instead of the log.
func WithSink(s Sink) Option {
	return func(_ *LogNotifier, cfg *config) {
		cfg.sink = s
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(n *LogNotifier, _ *config) {
		n.logger = l
	}
}
