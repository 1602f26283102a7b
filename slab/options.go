package slab

// Fallback selects how Subarray fills a view that is not simple.
type Fallback uint8

const (
	// FallbackRebind reads into a fresh contiguous buffer and rebinds the
	// view to it. The view's previous storage is left untouched.
	FallbackRebind Fallback = iota
	// FallbackCopy reads into a scratch buffer and copies it into the
	// view's existing strided storage.
	FallbackCopy
)

func (f Fallback) String() string {
	if f == FallbackCopy {
		return "copy"
	}
	return "rebind"
}

// ParseFallback parses "rebind" or "copy".
func ParseFallback(s string) (Fallback, bool) {
	switch s {
	case "rebind", "":
		return FallbackRebind, true
	case "copy":
		return FallbackCopy, true
	}
	return FallbackRebind, false
}

type options struct {
	logger   *Logger
	metrics  MetricsCollector
	fallback Fallback
}

// Option configures an Array.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithFallback selects the non-simple view strategy.
func WithFallback(f Fallback) Option {
	return func(o *options) { o.fallback = f }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
