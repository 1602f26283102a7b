package hdf5

import (
	"io"
	"log/slog"
	"runtime"
)

// OpenOption configures how a file is opened.
type OpenOption func(*openOptions)

// OpenFunc opens the file an external link names.
type OpenFunc func(name string) (*File, error)

type openOptions struct {
	logger      *slog.Logger
	concurrency int
	opener      OpenFunc
	closer      io.Closer
}

func defaultOpenOptions() openOptions {
	return openOptions{
		logger:      slog.New(slog.DiscardHandler),
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithLogger sets the logger for open and read events. The default
// discards everything.
func WithLogger(l *slog.Logger) OpenOption {
	return func(o *openOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConcurrency sets how many chunks one read decodes in parallel.
func WithConcurrency(n int) OpenOption {
	return func(o *openOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithExternalOpener sets how files named by external links are opened.
// Files opened by path default to opening the name relative to their
// directory; files opened from a reader cannot follow external links
// without this option.
func WithExternalOpener(fn OpenFunc) OpenOption {
	return func(o *openOptions) {
		o.opener = fn
	}
}

// WithCloser hands c to the file opened by OpenReaderAt, which closes it
// on Close. Nothing is closed if opening fails.
func WithCloser(c io.Closer) OpenOption {
	return func(o *openOptions) {
		o.closer = c
	}
}
