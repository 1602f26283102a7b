package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/internal/config"
	"github.com/robert-malhotra/h5slab/internal/source"
	"github.com/robert-malhotra/h5slab/slab"
)

// session holds what every command of one invocation shares.
type session struct {
	cfg     config.Config
	sources config.Sources
	workDir string
	vars    map[string]string
	logger  *slab.Logger
	metrics *slab.BasicMetricsCollector

	mu     sync.Mutex
	files  []*hdf5.File
	caches []*source.CachedSource
}

func (s *session) sourceOptions() []source.Option {
	return append(s.cfg.SourceOptions(), source.WithLogger(s.logger.Logger))
}

func (s *session) arrayOptions() []slab.Option {
	return []slab.Option{
		slab.WithLogger(s.logger),
		slab.WithMetrics(s.metrics),
		slab.WithFallback(s.cfg.FallbackPolicy()),
	}
}

// locate parses uri, resolving relative paths against the working
// directory.
func (s *session) locate(uri string) (source.Location, error) {
	loc, err := source.Parse(uri)
	if err != nil {
		return loc, err
	}
	if !loc.Remote() && !filepath.IsAbs(loc.Path) {
		loc.Path = filepath.Join(s.workDir, loc.Path)
	}
	return loc, nil
}

// open opens the HDF5 file uri names. The session closes it when the
// command ends.
func (s *session) open(ctx context.Context, uri string) (*hdf5.File, error) {
	loc, err := s.locate(uri)
	if err != nil {
		return nil, err
	}
	f, err := s.openLocation(ctx, loc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.files = append(s.files, f)
	s.mu.Unlock()
	return f, nil
}

// openLocation opens an HDF5 file over a byte source. External links are
// resolved next to loc, in the same store.
func (s *session) openLocation(ctx context.Context, loc source.Location) (*hdf5.File, error) {
	start := time.Now()
	src, err := source.OpenLocation(ctx, loc, s.sourceOptions()...)
	if err != nil {
		return nil, err
	}
	if c, ok := src.(*source.CachedSource); ok {
		s.mu.Lock()
		s.caches = append(s.caches, c)
		s.mu.Unlock()
	}
	f, err := hdf5.OpenReaderAt(src, src.Size(),
		hdf5.WithLogger(s.logger.With(slog.String("uri", loc.String()))),
		hdf5.WithCloser(src),
		hdf5.WithExternalOpener(func(name string) (*hdf5.File, error) {
			return s.openLocation(ctx, loc.Sibling(name))
		}))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", loc, err), src.Close())
	}
	s.logger.Debug("file opened",
		slog.String("uri", loc.String()),
		slog.Int("superblock", f.Version()),
		slog.Duration("took", time.Since(start)))
	return f, nil
}

func (s *session) closeAll() {
	s.mu.Lock()
	files := s.files
	s.files = nil
	s.mu.Unlock()
	for _, f := range files {
		if err := f.Close(); err != nil {
			s.logger.Warn("close failed", slog.String("file", f.Name()), slog.Any("error", err))
		}
	}
}

func (s *session) printStats(o *IO) {
	st := s.metrics.Stats()
	o.ErrPrintf("stats: opens=%d open_errors=%d subarrays=%d subarray_errors=%d fallbacks=%d bytes=%d avg=%s\n",
		st.OpenCount, st.OpenErrors, st.SubarrayCount, st.SubarrayErrors,
		st.SubarrayFallbacks, st.SubarrayBytes, time.Duration(st.SubarrayAvgNanos))

	s.mu.Lock()
	caches := s.caches
	s.mu.Unlock()
	for i, c := range caches {
		cs := c.Stats()
		o.ErrPrintf("cache[%d]: hits=%d misses=%d fetches=%d evictions=%d bytes=%d\n",
			i, cs.Hits, cs.Misses, cs.Fetches, cs.Evictions, cs.Bytes)
	}
}
