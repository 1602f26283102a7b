package slab

import (
	"context"
	"fmt"
	"time"
)

// Array is an open dataset exposed as an n-dimensional array of T.
//
// The group handle is borrowed; the dataset and element-type handles are
// owned and released by Close.
type Array[T Element] struct {
	store Store
	group Handle
	name  string
	ds    Handle
	ftype Handle
	order Order
	shape []uint64

	logger   *Logger
	metrics  MetricsCollector
	fallback Fallback
	closed   bool
}

// Open opens dataset name inside group and resolves its exposed shape.
//
// Open fails with ErrOpen if the dataset cannot be opened, ErrTypeMismatch
// if its stored element type is not T, and ErrExtentQuery if its extent
// or axis-order marker cannot be read. Every handle acquired before a
// failure is released before Open returns.
func Open[T Element](store Store, group Handle, name string, opts ...Option) (arr *Array[T], err error) {
	o := buildOptions(opts)
	start := time.Now()
	defer func() {
		o.metrics.RecordOpen(time.Since(start), err)
		if err != nil {
			o.logger.LogOpen(context.Background(), name, nil, Forward, err)
		} else {
			o.logger.LogOpen(context.Background(), name, arr.shape, arr.order, nil)
		}
	}()

	g := newGuard(store)
	ds, err := store.OpenDataset(group, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrOpen, name, err)
	}
	g.track(ds)

	ftype, err := store.DatasetType(ds)
	if err != nil {
		return nil, g.release(fmt.Errorf("%w: %q: reading element type: %w", ErrTypeMismatch, name, err))
	}
	g.track(ftype)

	mem := TypeOf[T]()
	same, err := store.TypeEqual(ftype, mem)
	if err != nil {
		return nil, g.release(fmt.Errorf("%w: %q: %w", ErrTypeMismatch, name, err))
	}
	if !same {
		return nil, g.release(fmt.Errorf("%w: %q does not hold %s%d", ErrTypeMismatch, name, mem.Class, mem.Size*8))
	}

	disk, order, err := resolveExtent(store, ds)
	if err != nil {
		return nil, g.release(fmt.Errorf("%w: %q: %w", ErrExtentQuery, name, err))
	}

	g.keep()
	return &Array[T]{
		store:    store,
		group:    group,
		name:     name,
		ds:       ds,
		ftype:    ftype,
		order:    order,
		shape:    resolveShape(disk, order),
		logger:   o.logger.WithDataset(name),
		metrics:  o.metrics,
		fallback: o.fallback,
	}, nil
}

// resolveExtent reads the on-disk dims and the axis-order marker.
func resolveExtent(store Store, ds Handle) (disk []uint64, order Order, err error) {
	g := newGuard(store)
	defer func() { err = g.release(err) }()

	space, err := store.DatasetSpace(ds)
	if err != nil {
		return nil, Forward, err
	}
	g.track(space)

	rank, err := store.ExtentRank(space)
	if err != nil {
		return nil, Forward, err
	}
	disk, err = store.ExtentDims(space)
	if err != nil {
		return nil, Forward, err
	}
	if len(disk) != rank {
		return nil, Forward, fmt.Errorf("rank %d but %d dims", rank, len(disk))
	}

	reversed, err := store.AttrExists(ds, ReverseShapeAttr)
	if err != nil {
		return nil, Forward, fmt.Errorf("checking %q: %w", ReverseShapeAttr, err)
	}
	if reversed {
		return disk, Reversed, nil
	}
	return disk, Forward, nil
}

// Name returns the dataset name the array was opened with.
func (a *Array[T]) Name() string { return a.name }

// Dimension returns the rank.
func (a *Array[T]) Dimension() int { return len(a.shape) }

// Shape returns a copy of the exposed shape.
func (a *Array[T]) Shape() []uint64 { return append([]uint64(nil), a.shape...) }

// Order returns the convention resolved at Open.
func (a *Array[T]) Order() Order { return a.order }

// Extent returns the exposed length of axis. It panics if axis is outside
// [0, Dimension()).
func (a *Array[T]) Extent(axis int) uint64 {
	if axis < 0 || axis >= len(a.shape) {
		panic(fmt.Sprintf("slab: axis %d out of range [0, %d)", axis, len(a.shape)))
	}
	return a.shape[axis]
}

// Subarray reads the box starting at origin with dst's shape into dst.
//
// origin is interpreted in on-disk axis order regardless of the array's
// Order. A simple dst is filled in place. Otherwise the data is read into
// a fresh buffer and dst is rebound to it, or copied into dst's strided
// storage under FallbackCopy. On failure dst is left untouched.
func (a *Array[T]) Subarray(origin []uint64, dst *View[T]) (err error) {
	if a.closed {
		return ErrClosed
	}
	if dst == nil {
		return fmt.Errorf("%w: nil destination", ErrDimensionMismatch)
	}
	if dst.Rank() != len(a.shape) || len(origin) != dst.Rank() {
		return fmt.Errorf("%w: array rank %d, view rank %d, origin rank %d",
			ErrDimensionMismatch, len(a.shape), dst.Rank(), len(origin))
	}
	if dst.Order() != Forward {
		return fmt.Errorf("%w: destination is %s", ErrUnsupportedAxisOrder, dst.Order())
	}

	extent := dst.Shape()
	fast := dst.Simple()
	mem := TypeOf[T]()
	start := time.Now()
	defer func() {
		a.metrics.RecordSubarray(dst.Len()*mem.Size, fast, time.Since(start), err)
		a.logger.LogSubarray(context.Background(), origin, extent, fast, err)
	}()

	g := newGuard(a.store)
	defer func() { err = g.release(err) }()

	fileSpace, err := a.store.DatasetSpace(a.ds)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSelection, err)
	}
	g.track(fileSpace)
	if err := a.store.SelectHyperslab(fileSpace, origin, extent); err != nil {
		return fmt.Errorf("%w: origin %v extent %v: %w", ErrSelection, origin, extent, err)
	}

	memSpace, err := a.store.CreateSimple(extent)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMemSelection, err)
	}
	g.track(memSpace)
	if err := a.store.SelectHyperslab(memSpace, make([]uint64, len(extent)), extent); err != nil {
		return fmt.Errorf("%w: %w", ErrMemSelection, err)
	}

	if fast {
		if err := a.store.Read(a.ds, mem, memSpace, fileSpace, dst.bytes()); err != nil {
			return fmt.Errorf("%w: %w", ErrRead, err)
		}
		return nil
	}

	buf := make([]T, dst.Len())
	if err := a.store.Read(a.ds, mem, memSpace, fileSpace, asBytes(buf)); err != nil {
		return fmt.Errorf("%w: %w", ErrRead, err)
	}
	if a.fallback == FallbackCopy {
		dst.scatter(buf)
	} else {
		dst.rebind(buf)
	}
	return nil
}

// Range reads the half-open box [begin, end) into a new simple view.
func (a *Array[T]) Range(begin, end []uint64) (*View[T], error) {
	if len(begin) != len(a.shape) || len(end) != len(a.shape) {
		return nil, fmt.Errorf("%w: array rank %d, begin rank %d, end rank %d",
			ErrDimensionMismatch, len(a.shape), len(begin), len(end))
	}
	extent := make([]uint64, len(begin))
	for d := range begin {
		if end[d] < begin[d] {
			return nil, fmt.Errorf("%w: axis %d: end %d before begin %d", ErrSelection, d, end[d], begin[d])
		}
		extent[d] = end[d] - begin[d]
	}
	v := NewView[T](extent...)
	if err := a.Subarray(begin, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Close releases the element-type and dataset handles. Later calls are
// no-ops.
func (a *Array[T]) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	g := newGuard(a.store)
	g.track(a.ds)
	g.track(a.ftype)
	return g.release(nil)
}
