package hdf5

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/robert-malhotra/h5slab/internal/dtype"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/slab"
)

// ErrInvalidHandle is returned for unknown, closed or wrongly typed
// handles.
var ErrInvalidHandle = errors.New("hdf5: invalid handle")

var _ slab.Store = (*Store)(nil)

// Store serves slab.Store from an open File. It is safe for concurrent
// use; reads of different datasets proceed in parallel.
type Store struct {
	file *File
	log  *slog.Logger

	mu      sync.Mutex
	next    slab.Handle
	root    slab.Handle
	handles map[slab.Handle]any
}

// space is a dataspace handle: an extent and an optional box selection.
type space struct {
	dims   []uint64
	offset []uint64 // nil selects everything
	count  []uint64
}

func (s *space) selection() (offset, count []uint64) {
	if s.count == nil {
		return make([]uint64, len(s.dims)), s.dims
	}
	return s.offset, s.count
}

// NewStore returns a Store over f. Closing the Store's handles does not
// close f.
func NewStore(f *File) *Store {
	s := &Store{
		file:    f,
		log:     f.log,
		handles: make(map[slab.Handle]any),
	}
	s.next = 1
	s.root = s.add(f.root)
	return s
}

// Root returns the handle of the file's root group. It is never closed.
func (s *Store) Root() slab.Handle { return s.root }

// Live returns the number of open handles, not counting the root.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles) - 1
}

func (s *Store) add(obj any) slab.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.handles[h] = obj
	return h
}

func lookup[T any](s *Store, h slab.Handle) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	obj, ok := s.handles[h]
	if !ok {
		return zero, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %d is a %T, not a %T", ErrInvalidHandle, h, obj, zero)
	}
	return v, nil
}

func (s *Store) OpenDataset(group slab.Handle, name string) (slab.Handle, error) {
	g, err := lookup[*Group](s, group)
	if err != nil {
		return 0, err
	}
	ds, err := g.OpenDataset(name)
	if err != nil {
		return 0, err
	}
	h := s.add(ds)
	s.log.Debug("store: open dataset", slog.String("path", ds.path), slog.Uint64("handle", uint64(h)))
	return h, nil
}

func (s *Store) DatasetType(ds slab.Handle) (slab.Handle, error) {
	d, err := lookup[*Dataset](s, ds)
	if err != nil {
		return 0, err
	}
	return s.add(d.dt), nil
}

func (s *Store) TypeEqual(fileType slab.Handle, mem slab.Type) (bool, error) {
	dt, err := lookup[*message.Datatype](s, fileType)
	if err != nil {
		return false, err
	}
	return dtype.Matches(dt, mem), nil
}

func (s *Store) DatasetSpace(ds slab.Handle) (slab.Handle, error) {
	d, err := lookup[*Dataset](s, ds)
	if err != nil {
		return 0, err
	}
	return s.add(&space{dims: d.Shape()}), nil
}

func (s *Store) ExtentRank(sp slab.Handle) (int, error) {
	x, err := lookup[*space](s, sp)
	if err != nil {
		return 0, err
	}
	return len(x.dims), nil
}

func (s *Store) ExtentDims(sp slab.Handle) ([]uint64, error) {
	x, err := lookup[*space](s, sp)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), x.dims...), nil
}

func (s *Store) AttrExists(obj slab.Handle, name string) (bool, error) {
	o, err := lookup[Object](s, obj)
	if err != nil {
		return false, err
	}
	return o.Attr(name) != nil, nil
}

func (s *Store) CreateSimple(dims []uint64) (slab.Handle, error) {
	return s.add(&space{dims: append([]uint64(nil), dims...)}), nil
}

func (s *Store) SelectHyperslab(sp slab.Handle, offset, count []uint64) error {
	x, err := lookup[*space](s, sp)
	if err != nil {
		return err
	}
	if len(offset) != len(x.dims) || len(count) != len(x.dims) {
		return fmt.Errorf("%w: rank %d/%d selection of a rank %d space", ErrBounds, len(offset), len(count), len(x.dims))
	}
	for i, d := range x.dims {
		if offset[i] > d || count[i] > d-offset[i] {
			return fmt.Errorf("%w: axis %d: [%d, +%d) outside extent %d", ErrBounds, i, offset[i], count[i], d)
		}
	}
	s.mu.Lock()
	x.offset = append([]uint64(nil), offset...)
	x.count = append([]uint64(nil), count...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Read(ds slab.Handle, mem slab.Type, memSpace, fileSpace slab.Handle, dst []byte) error {
	d, err := lookup[*Dataset](s, ds)
	if err != nil {
		return err
	}
	ms, err := lookup[*space](s, memSpace)
	if err != nil {
		return err
	}
	fs, err := lookup[*space](s, fileSpace)
	if err != nil {
		return err
	}
	s.mu.Lock()
	fOff, fCount := fs.selection()
	mOff, mCount := ms.selection()
	mDims := ms.dims
	s.mu.Unlock()

	n := elements(fCount)
	if n != elements(mCount) {
		return fmt.Errorf("%w: file selection has %d elements, memory %d", ErrBounds, n, elements(mCount))
	}
	if want := elements(mDims) * uint64(mem.Size); uint64(len(dst)) != want {
		return fmt.Errorf("%w: %d byte destination for a %d byte memory space", ErrBounds, len(dst), want)
	}
	if n == 0 {
		return nil
	}

	// dst is only written once the whole region has been read.
	buf := make([]byte, n*uint64(mem.Size))
	if err := d.ReadRegion(fOff, fCount, mem, buf); err != nil {
		return err
	}
	place(dst, buf, mDims, mOff, mCount, uint64(mem.Size))
	return nil
}

func (s *Store) Close(h slab.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == s.root {
		return fmt.Errorf("%w: the root group is not closable", ErrInvalidHandle)
	}
	if _, ok := s.handles[h]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(s.handles, h)
	return nil
}

func elements(dims []uint64) uint64 {
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// place copies the packed elements of src into the box at offset with
// size count of the row-major array dst of extent dims.
func place(dst, src []byte, dims, offset, count []uint64, elem uint64) {
	rank := len(dims)
	if rank == 0 || slices.Equal(count, dims) {
		copy(dst, src)
		return
	}
	stride := make([]uint64, rank)
	step := elem
	for i := rank - 1; i >= 0; i-- {
		stride[i] = step
		step *= dims[i]
	}
	row := count[rank-1] * elem
	idx := make([]uint64, rank-1)
	for at := uint64(0); at < uint64(len(src)); at += row {
		off := offset[rank-1] * elem
		for i, v := range idx {
			off += (offset[i] + v) * stride[i]
		}
		copy(dst[off:off+row], src[at:at+row])
		for i := rank - 2; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
	}
}
