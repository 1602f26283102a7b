package hdf5

import (
	"fmt"
	"log/slog"
	"path"
	"unsafe"

	"github.com/robert-malhotra/h5slab/internal/dtype"
	"github.com/robert-malhotra/h5slab/internal/layout"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/internal/object"
	"github.com/robert-malhotra/h5slab/slab"
)

// Dataset is an HDF5 dataset.
type Dataset struct {
	file   *File
	path   string
	header *object.Header
	space  *message.Dataspace
	dt     *message.Datatype
	store  layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:   f,
		path:   p,
		header: h,
		space:  h.Dataspace(),
		dt:     h.Datatype(),
	}
	if ds.dt == nil {
		return nil, fmt.Errorf("%s: dataset without a datatype", p)
	}
	var err error
	ds.store, err = layout.New(f.reader, h.DataLayout(), ds.space, ds.dt,
		h.FilterPipeline(), h.FillValue(), layout.Concurrency(f.opts.concurrency))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return ds, nil
}

// File returns the file the dataset lives in.
func (ds *Dataset) File() *File { return ds.file }

// Path returns the absolute path the dataset was opened by.
func (ds *Dataset) Path() string { return ds.path }

// Name returns the last component of the dataset's path.
func (ds *Dataset) Name() string { return path.Base(ds.path) }

// Shape returns the current extent, slowest axis first. Scalars have an
// empty shape.
func (ds *Dataset) Shape() []uint64 { return append([]uint64(nil), ds.space.Dims...) }

// MaxShape returns the maximum extent; unlimited axes hold
// message.Unlimited.
func (ds *Dataset) MaxShape() []uint64 {
	if ds.space.MaxDims == nil {
		return ds.Shape()
	}
	return append([]uint64(nil), ds.space.MaxDims...)
}

// Rank returns the number of axes.
func (ds *Dataset) Rank() int { return ds.space.Rank() }

// NumElements returns the number of elements in the extent.
func (ds *Dataset) NumElements() uint64 { return ds.space.NumElements() }

// TypeName describes the stored element type.
func (ds *Dataset) TypeName() string { return ds.dt.String() }

// ElementSize returns the stored size of one element in bytes.
func (ds *Dataset) ElementSize() int { return int(ds.dt.Size) }

// ElementType returns the memory type the stored elements map to, or an
// error for non-numeric data.
func (ds *Dataset) ElementType() (slab.Type, error) { return dtype.Numeric(ds.dt) }

// Storage describes how a dataset's elements are laid out in the file.
type Storage struct {
	Layout    message.LayoutClass
	Index     message.IndexKind // chunked only
	Chunk     []uint64          // chunked only
	Chunks    uint64            // chunks in the grid
	Allocated uint64            // chunks, or 1 for allocated contiguous data
	Filters   []message.Filter
}

// Storage reports the dataset's layout. For chunked data it walks the
// chunk index.
func (ds *Dataset) Storage() (Storage, error) {
	s := Storage{Layout: ds.store.Class()}
	if fp := ds.header.FilterPipeline(); fp != nil {
		s.Filters = fp.Filters
	}
	switch l := ds.store.(type) {
	case *layout.Contiguous:
		if l.Allocated() {
			s.Allocated = 1
		}
	case *layout.Compact:
		s.Allocated = 1
	case *layout.Chunked:
		s.Index = l.Index()
		s.Chunk = l.ChunkDims()
		s.Chunks = l.GridSize()
		bm, err := l.Allocated()
		if err != nil {
			return s, fmt.Errorf("%s: %w", ds.path, err)
		}
		s.Allocated = bm.GetCardinality()
	}
	return s, nil
}

// ReadRaw reads the box at start with size count as stored bytes, in
// file byte order, row-major into dst.
func (ds *Dataset) ReadRaw(start, count []uint64, dst []byte) error {
	if ds.file.isClosed() {
		return ErrClosed
	}
	if err := ds.store.Read(start, count, dst); err != nil {
		return fmt.Errorf("%s: %w", ds.path, err)
	}
	return nil
}

// ReadRegion reads the box at start with size count into dst as mem
// elements in host order. dst must hold exactly product(count) elements.
// On error dst may be partly written.
func (ds *Dataset) ReadRegion(start, count []uint64, mem slab.Type, dst []byte) error {
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	if uint64(len(dst)) != n*uint64(mem.Size) {
		return fmt.Errorf("%s: %w: %d byte buffer for %d elements of %d bytes",
			ds.path, ErrBounds, len(dst), n, mem.Size)
	}
	stored, err := ds.ElementType()
	if err != nil {
		return fmt.Errorf("%s: %w", ds.path, err)
	}
	raw := dst
	if stored != mem {
		raw = make([]byte, n*uint64(ds.dt.Size))
	}
	if err := ds.ReadRaw(start, count, raw); err != nil {
		return err
	}
	if err := dtype.Convert(dst, mem, raw, ds.dt); err != nil {
		return fmt.Errorf("%s: %w", ds.path, err)
	}
	ds.file.log.Debug("read region",
		slog.String("dataset", ds.path),
		slog.Any("start", start),
		slog.Any("count", count),
		slog.Int("bytes", len(dst)))
	return nil
}

// ReadAll reads the whole dataset as T.
func ReadAll[T slab.Element](ds *Dataset) ([]T, error) {
	out := make([]T, ds.NumElements())
	var buf []byte
	if len(out) > 0 {
		var zero T
		buf = unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(out)*int(unsafe.Sizeof(zero)))
	}
	start := make([]uint64, ds.Rank())
	if err := ds.ReadRegion(start, ds.space.Dims, slab.TypeOf[T](), buf); err != nil {
		return nil, err
	}
	return out, nil
}

// Values decodes every element of a dataset of any type, the way
// Attribute.Values does.
func (ds *Dataset) Values() ([]any, error) {
	n := ds.NumElements()
	if n == 0 {
		return nil, nil
	}
	raw := make([]byte, n*uint64(ds.dt.Size))
	if err := ds.ReadRaw(make([]uint64, ds.Rank()), ds.space.Dims, raw); err != nil {
		return nil, err
	}
	return dtype.Values(ds.dt, raw, int(n), ds.file.reader.Config(), ds.file.heaps)
}

// Attrs returns the dataset's attributes.
func (ds *Dataset) Attrs() []*Attribute { return attrs(ds.file, ds.header) }

// Attr returns the attribute called name, or nil.
func (ds *Dataset) Attr(name string) *Attribute { return attr(ds.file, ds.header, name) }

// HasAttr reports whether the dataset carries an attribute called name.
func (ds *Dataset) HasAttr(name string) bool { return ds.header.Attribute(name) != nil }
