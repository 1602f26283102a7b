package layout

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

var (
	// ErrBounds is returned for a box outside the dataset extent or a
	// destination buffer that cannot hold it.
	ErrBounds = errors.New("layout: box out of bounds")
	// ErrCorrupt is returned when stored data contradicts its metadata.
	ErrCorrupt = errors.New("layout: corrupt storage")
	// ErrUnsupported is returned for storage this package cannot read.
	ErrUnsupported = errors.New("layout: unsupported storage")
)

// Layout reads raw elements of one dataset.
type Layout interface {
	Class() message.LayoutClass
	// Read fills dst with the elements of the box at start, row-major
	// over count. dst must hold at least product(count) elements.
	Read(start, count []uint64, dst []byte) error
}

type options struct {
	workers int
}

// Option configures New.
type Option func(*options)

// Concurrency bounds the number of chunks decoded at once. Values below
// one mean GOMAXPROCS.
func Concurrency(n int) Option {
	return func(o *options) { o.workers = n }
}

// New returns the reader for a dataset's storage. fp and fill may be nil.
func New(r *binary.Reader, msg *message.DataLayout, space *message.Dataspace, dt *message.Datatype,
	fp *message.FilterPipeline, fill *message.FillValue, opts ...Option) (Layout, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = runtime.GOMAXPROCS(0)
	}
	if dt.Size == 0 {
		return nil, fmt.Errorf("%w: zero-sized element type", ErrCorrupt)
	}
	elem := uint64(dt.Size)
	dims := space.Dims
	pattern := fillPattern(fill, elem)

	switch msg.Class {
	case message.LayoutCompact:
		return &Compact{data: msg.Data, dims: dims, elem: elem}, nil
	case message.LayoutContiguous:
		size := msg.Size
		if size == 0 {
			size = space.NumElements() * elem
		}
		return &Contiguous{r: r, addr: msg.Address, size: size, dims: dims, elem: elem, fill: pattern}, nil
	case message.LayoutChunked:
		return newChunked(r, msg, space, elem, fp, pattern, o.workers)
	}
	return nil, fmt.Errorf("%w: %v layout", ErrUnsupported, msg.Class)
}

// fillPattern returns the bytes of one fill element: the defined fill
// value when it has the element's size, zeros otherwise.
func fillPattern(fill *message.FillValue, elem uint64) []byte {
	if fill != nil && fill.Defined && uint64(len(fill.Value)) == elem {
		return fill.Value
	}
	return make([]byte, elem)
}

// check validates a box against dims and returns its size in bytes.
func check(dims, start, count []uint64, dst []byte, elem uint64) (uint64, error) {
	if len(start) != len(dims) || len(count) != len(dims) {
		return 0, fmt.Errorf("%w: rank %d/%d box for rank %d data", ErrBounds, len(start), len(count), len(dims))
	}
	n := elem
	for i := range dims {
		if start[i] > dims[i] || count[i] > dims[i]-start[i] {
			return 0, fmt.Errorf("%w: axis %d: [%d, +%d) outside extent %d", ErrBounds, i, start[i], count[i], dims[i])
		}
		n *= count[i]
	}
	if uint64(len(dst)) < n {
		return 0, fmt.Errorf("%w: %d byte buffer for %d bytes", ErrBounds, len(dst), n)
	}
	return n, nil
}

// strides returns the byte distance between neighbours along each axis
// of a row-major array.
func strides(dims []uint64, elem uint64) []uint64 {
	s := make([]uint64, len(dims))
	step := elem
	for i := len(dims) - 1; i >= 0; i-- {
		s[i] = step
		step *= dims[i]
	}
	return s
}

// runs calls fn for every contiguous stretch of a box inside a row-major
// array of dims: src is the stretch's byte offset in the array, dst its
// offset in the packed box and n its length. Trailing axes the box covers
// completely are merged into one stretch.
func runs(dims, start, count []uint64, elem uint64, fn func(src, dst, n uint64) error) error {
	rank := len(dims)
	if rank == 0 {
		return fn(0, 0, elem)
	}
	for _, c := range count {
		if c == 0 {
			return nil
		}
	}
	k := rank - 1
	for k > 0 && count[k] == dims[k] {
		k--
	}
	stride := strides(dims, elem)
	n := count[k] * stride[k]
	idx := make([]uint64, k)
	var dst uint64
	for {
		src := start[k] * stride[k]
		for i := 0; i < k; i++ {
			src += (start[i] + idx[i]) * stride[i]
		}
		if err := fn(src, dst, n); err != nil {
			return err
		}
		dst += n
		i := k - 1
		for ; i >= 0; i-- {
			if idx[i]++; idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}

// eachRow calls fn with the coordinate, relative to the box, of the first
// element of every innermost row. The last coordinate is always zero.
func eachRow(count []uint64, fn func(idx []uint64)) {
	for _, c := range count {
		if c == 0 {
			return
		}
	}
	rank := len(count)
	idx := make([]uint64, rank)
	for {
		fn(idx)
		i := rank - 2
		for ; i >= 0; i-- {
			if idx[i]++; idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

func at(stride, off, idx []uint64) uint64 {
	var o uint64
	for i := range stride {
		o += (off[i] + idx[i]) * stride[i]
	}
	return o
}

// copyBox copies the count-shaped box at srcOff of a row-major array of
// srcDims to dstOff of one of dstDims.
func copyBox(dst []byte, dstDims, dstOff []uint64, src []byte, srcDims, srcOff []uint64, count []uint64, elem uint64) {
	ds, ss := strides(dstDims, elem), strides(srcDims, elem)
	n := count[len(count)-1] * elem
	eachRow(count, func(idx []uint64) {
		d, s := at(ds, dstOff, idx), at(ss, srcOff, idx)
		copy(dst[d:d+n], src[s:s+n])
	})
}

// fillBox writes pattern over every element of the box at dstOff.
func fillBox(dst []byte, dstDims, dstOff []uint64, count []uint64, pattern []byte) {
	elem := uint64(len(pattern))
	ds := strides(dstDims, elem)
	n := count[len(count)-1] * elem
	eachRow(count, func(idx []uint64) {
		d := at(ds, dstOff, idx)
		fillBytes(dst[d:d+n], pattern)
	})
}

// fillBytes repeats pattern over b.
func fillBytes(b, pattern []byte) {
	zero := true
	for _, v := range pattern {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		clear(b)
		return
	}
	n := copy(b, pattern)
	for n < len(b) {
		n += copy(b[n:], b[:n])
	}
}

// readFull reads len(p) bytes at addr.
func readFull(r io.ReaderAt, addr uint64, p []byte) error {
	n, err := r.ReadAt(p, int64(addr))
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("reading %d bytes at %#x: %w", len(p), addr, err)
}
