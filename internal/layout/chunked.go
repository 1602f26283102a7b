package layout

import (
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/filter"
	"github.com/robert-malhotra/h5slab/internal/message"
)

// Chunked reads elements split into chunks. The chunk index is loaded on
// first use and kept for the life of the value.
type Chunked struct {
	r          *binary.Reader
	msg        *message.DataLayout
	dims       []uint64
	maxDims    []uint64
	chunk      []uint64
	grid       []uint64 // chunks per axis over dims
	elem       uint64
	chunkBytes uint64
	pipe       *filter.Pipeline
	fill       []byte
	workers    int

	once    sync.Once
	err     error
	index   map[uint64]btree.Chunk
	present *roaring64.Bitmap
}

func newChunked(r *binary.Reader, msg *message.DataLayout, space *message.Dataspace, elem uint64,
	fp *message.FilterPipeline, fill []byte, workers int) (*Chunked, error) {
	dims := space.Dims
	if len(msg.ChunkDims) != len(dims) {
		return nil, fmt.Errorf("%w: rank %d chunks for rank %d dataspace", ErrCorrupt, len(msg.ChunkDims), len(dims))
	}
	if uint64(msg.ElementSize) != elem {
		return nil, fmt.Errorf("%w: chunk element size %d, datatype size %d", ErrCorrupt, msg.ElementSize, elem)
	}
	maxDims := space.MaxDims
	if maxDims == nil {
		maxDims = dims
	}
	c := &Chunked{
		r:          r,
		msg:        msg,
		dims:       dims,
		maxDims:    maxDims,
		chunk:      msg.ChunkDims,
		grid:       make([]uint64, len(dims)),
		elem:       elem,
		chunkBytes: msg.ChunkBytes(),
		pipe:       filter.NewPipeline(fp),
		fill:       fill,
		workers:    workers,
	}
	for i, d := range dims {
		c.grid[i] = ceilDiv(d, c.chunk[i])
	}
	return c, nil
}

func ceilDiv(a, b uint64) uint64 { return (a + b - 1) / b }

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

// ChunkDims returns the chunk shape.
func (c *Chunked) ChunkDims() []uint64 { return c.chunk }

// Index returns the kind of chunk index the dataset uses.
func (c *Chunked) Index() message.IndexKind { return c.msg.Index.Kind }

// Allocated returns the linear grid positions of the chunks that have
// storage. Unallocated chunks read as the fill value.
func (c *Chunked) Allocated() (*roaring64.Bitmap, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.present.Clone(), nil
}

// Chunks returns the stored chunks in grid order.
func (c *Chunked) Chunks() ([]btree.Chunk, error) {
	if err := c.load(); err != nil {
		return nil, err
	}
	out := make([]btree.Chunk, 0, len(c.index))
	it := c.present.Iterator()
	for it.HasNext() {
		out = append(out, c.index[it.Next()])
	}
	return out, nil
}

// GridSize returns the number of chunk positions covering the extent.
func (c *Chunked) GridSize() uint64 {
	n := uint64(1)
	for _, g := range c.grid {
		n *= g
	}
	return n
}

func (c *Chunked) load() error {
	c.once.Do(func() {
		chunks, err := c.readIndex()
		if err != nil {
			c.err = fmt.Errorf("%v chunk index at %#x: %w", c.msg.Index.Kind, c.msg.Index.Address, err)
			return
		}
		c.index = make(map[uint64]btree.Chunk, len(chunks))
		c.present = roaring64.New()
		for _, ch := range chunks {
			key, ok := c.key(ch.Offset)
			if !ok {
				continue
			}
			c.index[key] = ch
			c.present.Add(key)
		}
	})
	return c.err
}

// key returns the row-major position of the chunk at offset in the grid
// over the current extent. Chunks outside it are dropped.
func (c *Chunked) key(offset []uint64) (uint64, bool) {
	if len(offset) != len(c.chunk) {
		return 0, false
	}
	var k uint64
	for i, o := range offset {
		s := o / c.chunk[i]
		if o%c.chunk[i] != 0 || s >= c.grid[i] {
			return 0, false
		}
		k = k*c.grid[i] + s
	}
	return k, true
}

func (c *Chunked) Read(start, count []uint64, dst []byte) error {
	if _, err := check(c.dims, start, count, dst, c.elem); err != nil {
		return err
	}
	for _, n := range count {
		if n == 0 {
			return nil
		}
	}
	if err := c.load(); err != nil {
		return err
	}

	rank := len(c.dims)
	lo := make([]uint64, rank)
	span := make([]uint64, rank)
	for i := range lo {
		lo[i] = start[i] / c.chunk[i]
		span[i] = (start[i]+count[i]-1)/c.chunk[i] - lo[i] + 1
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	visit(span, func(rel []uint64) {
		scaled := make([]uint64, rank)
		var key uint64
		for i := range scaled {
			scaled[i] = lo[i] + rel[i]
			key = key*c.grid[i] + scaled[i]
		}
		g.Go(func() error { return c.readChunk(key, scaled, start, count, dst) })
	})
	return g.Wait()
}

// readChunk copies the part of one chunk inside the box into dst.
func (c *Chunked) readChunk(key uint64, scaled, start, count []uint64, dst []byte) error {
	rank := len(scaled)
	off := make([]uint64, rank)   // chunk origin
	from := make([]uint64, rank)  // overlap origin in the box
	in := make([]uint64, rank)    // overlap origin in the chunk
	n := make([]uint64, rank)     // overlap extent
	for i := range scaled {
		off[i] = scaled[i] * c.chunk[i]
		a := max(start[i], off[i])
		b := min(start[i]+count[i], off[i]+c.chunk[i])
		from[i], in[i], n[i] = a-start[i], a-off[i], b-a
	}

	if !c.present.Contains(key) {
		fillBox(dst, count, from, n, c.fill)
		return nil
	}
	data, err := c.decode(c.index[key], off)
	if err != nil {
		return err
	}
	copyBox(dst, count, from, data, c.chunk, in, n, c.elem)
	return nil
}

func (c *Chunked) decode(ch btree.Chunk, off []uint64) ([]byte, error) {
	raw := make([]byte, ch.Size)
	if err := readFull(c.r, ch.Address, raw); err != nil {
		return nil, fmt.Errorf("chunk %v: %w", off, err)
	}
	data := raw
	if !c.pipe.Empty() && !c.unfilteredEdge(off) {
		var err error
		if data, err = c.pipe.Decode(raw, ch.FilterMask); err != nil {
			return nil, fmt.Errorf("chunk %v: %w", off, err)
		}
	}
	if uint64(len(data)) != c.chunkBytes {
		return nil, fmt.Errorf("%w: chunk %v decodes to %d bytes, want %d", ErrCorrupt, off, len(data), c.chunkBytes)
	}
	return data, nil
}

// unfilteredEdge reports whether the chunk at off crosses the extent in
// a dataset that stores such chunks without filtering.
func (c *Chunked) unfilteredEdge(off []uint64) bool {
	if c.msg.Flags&message.ChunkDontFilterPartialEdge == 0 {
		return false
	}
	for i, o := range off {
		if o+c.chunk[i] > c.dims[i] {
			return true
		}
	}
	return false
}

// visit calls fn for every coordinate of a box of the given extent in
// row-major order.
func visit(extent []uint64, fn func(idx []uint64)) {
	for _, e := range extent {
		if e == 0 {
			return
		}
	}
	idx := make([]uint64, len(extent))
	for {
		fn(idx)
		i := len(extent) - 1
		for ; i >= 0; i-- {
			if idx[i]++; idx[i] < extent[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
