package layout

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/message"
)

// readIndex lists every stored chunk of the dataset.
func (c *Chunked) readIndex() ([]btree.Chunk, error) {
	ix := c.msg.Index
	if c.r.Undefined(ix.Address) {
		return nil, nil
	}
	switch ix.Kind {
	case message.IndexBTreeV1:
		return btree.Chunks(c.r, ix.Address, len(c.dims))
	case message.IndexBTreeV2:
		return btree.ChunksV2(c.r, ix.Address, c.chunk, c.chunkBytes)
	case message.IndexSingleChunk:
		return c.singleChunk(), nil
	case message.IndexImplicit:
		return c.implicitChunks(), nil
	case message.IndexFixedArray:
		return c.fixedArrayChunks()
	case message.IndexExtensible:
		return c.extensibleChunks()
	}
	return nil, fmt.Errorf("%w: chunk index %v", ErrUnsupported, ix.Kind)
}

func (c *Chunked) singleChunk() []btree.Chunk {
	ix := c.msg.Index
	ch := btree.Chunk{
		Offset:  make([]uint64, len(c.dims)),
		Address: ix.Address,
		Size:    c.chunkBytes,
	}
	if c.msg.Flags&message.ChunkSingleFiltered != 0 {
		ch.Size = ix.FilteredSize
		ch.FilterMask = ix.FilterMask
	}
	return []btree.Chunk{ch}
}

// implicitChunks places every chunk of the grid over the maximum extent
// back to back from the index address.
func (c *Chunked) implicitChunks() []btree.Chunk {
	g := c.arrayGrid(-1)
	var out []btree.Chunk
	visit(c.grid, func(scaled []uint64) {
		out = append(out, btree.Chunk{
			Offset:  c.offsetOf(scaled),
			Address: c.msg.Index.Address + g.linear(scaled)*c.chunkBytes,
			Size:    c.chunkBytes,
		})
	})
	return out
}

func (c *Chunked) offsetOf(scaled []uint64) []uint64 {
	off := make([]uint64, len(scaled))
	for i, s := range scaled {
		off[i] = s * c.chunk[i]
	}
	return off
}

// arrayGrid is the linear numbering fixed and extensible arrays give
// chunks: row-major over the grid of the maximum extent, with the axis
// front, if any, moved to the outermost position.
type arrayGrid struct {
	order []int    // axis at each position
	down  []uint64 // linear step per position
}

func (c *Chunked) arrayGrid(front int) arrayGrid {
	rank := len(c.dims)
	g := arrayGrid{order: make([]int, 0, rank), down: make([]uint64, rank)}
	if front >= 0 {
		g.order = append(g.order, front)
	}
	for i := 0; i < rank; i++ {
		if i != front {
			g.order = append(g.order, i)
		}
	}
	step := uint64(1)
	for p := rank - 1; p >= 0; p-- {
		g.down[p] = step
		ax := g.order[p]
		n := c.grid[ax]
		if c.maxDims[ax] != message.Unlimited {
			n = ceilDiv(c.maxDims[ax], c.chunk[ax])
		}
		step *= n
	}
	return g
}

func (g arrayGrid) linear(scaled []uint64) uint64 {
	var k uint64
	for p, ax := range g.order {
		k += scaled[ax] * g.down[p]
	}
	return k
}

func (g arrayGrid) scaled(k uint64) []uint64 {
	s := make([]uint64, len(g.order))
	for p, ax := range g.order {
		s[ax] = k / g.down[p]
		k %= g.down[p]
	}
	return s
}

// element decodes one fixed or extensible array entry: an address, and
// for filtered datasets the stored size and filter mask.
func (c *Chunked) element(g arrayGrid, k uint64, b []byte, filtered bool) (btree.Chunk, bool) {
	d := binary.NewDecoder(b, c.r.Config())
	ch := btree.Chunk{Address: d.Offset(), Size: c.chunkBytes}
	if filtered {
		ch.Size = d.UintN(len(b) - c.r.OffsetSize() - 4)
		ch.FilterMask = d.Uint32()
	}
	if d.Err() != nil || c.r.Undefined(ch.Address) {
		return ch, false
	}
	ch.Offset = c.offsetOf(g.scaled(k))
	return ch, true
}

// checkElementSize validates the entry size an array header declares.
func (c *Chunked) checkElementSize(size int, filtered bool) error {
	o := c.r.OffsetSize()
	switch {
	case !filtered && size == o:
	case filtered && size > o+4 && size <= o+4+8:
	default:
		return fmt.Errorf("%w: %d byte array entries (filtered %t)", ErrCorrupt, size, filtered)
	}
	return nil
}

// bit reports bit i of a most-significant-first bitmap.
func bit(bitmap []byte, i uint64) bool {
	return bitmap[i/8]&(0x80>>(i%8)) != 0
}

// readBlock reads n bytes at addr and verifies the trailing checksum.
func (c *Chunked) readBlock(addr uint64, n int, what string) (*binary.Decoder, error) {
	d, err := c.r.Decoder(addr, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if err := binary.VerifyBlock(d.Buffer(), what); err != nil {
		return nil, err
	}
	return d, nil
}
