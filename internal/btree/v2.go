package btree

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Version 2 B-tree record types for chunk indexes.
const (
	RecordChunk         = 10
	RecordFilteredChunk = 11
)

// Signature, version, type and checksum.
const v2NodePrefix = 10

// V2Header is the header of a version 2 B-tree.
type V2Header struct {
	Type         uint8
	NodeSize     uint32
	RecordSize   uint16
	Depth        uint16
	RootAddress  uint64
	RootRecords  uint16
	TotalRecords uint64

	// Per depth: maximum records in a node, cumulative maximum below a
	// node and the width of that count.
	maxRecords    []uint64
	cumRecords    []uint64
	cumWidth      []int
	maxRecordSize int
}

// ReadV2Header reads the "BTHD" block at addr.
func ReadV2Header(r *binary.Reader, addr uint64) (*V2Header, error) {
	size := 4 + 1 + 1 + 4 + 2 + 2 + 1 + 1 + r.OffsetSize() + 2 + r.LengthSize() + 4
	block, err := r.Bytes(addr, size)
	if err != nil {
		return nil, fmt.Errorf("btree header at %#x: %w", addr, err)
	}
	if err := binary.VerifyBlock(block, "btree header"); err != nil {
		return nil, err
	}
	d := binary.NewDecoder(block, r.Config())
	d.Signature("BTHD")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("btree header at %#x: version %d", addr, v)
	}
	h := &V2Header{
		Type:       d.Uint8(),
		NodeSize:   d.Uint32(),
		RecordSize: d.Uint16(),
		Depth:      d.Uint16(),
	}
	d.Skip(2) // split and merge percentages
	h.RootAddress = d.Offset()
	h.RootRecords = d.Uint16()
	h.TotalRecords = d.Length()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("btree header at %#x: %w", addr, err)
	}
	if err := h.plan(r.OffsetSize()); err != nil {
		return nil, fmt.Errorf("btree header at %#x: %w", addr, err)
	}
	return h, nil
}

// plan derives the node capacities that fix the width of child pointers.
func (h *V2Header) plan(offsetSize int) error {
	if h.RecordSize == 0 || int(h.NodeSize) <= v2NodePrefix {
		return fmt.Errorf("node size %d, record size %d", h.NodeSize, h.RecordSize)
	}
	depth := int(h.Depth)
	h.maxRecords = make([]uint64, depth+1)
	h.cumRecords = make([]uint64, depth+1)
	h.cumWidth = make([]int, depth+1)

	h.maxRecords[0] = uint64(int(h.NodeSize)-v2NodePrefix) / uint64(h.RecordSize)
	h.cumRecords[0] = h.maxRecords[0]
	h.maxRecordSize = binary.EncodedSize(h.maxRecords[0])
	for u := 1; u <= depth; u++ {
		ptr := h.pointerSize(offsetSize, u)
		free := int(h.NodeSize) - v2NodePrefix - ptr
		if free <= 0 {
			return fmt.Errorf("node size %d too small at depth %d", h.NodeSize, u)
		}
		h.maxRecords[u] = uint64(free) / uint64(int(h.RecordSize)+ptr)
		h.cumRecords[u] = (h.maxRecords[u]+1)*h.cumRecords[u-1] + h.maxRecords[u]
		h.cumWidth[u] = binary.EncodedSize(h.cumRecords[u])
	}
	return nil
}

// pointerSize is the size of a child pointer in a node at depth.
func (h *V2Header) pointerSize(offsetSize, depth int) int {
	n := offsetSize + h.maxRecordSize
	if depth > 1 {
		n += h.cumWidth[depth-1]
	}
	return n
}

// walk calls fn with every record in the tree.
func (h *V2Header) walk(r *binary.Reader, fn func(rec []byte) error) error {
	if h.TotalRecords == 0 || r.Undefined(h.RootAddress) {
		return nil
	}
	seen := make(map[uint64]bool)
	var visit func(addr uint64, records, depth int) error
	visit = func(addr uint64, records, depth int) error {
		if seen[addr] {
			return fmt.Errorf("%w: %#x", ErrCycle, addr)
		}
		seen[addr] = true

		sig := "BTLF"
		used := v2NodePrefix + records*int(h.RecordSize)
		ptr := 0
		if depth > 0 {
			sig = "BTIN"
			ptr = h.pointerSize(r.OffsetSize(), depth)
			used += (records + 1) * ptr
		}
		block, err := r.Bytes(addr, used)
		if err != nil {
			return fmt.Errorf("btree node at %#x: %w", addr, err)
		}
		if err := binary.VerifyBlock(block, "btree node"); err != nil {
			return err
		}
		d := binary.NewDecoder(block[:used-4], r.Config())
		d.Signature(sig)
		d.Skip(1)
		if t := d.Uint8(); d.Err() == nil && t != h.Type {
			return fmt.Errorf("btree node at %#x: type %d, want %d", addr, t, h.Type)
		}
		recs := make([][]byte, records)
		for i := range recs {
			recs[i] = d.Bytes(int(h.RecordSize))
		}
		if err := d.Err(); err != nil {
			return fmt.Errorf("btree node at %#x: %w", addr, err)
		}
		if depth == 0 {
			for _, rec := range recs {
				if err := fn(rec); err != nil {
					return err
				}
			}
			return nil
		}

		// Records of an internal node sit between its children.
		for i := 0; i <= records; i++ {
			child := d.Offset()
			n := int(d.UintN(h.maxRecordSize))
			if depth > 1 {
				d.Skip(h.cumWidth[depth-1])
			}
			if err := d.Err(); err != nil {
				return fmt.Errorf("btree node at %#x: %w", addr, err)
			}
			if err := visit(child, n, depth-1); err != nil {
				return err
			}
			if i < records {
				if err := fn(recs[i]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return visit(h.RootAddress, int(h.RootRecords), int(h.Depth))
}

// ChunksV2 returns the chunks indexed by the version 2 B-tree at addr.
// chunkDims converts the stored scaled coordinates to element offsets;
// chunkBytes is the uncompressed chunk size.
func ChunksV2(r *binary.Reader, addr uint64, chunkDims []uint64, chunkBytes uint64) ([]Chunk, error) {
	h, err := ReadV2Header(r, addr)
	if err != nil {
		return nil, err
	}
	filtered := false
	switch h.Type {
	case RecordChunk:
	case RecordFilteredChunk:
		filtered = true
	default:
		return nil, fmt.Errorf("btree at %#x: record type %d is not a chunk index", addr, h.Type)
	}
	width := ChunkSizeWidth(chunkBytes)

	var out []Chunk
	err = h.walk(r, func(rec []byte) error {
		d := binary.NewDecoder(rec, r.Config())
		c := Chunk{Address: d.Offset(), Size: chunkBytes}
		if filtered {
			c.Size = d.UintN(width)
			c.FilterMask = d.Uint32()
		}
		c.Offset = make([]uint64, len(chunkDims))
		for i := range c.Offset {
			c.Offset[i] = d.Uint64() * chunkDims[i]
		}
		if err := d.Err(); err != nil {
			return fmt.Errorf("chunk record: %w", err)
		}
		if !r.Undefined(c.Address) {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}
