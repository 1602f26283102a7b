package h5test

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Block tags.
const (
	TagSuperblock       = "superblock"
	TagHeader           = "object header"
	TagData             = "contiguous data"
	TagChunk            = "chunk"
	TagChunkTree        = "chunk btree"
	TagFixedArrayHeader = "fixed array header"
	TagFixedArrayBlock  = "fixed array data block"
	TagGroupTree        = "group btree"
	TagSymbolNode       = "symbol node"
	TagLocalHeap        = "local heap"
	TagHeapData         = "local heap data"
	TagGlobalHeap       = "global heap"
)

// Block is one structure of an encoded file.
type Block struct {
	Addr uint64 // absolute file offset
	Size uint64
	Tag  string
}

// Image is an encoded file and the blocks it is made of, in write order.
type Image struct {
	Data   []byte
	Blocks []Block
}

// Find returns the blocks carrying tag.
func (im *Image) Find(tag string) []Block {
	var out []Block
	for _, b := range im.Blocks {
		if b.Tag == tag {
			out = append(out, b)
		}
	}
	return out
}

// Corrupt flips every bit of the byte at offset off inside the i-th
// block carrying tag.
func (im *Image) Corrupt(tag string, i int, off uint64) error {
	blocks := im.Find(tag)
	if i >= len(blocks) || off >= blocks[i].Size {
		return fmt.Errorf("h5test: no byte %d in %s %d", off, tag, i)
	}
	im.Data[blocks[i].Addr+off] ^= 0xFF
	return nil
}

// space hands out file addresses by appending at the end of the image,
// aligned to eight bytes, and records what went where.
type space struct {
	e      *binary.Encoder
	blocks []Block
}

func (s *space) alloc(tag string, b []byte) uint64 {
	s.e.Pad(8)
	addr := uint64(s.e.Len())
	s.e.Raw(b)
	s.blocks = append(s.blocks, Block{Addr: addr, Size: uint64(len(b)), Tag: tag})
	return addr
}

// patch overwrites an allocated block.
func (s *space) patch(addr uint64, b []byte) {
	copy(s.e.Bytes()[addr:], b)
}

// validate checks that blocks lie below eof and do not overlap.
func (s *space) validate(eof uint64) error {
	sorted := slices.SortedFunc(slices.Values(s.blocks), func(a, b Block) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	var end uint64
	for i, b := range sorted {
		if b.Addr+b.Size > eof {
			return fmt.Errorf("h5test: %s at %#x size %d past end %#x", b.Tag, b.Addr, b.Size, eof)
		}
		if i > 0 && b.Addr < end {
			return fmt.Errorf("h5test: %s at %#x overlaps %s", b.Tag, b.Addr, sorted[i-1].Tag)
		}
		end = b.Addr + b.Size
	}
	return nil
}

// image returns the encoded bytes behind a user block of n bytes.
func (s *space) image(n int) *Image {
	im := &Image{Data: s.e.Bytes(), Blocks: slices.Clone(s.blocks)}
	if n > 0 {
		im.Data = append(make([]byte, n), im.Data...)
		for i := range im.Blocks {
			im.Blocks[i].Addr += uint64(n)
		}
	}
	return im
}
