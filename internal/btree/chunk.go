package btree

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Chunk locates one stored chunk.
type Chunk struct {
	// Offset is the coordinate of the chunk's first element.
	Offset     []uint64
	Address    uint64
	Size       uint64 // bytes on disk
	FilterMask uint32
}

// ChunkSizeWidth returns the width of the on-disk chunk size field that
// filtered chunk indexes use for chunks of chunkBytes uncompressed bytes.
func ChunkSizeWidth(chunkBytes uint64) int {
	n := 1 + (log2(chunkBytes)+8)/8
	if n > 8 {
		n = 8
	}
	return n
}

func log2(v uint64) int {
	if v == 0 {
		return 0
	}
	return bits.Len64(v) - 1
}

// Chunks returns the chunks of the version 1 chunk B-tree at addr for a
// dataset of rank ndims.
func Chunks(r *binary.Reader, addr uint64, ndims int) ([]Chunk, error) {
	keySize := 8 + 8*(ndims+1)
	var out []Chunk
	err := walkV1(r, addr, nodeChunk, keySize, func(key []byte, child uint64) error {
		d := binary.NewDecoder(key, r.Config())
		c := Chunk{Size: uint64(d.Uint32()), FilterMask: d.Uint32(), Address: child}
		c.Offset = make([]uint64, ndims)
		for i := range c.Offset {
			c.Offset[i] = d.Uint64()
		}
		if err := d.Err(); err != nil {
			return fmt.Errorf("chunk key: %w", err)
		}
		if !r.Undefined(child) {
			out = append(out, c)
		}
		return nil
	})
	return out, err
}
