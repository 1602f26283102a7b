package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/h5slab/internal/message"
)

// defaultLZ4Block is the block size of the HDF5 LZ4 plugin when the
// client data does not set one.
const defaultLZ4Block = 1 << 30

// LZ4 is the registered LZ4 filter. A filtered chunk is the original
// size (8 bytes, big-endian), the block size (4 bytes), then per block
// its stored size (4 bytes) and data. A block whose stored size equals
// its original size is kept uncompressed.
type LZ4 struct {
	block int
}

func NewLZ4(cd []uint32) *LZ4 {
	block := defaultLZ4Block
	if len(cd) > 0 && cd[0] > 0 {
		block = int(cd[0])
	}
	return &LZ4{block: block}
}

func (f *LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: %d byte header", len(input))
	}
	total := binary.BigEndian.Uint64(input)
	block := uint64(binary.BigEndian.Uint32(input[8:]))
	if block == 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}
	out := make([]byte, total)
	src := input[12:]
	for pos := uint64(0); pos < total; {
		n := min(block, total-pos)
		if len(src) < 4 {
			return nil, fmt.Errorf("lz4: truncated at %d of %d", pos, total)
		}
		stored := uint64(binary.BigEndian.Uint32(src))
		src = src[4:]
		if stored > uint64(len(src)) {
			return nil, fmt.Errorf("lz4: block of %d bytes, %d left", stored, len(src))
		}
		dst := out[pos : pos+n]
		if stored == n {
			copy(dst, src[:stored])
		} else {
			got, err := lz4.UncompressBlock(src[:stored], dst)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if uint64(got) != n {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", got, n)
			}
		}
		src = src[stored:]
		pos += n
	}
	return out, nil
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	out := make([]byte, 12, 12+len(input)+len(input)/255+16)
	binary.BigEndian.PutUint64(out, uint64(len(input)))
	binary.BigEndian.PutUint32(out[8:], uint32(f.block))
	scratch := make([]byte, lz4.CompressBlockBound(min(f.block, len(input))))
	for pos := 0; pos < len(input); {
		n := min(f.block, len(input)-pos)
		src := input[pos : pos+n]
		c, err := lz4.CompressBlock(src, scratch, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if c == 0 || c >= n {
			out = binary.BigEndian.AppendUint32(out, uint32(n))
			out = append(out, src...)
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(c))
			out = append(out, scratch[:c]...)
		}
		pos += n
	}
	return out, nil
}
