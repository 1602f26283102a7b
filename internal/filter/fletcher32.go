package filter

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

// Fletcher32 appends and verifies a Fletcher-32 checksum.
type Fletcher32 struct{}

func (Fletcher32) ID() uint16 { return message.FilterFletcher32 }

// Decode strips the trailing checksum. Some old writers stored it byte
// swapped; both orders are accepted.
func (Fletcher32) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: %d bytes", len(input))
	}
	n := len(input) - 4
	stored := uint32(binary.Uint(input[n:]))
	sum := binary.Fletcher32(input[:n])
	if stored != sum && stored != bits.ReverseBytes32(sum) {
		return nil, fmt.Errorf("%w: fletcher32 stored %#08x, computed %#08x", binary.ErrChecksum, stored, sum)
	}
	return input[:n], nil
}

func (Fletcher32) Encode(input []byte) ([]byte, error) {
	sum := binary.Fletcher32(input)
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return append(out, byte(sum), byte(sum>>8), byte(sum>>16), byte(sum>>24)), nil
}
