package filter

import "github.com/robert-malhotra/h5slab/internal/message"

// Shuffle groups byte k of every element together. Client data holds
// the element size. Trailing bytes that do not form a whole element are
// left in place.
type Shuffle struct {
	size int
}

func NewShuffle(cd []uint32) *Shuffle {
	size := 1
	if len(cd) > 0 && cd[0] > 0 {
		size = int(cd[0])
	}
	return &Shuffle{size: size}
}

func (f *Shuffle) ID() uint16 { return message.FilterShuffle }

func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	n := len(input) / f.size
	if f.size <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.size; j++ {
			out[i*f.size+j] = input[j*n+i]
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out, nil
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	n := len(input) / f.size
	if f.size <= 1 || n <= 1 {
		return input, nil
	}
	out := make([]byte, len(input))
	for i := 0; i < n; i++ {
		for j := 0; j < f.size; j++ {
			out[j*n+i] = input[i*f.size+j]
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out, nil
}
