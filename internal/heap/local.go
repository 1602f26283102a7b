package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Local is a local heap: one contiguous data segment addressed by offset.
type Local struct {
	FreeOffset  uint64
	DataAddress uint64
	data        []byte
}

// ReadLocal reads the local heap at addr and its data segment.
func ReadLocal(r *binary.Reader, addr uint64) (*Local, error) {
	d, err := r.Decoder(addr, 8+2*r.LengthSize()+r.OffsetSize())
	if err != nil {
		return nil, fmt.Errorf("local heap at %#x: %w", addr, err)
	}
	d.Signature("HEAP")
	if v := d.Uint8(); d.Err() == nil && v != 0 {
		return nil, fmt.Errorf("local heap at %#x: version %d", addr, v)
	}
	d.Skip(3)
	size := d.Length()
	h := &Local{FreeOffset: d.Length(), DataAddress: d.Offset()}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("local heap at %#x: %w", addr, err)
	}
	if h.data, err = r.Bytes(h.DataAddress, int(size)); err != nil {
		return nil, fmt.Errorf("local heap data: %w", err)
	}
	return h, nil
}

// Size returns the length of the data segment.
func (h *Local) Size() int { return len(h.data) }

// String returns the NUL-terminated string at offset.
func (h *Local) String(offset uint64) (string, error) {
	if offset >= uint64(len(h.data)) {
		return "", fmt.Errorf("local heap offset %d past %d bytes", offset, len(h.data))
	}
	s := h.data[offset:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s), nil
}
