package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Global is one global heap collection.
type Global struct {
	Address uint64
	objects map[uint16][]byte
}

// ID references an object in a global heap collection.
type ID struct {
	Collection uint64
	Index      uint32
}

// ParseID decodes a heap ID as stored in variable-length data.
func ParseID(d *binary.Decoder) ID {
	return ID{Collection: d.Offset(), Index: d.Uint32()}
}

// ReadGlobal reads the collection at addr.
func ReadGlobal(r *binary.Reader, addr uint64) (*Global, error) {
	if addr == 0 || r.Undefined(addr) {
		return nil, fmt.Errorf("global heap: invalid address %#x", addr)
	}
	head := 8 + r.LengthSize()
	d, err := r.Decoder(addr, head)
	if err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}
	d.Signature("GCOL")
	if v := d.Uint8(); d.Err() == nil && v != 1 {
		return nil, fmt.Errorf("global heap at %#x: version %d", addr, v)
	}
	d.Skip(3)
	size := int(d.Length())
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, err)
	}
	if size < head {
		return nil, fmt.Errorf("global heap at %#x: collection size %d", addr, size)
	}
	block, err := r.Prefix(addr, size)
	if err != nil {
		return nil, err
	}

	g := &Global{Address: addr, objects: make(map[uint16][]byte)}
	d = binary.NewDecoder(block, r.Config())
	d.Skip(head)
	objHead := 8 + r.LengthSize()
	for d.Remaining() >= objHead {
		index := d.Uint16()
		if index == 0 {
			break // free space
		}
		d.Skip(6) // reference count, reserved
		n := int(d.Length())
		data := d.Bytes(n)
		d.Align(8)
		if d.Err() != nil {
			break
		}
		g.objects[index] = data
	}
	if len(g.objects) == 0 && d.Err() != nil {
		return nil, fmt.Errorf("global heap at %#x: %w", addr, d.Err())
	}
	return g, nil
}

// Object returns the bytes of object index.
func (g *Global) Object(index uint32) ([]byte, error) {
	data, ok := g.objects[uint16(index)]
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("global heap at %#x: no object %d", g.Address, index)
	}
	return data, nil
}

// String returns object index as text, trimmed at the first NUL.
func (g *Global) String(index uint32) (string, error) {
	data, err := g.Object(index)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), nil
}
