package object

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

/*
Version 1 object header:

	0   1  version (1)
	1   1  reserved
	2   2  number of messages
	4   4  reference count
	8   4  size of the first chunk
	12  4  padding
	16     messages

Each message:

	0  2  type
	2  2  data size, a multiple of 8
	4  1  flags
	5  3  reserved
	8     data

Continuation chunks hold messages only.
*/

const v1PrefixSize = 16

func readV1(r *binary.Reader, addr uint64, depth int) (*Header, error) {
	d, err := r.Decoder(addr, v1PrefixSize)
	if err != nil {
		return nil, err
	}
	d.Skip(4) // version, reserved, message count
	h := &Header{Version: 1, Address: addr, RefCount: d.Uint32()}
	size := uint64(d.Uint32())

	queue := []chunk{{addr: addr + v1PrefixSize, size: size}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		cd, err := r.Decoder(c.addr, int(c.size))
		if err != nil {
			return nil, fmt.Errorf("chunk at %#x: %w", c.addr, err)
		}
		for cd.Remaining() >= 8 {
			m := raw{typ: message.Type(cd.Uint16())}
			n := int(cd.Uint16())
			m.flags = cd.Uint8()
			cd.Skip(3)
			m.data = cd.Bytes(n)
			cd.Align(8)
			if err := cd.Err(); err != nil {
				return nil, fmt.Errorf("chunk at %#x: %w", c.addr, err)
			}
			if err := h.decode(r, m, depth, &queue); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}
