package object

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

/*
Version 2 object header:

	0   4  "OHDR"
	4   1  version (2)
	5   1  flags
	       bits 0-1  width of the chunk 0 size field, 1 << n bytes
	       bit 2     attribute creation order tracked
	       bit 4     attribute phase change values stored
	       bit 5     times stored
	       16  access, modification, change and birth times (bit 5)
	       4   max compact and min dense attributes (bit 4)
	       n   size of chunk 0
	       messages
	       4   checksum

Continuation chunks are "OCHK", messages, checksum.

Each message:

	0  1  type
	1  2  data size
	3  1  flags
	4  2  creation order (flag bit 2)
	   data
*/

const (
	flagSizeMask    = 0x03
	flagTrackOrder  = 0x04
	flagPhaseChange = 0x10
	flagTimes       = 0x20

	// Largest fixed part before the chunk 0 size field.
	v2PrefixMax = 4 + 1 + 1 + 16 + 4 + 8
)

func readV2(r *binary.Reader, addr uint64, depth int) (*Header, error) {
	peek, err := r.Prefix(addr, v2PrefixMax)
	if err != nil {
		return nil, err
	}
	d := binary.NewDecoder(peek, r.Config())
	d.Signature("OHDR")
	h := &Header{Version: d.Uint8(), Address: addr}
	if d.Err() == nil && h.Version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Flags = d.Uint8()
	if h.Flags&flagTimes != 0 {
		h.AccessTime = d.Uint32()
		h.ModTime = d.Uint32()
		h.ChangeTime = d.Uint32()
		h.BirthTime = d.Uint32()
	}
	if h.Flags&flagPhaseChange != 0 {
		d.Skip(4)
	}
	size := d.UintN(1 << (h.Flags & flagSizeMask))
	if err := d.Err(); err != nil {
		return nil, err
	}
	start := d.Pos()

	block, err := r.Bytes(addr, start+int(size)+4)
	if err != nil {
		return nil, err
	}
	if err := binary.VerifyBlock(block, "object header"); err != nil {
		return nil, err
	}
	track := h.Flags&flagTrackOrder != 0

	var queue []chunk
	if err := h.messagesV2(r, block[start:len(block)-4], track, depth, &queue); err != nil {
		return nil, err
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		block, err := r.Bytes(c.addr, int(c.size))
		if err != nil {
			return nil, fmt.Errorf("continuation at %#x: %w", c.addr, err)
		}
		if len(block) < 8 || string(block[:4]) != "OCHK" {
			return nil, fmt.Errorf("continuation at %#x: %w", c.addr, binary.ErrSignature)
		}
		if err := binary.VerifyBlock(block, "object header continuation"); err != nil {
			return nil, err
		}
		if err := h.messagesV2(r, block[4:len(block)-4], track, depth, &queue); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Header) messagesV2(r *binary.Reader, buf []byte, track bool, depth int, queue *[]chunk) error {
	head := 4
	if track {
		head += 2
	}
	d := binary.NewDecoder(buf, r.Config())
	// Trailing space shorter than a message header is a gap.
	for d.Remaining() >= head {
		m := raw{typ: message.Type(d.Uint8())}
		n := int(d.Uint16())
		m.flags = d.Uint8()
		if track {
			d.Skip(2)
		}
		m.data = d.Bytes(n)
		if err := d.Err(); err != nil {
			return err
		}
		if err := h.decode(r, m, depth, queue); err != nil {
			return err
		}
	}
	return nil
}
