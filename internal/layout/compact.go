package layout

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/message"
)

// Compact reads elements stored inside the object header.
type Compact struct {
	data []byte
	dims []uint64
	elem uint64
}

func (c *Compact) Class() message.LayoutClass { return message.LayoutCompact }

func (c *Compact) Read(start, count []uint64, dst []byte) error {
	if _, err := check(c.dims, start, count, dst, c.elem); err != nil {
		return err
	}
	need := c.elem
	for _, d := range c.dims {
		need *= d
	}
	if uint64(len(c.data)) < need {
		return fmt.Errorf("%w: compact data holds %d bytes, extent needs %d", ErrCorrupt, len(c.data), need)
	}
	return runs(c.dims, start, count, c.elem, func(src, off, n uint64) error {
		copy(dst[off:off+n], c.data[src:src+n])
		return nil
	})
}
