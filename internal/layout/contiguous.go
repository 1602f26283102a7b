package layout

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

// Contiguous reads elements stored in one block of the file. A block that
// was never allocated reads as the fill value.
type Contiguous struct {
	r    *binary.Reader
	addr uint64
	size uint64
	dims []uint64
	elem uint64
	fill []byte
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

// Allocated reports whether the data block exists.
func (c *Contiguous) Allocated() bool { return !c.r.Undefined(c.addr) }

func (c *Contiguous) Read(start, count []uint64, dst []byte) error {
	total, err := check(c.dims, start, count, dst, c.elem)
	if err != nil {
		return err
	}
	if !c.Allocated() {
		fillBytes(dst[:total], c.fill)
		return nil
	}
	return runs(c.dims, start, count, c.elem, func(src, off, n uint64) error {
		if src+n > c.size {
			return fmt.Errorf("%w: run [%d, %d) past %d byte block", ErrCorrupt, src, src+n, c.size)
		}
		return readFull(c.r, c.addr+src, dst[off:off+n])
	})
}
