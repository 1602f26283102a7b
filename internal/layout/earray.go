package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/message"
)

const extensibleArrayVersion = 0

// eaHeader holds the creation parameters of an extensible array.
type eaHeader struct {
	filtered     bool
	size         int   // bytes per entry
	maxBits      uint8 // log2 of the maximum entry count
	indexElems   uint64
	dblkMin      uint64 // entries in the smallest data block
	sblkMinPtrs  uint64 // data block pointers in the smallest super block
	pageElems    uint64
	set          uint64 // entries ever written
	indexAddress uint64
}

// superInfo describes the data blocks of one super block.
type superInfo struct {
	ndblks uint64
	elems  uint64 // entries per data block
	start  uint64 // first entry, after the index block's own entries
}

// extensibleChunks reads an extensible array index. Entries are held
// first in the index block (EAIB), then in data blocks (EADB) whose size
// doubles every other super block. The first data blocks hang off the
// index block directly; the rest are listed by super blocks (EASB).
func (c *Chunked) extensibleChunks() ([]btree.Chunk, error) {
	h, err := c.readEAHeader()
	if err != nil {
		return nil, err
	}
	if c.r.Undefined(h.indexAddress) {
		return nil, nil
	}

	front := 0
	for i, m := range c.maxDims {
		if m == message.Unlimited {
			front = i
			break
		}
	}
	w := eaWalk{c: c, h: h, g: c.arrayGrid(front)}

	o := c.r.OffsetSize()
	supers := h.supers()
	inIndex := min(uint64(2*bits.TrailingZeros64(h.sblkMinPtrs)), uint64(len(supers)))
	ndblk := 2 * (h.sblkMinPtrs - 1)
	nsblk := uint64(len(supers)) - inIndex

	n := 4 + 2 + o + int(h.indexElems)*h.size + int(ndblk+nsblk)*o + 4
	d, err := c.readBlock(h.indexAddress, n, "extensible array index block")
	if err != nil {
		return nil, err
	}
	d.Signature("EAIB")
	if v := d.Uint8(); v != extensibleArrayVersion {
		return nil, fmt.Errorf("%w: extensible array index block version %d", ErrUnsupported, v)
	}
	d.Skip(1 + o)
	w.emit(0, d.Bytes(int(h.indexElems)*h.size))
	dblks := make([]uint64, ndblk)
	for i := range dblks {
		dblks[i] = d.Offset()
	}
	sblks := make([]uint64, nsblk)
	for i := range sblks {
		sblks[i] = d.Offset()
	}
	if err := d.Err(); err != nil {
		return nil, err
	}

	next := 0
	for u := uint64(0); u < inIndex; u++ {
		s := supers[u]
		for j := uint64(0); j < s.ndblks; j++ {
			addr := dblks[next]
			next++
			first := h.indexElems + s.start + j*s.elems
			if first >= h.set || c.r.Undefined(addr) {
				continue
			}
			if s.elems > h.pageElems {
				return nil, fmt.Errorf("%w: paged data block in extensible array index block", ErrUnsupported)
			}
			if err := w.dataBlock(addr, first, s.elems, nil); err != nil {
				return nil, err
			}
		}
	}
	for i, addr := range sblks {
		s := supers[inIndex+uint64(i)]
		if h.indexElems+s.start >= h.set || c.r.Undefined(addr) {
			continue
		}
		if err := w.superBlock(addr, s); err != nil {
			return nil, err
		}
	}
	return w.out, nil
}

func (c *Chunked) readEAHeader() (*eaHeader, error) {
	o, l := c.r.OffsetSize(), c.r.LengthSize()
	d, err := c.readBlock(c.msg.Index.Address, 4+2+6+6*l+o+4, "extensible array header")
	if err != nil {
		return nil, err
	}
	d.Signature("EAHD")
	if v := d.Uint8(); v != extensibleArrayVersion {
		return nil, fmt.Errorf("%w: extensible array version %d", ErrUnsupported, v)
	}
	h := &eaHeader{filtered: d.Uint8() == clientFiltered}
	h.size = int(d.Uint8())
	h.maxBits = d.Uint8()
	h.indexElems = uint64(d.Uint8())
	h.dblkMin = uint64(d.Uint8())
	h.sblkMinPtrs = uint64(d.Uint8())
	h.pageElems = uint64(1) << d.Uint8()
	d.Skip(4 * l) // super and data block counts and sizes
	h.set = d.Length()
	d.Skip(l) // entries allocated
	h.indexAddress = d.Offset()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if err := c.checkElementSize(h.size, h.filtered); err != nil {
		return nil, err
	}
	for _, v := range []uint64{h.dblkMin, h.sblkMinPtrs} {
		if v == 0 || v&(v-1) != 0 {
			return nil, fmt.Errorf("%w: extensible array block parameter %d is not a power of two", ErrCorrupt, v)
		}
	}
	if h.maxBits == 0 || h.maxBits > 64 || uint64(bits.TrailingZeros64(h.dblkMin)) > uint64(h.maxBits) {
		return nil, fmt.Errorf("%w: extensible array of 2^%d entries", ErrCorrupt, h.maxBits)
	}
	return h, nil
}

// supers returns the layout of every super block the array can have.
func (h *eaHeader) supers() []superInfo {
	n := 1 + int(h.maxBits) - bits.TrailingZeros64(h.dblkMin)
	out := make([]superInfo, n)
	var start uint64
	for u := range out {
		s := superInfo{
			ndblks: 1 << (u / 2),
			elems:  (1 << ((u + 1) / 2)) * h.dblkMin,
			start:  start,
		}
		out[u] = s
		start += s.ndblks * s.elems
	}
	return out
}

// offsetBytes is the width of the block offset field in data and super
// blocks.
func (h *eaHeader) offsetBytes() int { return (int(h.maxBits) + 7) / 8 }

type eaWalk struct {
	c   *Chunked
	h   *eaHeader
	g   arrayGrid
	out []btree.Chunk
}

// emit decodes the entries that start at entry k, ignoring any past the
// last one written.
func (w *eaWalk) emit(k uint64, entries []byte) {
	size := w.h.size
	for j := 0; j+size <= len(entries) && k < w.h.set; j += size {
		if ch, ok := w.c.element(w.g, k, entries[j:j+size], w.h.filtered); ok {
			w.out = append(w.out, ch)
		}
		k++
	}
}

// dataBlock reads the data block at addr holding n entries from first.
// pageInit reports which pages of a paged block were written.
func (w *eaWalk) dataBlock(addr, first, n uint64, pageInit func(page uint64) bool) error {
	o := w.c.r.OffsetSize()
	prefix := 4 + 2 + o + w.h.offsetBytes()
	what := fmt.Sprintf("extensible array data block at %#x", addr)
	if n <= w.h.pageElems {
		d, err := w.c.readBlock(addr, prefix+int(n)*w.h.size+4, what)
		if err != nil {
			return err
		}
		d.Signature("EADB")
		d.Skip(prefix - 4)
		entries := d.Bytes(int(n) * w.h.size)
		if err := d.Err(); err != nil {
			return err
		}
		w.emit(first, entries)
		return nil
	}

	d, err := w.c.readBlock(addr, prefix+4, what)
	if err != nil {
		return err
	}
	if d.Signature("EADB"); d.Err() != nil {
		return d.Err()
	}
	pageSize := w.h.pageElems*uint64(w.h.size) + 4
	for p := uint64(0); p < n/w.h.pageElems; p++ {
		k := first + p*w.h.pageElems
		if k >= w.h.set {
			break
		}
		if pageInit != nil && !pageInit(p) {
			continue
		}
		pd, err := w.c.readBlock(addr+uint64(prefix+4)+p*pageSize, int(pageSize), fmt.Sprintf("%s page %d", what, p))
		if err != nil {
			return err
		}
		w.emit(k, pd.Bytes(int(pageSize)-4))
	}
	return nil
}

// superBlock reads the data block addresses of one super block and the
// blocks they point at.
func (w *eaWalk) superBlock(addr uint64, s superInfo) error {
	o := w.c.r.OffsetSize()
	var npages, bitmapLen uint64
	if s.elems > w.h.pageElems {
		npages = s.elems / w.h.pageElems
		bitmapLen = s.ndblks * ((npages + 7) / 8)
	}
	n := 4 + 2 + o + w.h.offsetBytes() + int(bitmapLen) + int(s.ndblks)*o + 4
	d, err := w.c.readBlock(addr, n, fmt.Sprintf("extensible array super block at %#x", addr))
	if err != nil {
		return err
	}
	d.Signature("EASB")
	if v := d.Uint8(); v != extensibleArrayVersion {
		return fmt.Errorf("%w: extensible array super block version %d", ErrUnsupported, v)
	}
	d.Skip(1 + o + w.h.offsetBytes())
	bitmap := d.Bytes(int(bitmapLen))
	addrs := make([]uint64, s.ndblks)
	for i := range addrs {
		addrs[i] = d.Offset()
	}
	if err := d.Err(); err != nil {
		return err
	}
	for j, a := range addrs {
		first := w.h.indexElems + s.start + uint64(j)*s.elems
		if first >= w.h.set || w.c.r.Undefined(a) {
			continue
		}
		var pageInit func(uint64) bool
		if npages > 0 {
			base := uint64(j) * npages
			pageInit = func(p uint64) bool { return bit(bitmap, base+p) }
		}
		if err := w.dataBlock(a, first, s.elems, pageInit); err != nil {
			return err
		}
	}
	return nil
}
