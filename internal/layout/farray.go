package layout

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/btree"
)

const (
	fixedArrayVersion = 0
	clientFiltered    = 1
)

// fixedArrayChunks reads a fixed array index: a header (FAHD) pointing at
// one data block (FADB) whose entries are numbered over the grid of the
// maximum extent. Large blocks are split into checksummed pages, with a
// bitmap recording which pages were ever written.
func (c *Chunked) fixedArrayChunks() ([]btree.Chunk, error) {
	o, l := c.r.OffsetSize(), c.r.LengthSize()
	d, err := c.readBlock(c.msg.Index.Address, 4+4+l+o+4, "fixed array header")
	if err != nil {
		return nil, err
	}
	d.Signature("FAHD")
	if v := d.Uint8(); v != fixedArrayVersion {
		return nil, fmt.Errorf("%w: fixed array version %d", ErrUnsupported, v)
	}
	filtered := d.Uint8() == clientFiltered
	size := int(d.Uint8())
	pageBits := d.Uint8()
	n := d.Length()
	dblk := d.Offset()
	if err := d.Err(); err != nil {
		return nil, err
	}
	if err := c.checkElementSize(size, filtered); err != nil {
		return nil, err
	}
	if c.r.Undefined(dblk) {
		return nil, nil
	}

	g := c.arrayGrid(-1)
	var out []btree.Chunk
	emit := func(k uint64, entries []byte) {
		for j := 0; j+size <= len(entries); j += size {
			if ch, ok := c.element(g, k, entries[j:j+size], filtered); ok {
				out = append(out, ch)
			}
			k++
		}
	}

	prefix := 4 + 1 + 1 + o
	pageElems := uint64(1) << pageBits
	if n <= pageElems {
		d, err := c.readBlock(dblk, prefix+int(n)*size+4, "fixed array data block")
		if err != nil {
			return nil, err
		}
		d.Signature("FADB")
		d.Skip(2 + o)
		entries := d.Bytes(int(n) * size)
		if err := d.Err(); err != nil {
			return nil, err
		}
		emit(0, entries)
		return out, nil
	}

	npages := ceilDiv(n, pageElems)
	bitmapLen := int((npages + 7) / 8)
	d, err = c.readBlock(dblk, prefix+bitmapLen+4, "fixed array data block")
	if err != nil {
		return nil, err
	}
	d.Signature("FADB")
	d.Skip(2 + o)
	bitmap := d.Bytes(bitmapLen)
	if err := d.Err(); err != nil {
		return nil, err
	}
	pageSize := pageElems*uint64(size) + 4
	base := dblk + uint64(prefix+bitmapLen+4)
	for p := uint64(0); p < npages; p++ {
		if !bit(bitmap, p) {
			continue
		}
		elems := min(pageElems, n-p*pageElems)
		pd, err := c.readBlock(base+p*pageSize, int(elems)*size+4, fmt.Sprintf("fixed array page %d", p))
		if err != nil {
			return nil, err
		}
		emit(p*pageElems, pd.Bytes(int(elems)*size))
	}
	return out, nil
}
