package btree

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/heap"
)

// Symbol table entry cache types.
const (
	CacheNone     = 0
	CacheObject   = 1
	CacheSoftLink = 2
)

// SymbolEntry is one member of an old-style group.
type SymbolEntry struct {
	Name      string
	Address   uint64
	CacheType uint32
	Target    string // soft link path
}

// Soft reports whether the entry is a soft link.
func (e SymbolEntry) Soft() bool { return e.CacheType == CacheSoftLink }

// GroupEntries returns the members of the group whose B-tree is at addr
// and whose names live in names.
func GroupEntries(r *binary.Reader, addr uint64, names *heap.Local) ([]SymbolEntry, error) {
	var out []SymbolEntry
	err := walkV1(r, addr, nodeGroup, r.LengthSize(), func(_ []byte, snod uint64) error {
		entries, err := readSymbolNode(r, snod, names)
		if err != nil {
			return err
		}
		out = append(out, entries...)
		return nil
	})
	return out, err
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.Local) ([]SymbolEntry, error) {
	head, err := r.Decoder(addr, 8)
	if err != nil {
		return nil, fmt.Errorf("symbol node at %#x: %w", addr, err)
	}
	head.Signature("SNOD")
	if v := head.Uint8(); head.Err() == nil && v != 1 {
		return nil, fmt.Errorf("symbol node at %#x: version %d", addr, v)
	}
	head.Skip(1)
	count := int(head.Uint16())
	if err := head.Err(); err != nil {
		return nil, fmt.Errorf("symbol node at %#x: %w", addr, err)
	}

	size := 2*r.OffsetSize() + 24
	d, err := r.Decoder(addr+8, count*size)
	if err != nil {
		return nil, fmt.Errorf("symbol node at %#x: %w", addr, err)
	}
	out := make([]SymbolEntry, 0, count)
	for i := 0; i < count; i++ {
		nameOff := d.Offset()
		e := SymbolEntry{Address: d.Offset(), CacheType: d.Uint32()}
		d.Skip(4)
		scratch := d.Bytes(16)
		if err := d.Err(); err != nil {
			return nil, fmt.Errorf("symbol node at %#x: %w", addr, err)
		}
		if e.Name, err = names.String(nameOff); err != nil {
			return nil, fmt.Errorf("symbol node at %#x entry %d: %w", addr, i, err)
		}
		if e.Soft() {
			if e.Target, err = names.String(binary.Uint(scratch[:4])); err != nil {
				return nil, fmt.Errorf("soft link %q: %w", e.Name, err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
