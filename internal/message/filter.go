package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Registered filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
	FilterLZ4         uint16 = 32004
	FilterZstd        uint16 = 32015
)

// FilterOptional marks a filter whose failure is not fatal on write.
const FilterOptional = 0x0001

// Filter is one stage of a pipeline.
type Filter struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// Optional reports whether the filter may be skipped.
func (f Filter) Optional() bool { return f.Flags&FilterOptional != 0 }

// FilterPipeline lists the filters applied to each chunk, in write order.
type FilterPipeline struct {
	Version uint8
	Filters []Filter
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

// Has reports whether the pipeline contains filter id.
func (m *FilterPipeline) Has(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func decodeFilterPipeline(d *binary.Decoder) (*FilterPipeline, error) {
	p := &FilterPipeline{Version: d.Uint8()}
	n := int(d.Uint8())
	switch p.Version {
	case 1:
		d.Skip(6)
	case 2:
	default:
		return nil, fmt.Errorf("%w: filter pipeline version %d", ErrUnsupported, p.Version)
	}
	for i := 0; i < n && d.Err() == nil; i++ {
		p.Filters = append(p.Filters, decodeFilter(d, p.Version))
	}
	return p, nil
}

func decodeFilter(d *binary.Decoder, version uint8) Filter {
	f := Filter{ID: d.Uint16()}
	nameLen := 0
	if version == 1 || f.ID >= 256 {
		nameLen = int(d.Uint16())
	}
	f.Flags = d.Uint16()
	ncd := int(d.Uint16())
	if nameLen > 0 {
		name := d.Bytes(nameLen)
		for i, c := range name {
			if c == 0 {
				name = name[:i]
				break
			}
		}
		f.Name = string(name)
		if version == 1 && nameLen%8 != 0 {
			d.Skip(8 - nameLen%8)
		}
	}
	f.ClientData = make([]uint32, ncd)
	for i := range f.ClientData {
		f.ClientData[i] = d.Uint32()
	}
	if version == 1 && ncd%2 != 0 {
		d.Skip(4)
	}
	return f
}
