package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// SpaceKind is the kind of a dataspace.
type SpaceKind uint8

const (
	SpaceScalar SpaceKind = 0
	SpaceSimple SpaceKind = 1
	SpaceNull   SpaceKind = 2
)

// Unlimited is the maximum-dimension value of an extendible axis.
const Unlimited = ^uint64(0)

// Dataspace is the shape of a dataset or attribute.
type Dataspace struct {
	Version uint8
	Kind    SpaceKind
	Dims    []uint64
	MaxDims []uint64 // nil when equal to Dims
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// Rank returns the number of dimensions; 0 for scalar and null spaces.
func (m *Dataspace) Rank() int { return len(m.Dims) }

// NumElements returns the number of elements the space holds.
func (m *Dataspace) NumElements() uint64 {
	switch m.Kind {
	case SpaceNull:
		return 0
	case SpaceScalar:
		return 1
	}
	n := uint64(1)
	for _, d := range m.Dims {
		n *= d
	}
	return n
}

func decodeDataspace(d *binary.Decoder) (*Dataspace, error) {
	ds := &Dataspace{Version: d.Uint8()}
	rank := int(d.Uint8())
	flags := d.Uint8()

	switch ds.Version {
	case 1:
		d.Skip(5)
		ds.Kind = SpaceSimple
		if rank == 0 {
			ds.Kind = SpaceScalar
		}
	case 2:
		ds.Kind = SpaceKind(d.Uint8())
		if ds.Kind > SpaceNull {
			return nil, fmt.Errorf("dataspace kind %d", ds.Kind)
		}
	default:
		return nil, fmt.Errorf("%w: dataspace version %d", ErrUnsupported, ds.Version)
	}
	if ds.Kind != SpaceSimple {
		return ds, nil
	}

	ds.Dims = make([]uint64, rank)
	for i := range ds.Dims {
		ds.Dims[i] = d.Length()
	}
	if flags&0x01 != 0 {
		ds.MaxDims = make([]uint64, rank)
		for i := range ds.MaxDims {
			ds.MaxDims[i] = d.Length()
		}
	}
	return ds, nil
}
