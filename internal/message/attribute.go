package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Attribute is a small named value attached to an object header.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

func decodeAttribute(d *binary.Decoder) (*Attribute, error) {
	a := &Attribute{Version: d.Uint8()}
	flags := d.Uint8()
	nameSize := int(d.Uint16())
	typeSize := int(d.Uint16())
	spaceSize := int(d.Uint16())
	switch a.Version {
	case 1:
	case 2:
	case 3:
		d.Skip(1) // name encoding
	default:
		return nil, fmt.Errorf("%w: attribute version %d", ErrUnsupported, a.Version)
	}
	if a.Version > 1 && flags&0x03 != 0 {
		return nil, fmt.Errorf("%w: attribute with shared type or space", ErrUnsupported)
	}

	field := func(n int) []byte {
		b := d.Bytes(n)
		if a.Version == 1 && n%8 != 0 {
			d.Skip(8 - n%8)
		}
		return b
	}
	name := field(nameSize)
	if len(name) > 0 && name[len(name)-1] == 0 {
		name = name[:len(name)-1]
	}
	a.Name = string(name)
	typeBuf := field(typeSize)
	spaceBuf := field(spaceSize)
	if err := d.Err(); err != nil {
		return nil, err
	}

	var err error
	if a.Datatype, err = decodeDatatype(binary.NewDecoder(typeBuf, d.Config())); err != nil {
		return nil, fmt.Errorf("attribute %q type: %w", a.Name, err)
	}
	sd := binary.NewDecoder(spaceBuf, d.Config())
	if a.Dataspace, err = decodeDataspace(sd); err == nil {
		err = sd.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("attribute %q space: %w", a.Name, err)
	}

	n := int(a.Dataspace.NumElements() * uint64(a.Datatype.Size))
	if n > d.Remaining() {
		return nil, fmt.Errorf("attribute %q: %d data bytes, %d present", a.Name, n, d.Remaining())
	}
	a.Data = d.Bytes(n)
	return a, nil
}
