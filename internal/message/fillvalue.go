package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// FillTime says when the library writes fill values into new storage.
type FillTime uint8

const (
	FillOnAlloc FillTime = 0
	FillNever   FillTime = 1
	FillIfSet   FillTime = 2
)

// FillValue is the value unwritten dataset elements read as. Defined is
// false when the file leaves the value to the library default, zero.
type FillValue struct {
	Version   uint8
	AllocTime uint8
	FillTime  FillTime
	Defined   bool
	Value     []byte
	old       bool
}

func (m *FillValue) Type() Type {
	if m.old {
		return TypeFillValueOld
	}
	return TypeFillValue
}

func decodeFillValueOld(d *binary.Decoder) (*FillValue, error) {
	fv := &FillValue{old: true}
	if n := int(d.Uint32()); n > 0 {
		fv.Value = d.Bytes(n)
		fv.Defined = true
	}
	return fv, nil
}

func decodeFillValue(d *binary.Decoder) (*FillValue, error) {
	fv := &FillValue{Version: d.Uint8()}
	switch fv.Version {
	case 1, 2:
		fv.AllocTime = d.Uint8()
		fv.FillTime = FillTime(d.Uint8())
		fv.Defined = d.Uint8() != 0
		if fv.Version == 1 || fv.Defined {
			if n := int(d.Uint32()); n > 0 {
				fv.Value = d.Bytes(n)
			} else {
				fv.Defined = false
			}
		}
	case 3:
		flags := d.Uint8()
		fv.AllocTime = flags & 0x03
		fv.FillTime = FillTime((flags >> 2) & 0x03)
		if flags&0x20 != 0 {
			fv.Value = d.Bytes(int(d.Uint32()))
			fv.Defined = len(fv.Value) > 0
		}
	default:
		return nil, fmt.Errorf("%w: fill value version %d", ErrUnsupported, fv.Version)
	}
	return fv, nil
}
