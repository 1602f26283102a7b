package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// LinkKind is the kind of a group link.
type LinkKind uint8

const (
	LinkHard     LinkKind = 0
	LinkSoft     LinkKind = 1
	LinkExternal LinkKind = 64
)

// Link names one member of a new-style group.
type Link struct {
	Version       uint8
	Kind          LinkKind
	CreationOrder uint64
	Name          string

	Address uint64 // hard
	Target  string // soft: path; external: object path
	File    string // external
}

func (m *Link) Type() Type { return TypeLink }

func decodeLink(d *binary.Decoder) (*Link, error) {
	l := &Link{Version: d.Uint8()}
	if l.Version != 1 {
		return nil, fmt.Errorf("%w: link version %d", ErrUnsupported, l.Version)
	}
	flags := d.Uint8()
	if flags&0x08 != 0 {
		l.Kind = LinkKind(d.Uint8())
	}
	if flags&0x04 != 0 {
		l.CreationOrder = d.Uint64()
	}
	if flags&0x10 != 0 {
		d.Skip(1) // name character set
	}
	l.Name = string(d.Bytes(int(d.UintN(1 << (flags & 0x03)))))

	switch l.Kind {
	case LinkHard:
		l.Address = d.Offset()
	case LinkSoft:
		l.Target = string(d.Bytes(int(d.Uint16())))
	case LinkExternal:
		ext := binary.NewDecoder(d.Bytes(int(d.Uint16())), d.Config())
		ext.Skip(1) // version and flags
		l.File = ext.CString()
		l.Target = ext.CString()
		if err := ext.Err(); err != nil {
			return nil, fmt.Errorf("external link %q: %w", l.Name, err)
		}
	default:
		return nil, fmt.Errorf("%w: link kind %d", ErrUnsupported, l.Kind)
	}
	return l, nil
}

// LinkInfo describes the link storage of a new-style group.
type LinkInfo struct {
	Version       uint8
	Flags         uint8
	MaxCreation   uint64
	HeapAddress   uint64
	NameIndex     uint64
	CreationIndex uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports whether links live in a fractal heap rather than in
// link messages.
func (m *LinkInfo) Dense(offsetSize int) bool {
	return !binary.Undefined(m.HeapAddress, offsetSize)
}

func decodeLinkInfo(d *binary.Decoder) (*LinkInfo, error) {
	li := &LinkInfo{Version: d.Uint8()}
	if li.Version != 0 {
		return nil, fmt.Errorf("%w: link info version %d", ErrUnsupported, li.Version)
	}
	li.Flags = d.Uint8()
	if li.Flags&0x01 != 0 {
		li.MaxCreation = d.Uint64()
	}
	li.HeapAddress = d.Offset()
	li.NameIndex = d.Offset()
	if li.Flags&0x02 != 0 {
		li.CreationIndex = d.Offset()
	}
	return li, nil
}
