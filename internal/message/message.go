package message

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Type is a header message type.
type Type uint16

const (
	TypeNIL            Type = 0x00
	TypeDataspace      Type = 0x01
	TypeLinkInfo       Type = 0x02
	TypeDatatype       Type = 0x03
	TypeFillValueOld   Type = 0x04
	TypeFillValue      Type = 0x05
	TypeLink           Type = 0x06
	TypeExternalFiles  Type = 0x07
	TypeDataLayout     Type = 0x08
	TypeBogus          Type = 0x09
	TypeGroupInfo      Type = 0x0A
	TypeFilterPipeline Type = 0x0B
	TypeAttribute      Type = 0x0C
	TypeComment        Type = 0x0D
	TypeModTimeOld     Type = 0x0E
	TypeSharedTable    Type = 0x0F
	TypeContinuation   Type = 0x10
	TypeSymbolTable    Type = 0x11
	TypeModTime        Type = 0x12
	TypeBTreeK         Type = 0x13
	TypeDriverInfo     Type = 0x14
	TypeAttributeInfo  Type = 0x15
	TypeRefCount       Type = 0x16
)

// Message flag bits.
const (
	FlagConstant    = 0x01
	FlagShared      = 0x02
	FlagNoShare     = 0x04
	FlagFailUnknown = 0x08
)

// ErrUnsupported is returned for valid encodings this package cannot decode.
var ErrUnsupported = errors.New("message: unsupported encoding")

// Message is implemented by every decoded message.
type Message interface {
	Type() Type
}

// Parse decodes the payload of a message of type typ.
func Parse(typ Type, data []byte, cfg binary.Config) (Message, error) {
	d := binary.NewDecoder(data, cfg)
	var (
		m   Message
		err error
	)
	switch typ {
	case TypeDataspace:
		m, err = decodeDataspace(d)
	case TypeDatatype:
		m, err = decodeDatatype(d)
	case TypeFillValueOld:
		m, err = decodeFillValueOld(d)
	case TypeFillValue:
		m, err = decodeFillValue(d)
	case TypeLinkInfo:
		m, err = decodeLinkInfo(d)
	case TypeLink:
		m, err = decodeLink(d)
	case TypeDataLayout:
		m, err = decodeLayout(d)
	case TypeFilterPipeline:
		m, err = decodeFilterPipeline(d)
	case TypeAttribute:
		m, err = decodeAttribute(d)
	case TypeContinuation:
		m, err = decodeContinuation(d)
	case TypeSymbolTable:
		m, err = decodeSymbolTable(d)
	case TypeModTime:
		m, err = decodeModTime(d)
	default:
		return &Unknown{typ: typ, Data: data}, nil
	}
	if err == nil {
		err = d.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("message %#04x: %w", uint16(typ), err)
	}
	return m, nil
}

// Unknown carries a message type this package does not decode.
type Unknown struct {
	typ  Type
	Data []byte
}

func (m *Unknown) Type() Type { return m.typ }

// Continuation points at the next chunk of an object header.
type Continuation struct {
	Address uint64
	Length  uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

func decodeContinuation(d *binary.Decoder) (*Continuation, error) {
	return &Continuation{Address: d.Offset(), Length: d.Length()}, nil
}

// SymbolTable locates the v1 B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func decodeSymbolTable(d *binary.Decoder) (*SymbolTable, error) {
	return &SymbolTable{BTreeAddress: d.Offset(), HeapAddress: d.Offset()}, nil
}

// ModTime is the object modification time in seconds since the epoch.
type ModTime struct {
	Seconds uint32
}

func (m *ModTime) Type() Type { return TypeModTime }

func decodeModTime(d *binary.Decoder) (*ModTime, error) {
	if v := d.Uint8(); v != 1 {
		return nil, fmt.Errorf("%w: modification time version %d", ErrUnsupported, v)
	}
	d.Skip(3)
	return &ModTime{Seconds: d.Uint32()}, nil
}

// Shared is the payload of a message stored elsewhere in the file.
type Shared struct {
	Version uint8
	Kind    uint8 // 0/2: object header address, 1: shared message heap
	Address uint64
}

// ParseShared decodes a shared-message reference.
func ParseShared(data []byte, cfg binary.Config) (*Shared, error) {
	d := binary.NewDecoder(data, cfg)
	s := &Shared{Version: d.Uint8(), Kind: d.Uint8()}
	switch s.Version {
	case 1:
		d.Skip(6)
		s.Address = d.Offset()
	case 2:
		s.Address = d.Offset()
	case 3:
		if s.Kind != 2 {
			return nil, fmt.Errorf("%w: shared message heap", ErrUnsupported)
		}
		s.Address = d.Offset()
	default:
		return nil, fmt.Errorf("%w: shared message version %d", ErrUnsupported, s.Version)
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
