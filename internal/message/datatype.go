package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Class is a datatype class.
type Class uint8

const (
	ClassFixed     Class = 0
	ClassFloat     Class = 1
	ClassTime      Class = 2
	ClassString    Class = 3
	ClassBitfield  Class = 4
	ClassOpaque    Class = 5
	ClassCompound  Class = 6
	ClassReference Class = 7
	ClassEnum      Class = 8
	ClassVarLen    Class = 9
	ClassArray     Class = 10
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "vlen", "array",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// Order is the byte order of a numeric type.
type Order uint8

const (
	LittleEndian Order = 0
	BigEndian    Order = 1
)

// Padding is the termination of a string type.
type Padding uint8

const (
	PadNullTerm Padding = 0
	PadNull     Padding = 1
	PadSpace    Padding = 2
)

// Datatype describes the element type of a dataset or attribute.
type Datatype struct {
	Version uint8
	Class   Class
	Size    uint32

	// Numeric classes.
	Order     Order
	Signed    bool
	BitOffset uint16
	Precision uint16

	// Strings, fixed or variable length.
	Padding Padding
	UTF8    bool

	// VarLenString distinguishes a variable-length string from a sequence.
	VarLenString bool

	// Base is the parent type of enum, vlen and array types.
	Base *Datatype

	Members    []Member // compound
	Dims       []uint32 // array
	EnumNames  []string
	EnumValues [][]byte
}

// Member is one field of a compound type.
type Member struct {
	Name   string
	Offset uint64
	Type   *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

// IsNumeric reports whether the type is an integer or float.
func (m *Datatype) IsNumeric() bool {
	return m.Class == ClassFixed || m.Class == ClassFloat
}

// IsString reports whether the type holds text.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.VarLenString)
}

func (m *Datatype) String() string {
	switch m.Class {
	case ClassFixed:
		if m.Signed {
			return fmt.Sprintf("int%d", m.Size*8)
		}
		return fmt.Sprintf("uint%d", m.Size*8)
	case ClassFloat:
		return fmt.Sprintf("float%d", m.Size*8)
	case ClassString:
		return fmt.Sprintf("string[%d]", m.Size)
	case ClassVarLen:
		if m.VarLenString {
			return "vlen string"
		}
		if m.Base != nil {
			return "vlen " + m.Base.String()
		}
	case ClassArray:
		if m.Base != nil {
			return fmt.Sprintf("%v %s", m.Dims, m.Base)
		}
	case ClassEnum:
		if m.Base != nil {
			return "enum " + m.Base.String()
		}
	}
	return m.Class.String()
}

func decodeDatatype(d *binary.Decoder) (*Datatype, error) {
	dt := &Datatype{}
	head := d.Uint8()
	dt.Class = Class(head & 0x0F)
	dt.Version = head >> 4
	bits := uint32(d.UintN(3))
	dt.Size = d.Uint32()

	switch dt.Class {
	case ClassFixed, ClassBitfield:
		dt.Order = Order(bits & 0x01)
		dt.Signed = bits&0x08 != 0
		dt.BitOffset = d.Uint16()
		dt.Precision = d.Uint16()
	case ClassFloat:
		dt.Order = Order(bits & 0x01)
		if bits&0x40 != 0 {
			return nil, fmt.Errorf("%w: VAX float order", ErrUnsupported)
		}
		dt.Signed = true
		dt.BitOffset = d.Uint16()
		dt.Precision = d.Uint16()
		d.Skip(8) // exponent and mantissa layout, bias
	case ClassTime:
		dt.Order = Order(bits & 0x01)
		dt.Precision = d.Uint16()
	case ClassString:
		dt.Padding = Padding(bits & 0x0F)
		dt.UTF8 = (bits>>4)&0x0F == 1
	case ClassOpaque:
		d.Skip(int(bits & 0xFF))
	case ClassReference:
	case ClassCompound:
		n := int(bits & 0xFFFF)
		for i := 0; i < n && d.Err() == nil; i++ {
			m, err := decodeMember(d, dt.Version, dt.Size)
			if err != nil {
				return nil, fmt.Errorf("compound member %d: %w", i, err)
			}
			dt.Members = append(dt.Members, m)
		}
	case ClassEnum:
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("enum base: %w", err)
		}
		dt.Base = base
		n := int(bits & 0xFFFF)
		for i := 0; i < n; i++ {
			dt.EnumNames = append(dt.EnumNames, decodeName(d, dt.Version))
		}
		for i := 0; i < n; i++ {
			dt.EnumValues = append(dt.EnumValues, d.Bytes(int(base.Size)))
		}
	case ClassVarLen:
		dt.VarLenString = bits&0x0F == 1
		dt.Padding = Padding((bits >> 8) & 0x0F)
		dt.UTF8 = (bits>>12)&0x0F == 1
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("vlen base: %w", err)
		}
		dt.Base = base
	case ClassArray:
		rank := int(d.Uint8())
		if dt.Version < 3 {
			d.Skip(3)
		}
		dt.Dims = make([]uint32, rank)
		for i := range dt.Dims {
			dt.Dims[i] = d.Uint32()
		}
		if dt.Version < 3 {
			d.Skip(4 * rank) // permutation
		}
		base, err := decodeDatatype(d)
		if err != nil {
			return nil, fmt.Errorf("array base: %w", err)
		}
		dt.Base = base
	default:
		return nil, fmt.Errorf("datatype class %d", dt.Class)
	}
	return dt, d.Err()
}

// decodeName reads a member name: NUL-padded to eight bytes before
// version 3, bare NUL-terminated after.
func decodeName(d *binary.Decoder, version uint8) string {
	start := d.Pos()
	name := d.CString()
	if version < 3 {
		if used := d.Pos() - start; used%8 != 0 {
			d.Skip(8 - used%8)
		}
	}
	return name
}

func decodeMember(d *binary.Decoder, version uint8, size uint32) (Member, error) {
	m := Member{Name: decodeName(d, version)}
	switch version {
	case 1:
		m.Offset = uint64(d.Uint32())
		d.Skip(1 + 3 + 4 + 4 + 16) // rank, reserved, permutation, reserved, dims
	case 2:
		m.Offset = uint64(d.Uint32())
	default:
		m.Offset = d.UintN(binary.EncodedSize(uint64(size)))
	}
	t, err := decodeDatatype(d)
	if err != nil {
		return m, err
	}
	m.Type = t
	return m, nil
}
