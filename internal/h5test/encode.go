package h5test

import (
	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

var cfg = binary.DefaultConfig()

func encoder() *binary.Encoder { return binary.NewEncoder(cfg) }

// msg is one header message before framing.
type msg struct {
	typ  message.Type
	data []byte
}

func dataspace(dims, maxDims []uint64, legacy bool) []byte {
	e := encoder()
	var flags uint8
	if maxDims != nil {
		flags = 0x01
	}
	if legacy {
		e.Raw([]byte{1, byte(len(dims)), flags})
		e.Zero(5)
	} else {
		kind := message.SpaceSimple
		if len(dims) == 0 {
			kind = message.SpaceScalar
		}
		e.Raw([]byte{2, byte(len(dims)), flags, byte(kind)})
	}
	for _, d := range dims {
		e.Length(d)
	}
	if maxDims != nil {
		for _, d := range maxDims {
			e.Length(d)
		}
	}
	return e.Bytes()
}

func datatype(dt *message.Datatype) []byte {
	e := encoder()
	putType(e, dt)
	return e.Bytes()
}

func putType(e *binary.Encoder, dt *message.Datatype) {
	var bits uint32
	switch dt.Class {
	case message.ClassFixed:
		bits = uint32(dt.Order)
		if dt.Signed {
			bits |= 0x08
		}
	case message.ClassFloat:
		// Implied mantissa bit, sign in the top bit.
		bits = uint32(dt.Order) | 0x20 | (8*dt.Size-1)<<8
	case message.ClassString:
		bits = uint32(dt.Padding)
		if dt.UTF8 {
			bits |= 1 << 4
		}
	case message.ClassVarLen:
		if dt.VarLenString {
			bits = 1 | uint32(dt.Padding)<<8
			if dt.UTF8 {
				bits |= 1 << 12
			}
		}
	}
	e.Uint8(uint8(dt.Class) | 1<<4)
	e.UintN(uint64(bits), 3)
	e.Uint32(dt.Size)
	switch dt.Class {
	case message.ClassFixed:
		e.Uint16(0)
		e.Uint16(uint16(8 * dt.Size))
	case message.ClassFloat:
		e.Uint16(0)
		e.Uint16(uint16(8 * dt.Size))
		if dt.Size == 4 {
			e.Raw([]byte{23, 8, 0, 23})
			e.Uint32(127)
		} else {
			e.Raw([]byte{52, 11, 0, 52})
			e.Uint32(1023)
		}
	case message.ClassVarLen:
		putType(e, dt.Base)
	}
}

func fillValue(v []byte, legacy bool) []byte {
	e := encoder()
	if legacy {
		e.Raw([]byte{2, 2, 2})
		if v == nil {
			e.Uint8(0)
			return e.Bytes()
		}
		e.Uint8(1)
	} else {
		flags := uint8(2 | 2<<2) // late allocation, fill if set
		if v != nil {
			flags |= 0x20
		}
		e.Raw([]byte{3, flags})
		if v == nil {
			return e.Bytes()
		}
	}
	e.Uint32(uint32(len(v)))
	e.Raw(v)
	return e.Bytes()
}

func filterPipeline(filters []message.Filter, legacy bool) []byte {
	e := encoder()
	if legacy {
		e.Raw([]byte{1, byte(len(filters))})
		e.Zero(6)
	} else {
		e.Raw([]byte{2, byte(len(filters))})
	}
	for _, f := range filters {
		e.Uint16(f.ID)
		name := []byte(nil)
		if f.Name != "" {
			name = append([]byte(f.Name), 0)
		}
		if legacy {
			name = pad8(name)
		}
		if legacy || f.ID >= 256 {
			e.Uint16(uint16(len(name)))
		}
		e.Uint16(f.Flags)
		e.Uint16(uint16(len(f.ClientData)))
		if legacy || f.ID >= 256 {
			e.Raw(name)
		}
		for _, v := range f.ClientData {
			e.Uint32(v)
		}
		if legacy && len(f.ClientData)%2 != 0 {
			e.Zero(4)
		}
	}
	return e.Bytes()
}

func pad8(b []byte) []byte {
	if rem := len(b) % 8; rem != 0 {
		b = append(b, make([]byte, 8-rem)...)
	}
	return b
}

func attribute(a *Attr, data []byte, legacy bool) []byte {
	name := append([]byte(a.Name), 0)
	typ := datatype(a.Type)
	space := dataspace(a.Dims, nil, legacy)
	e := encoder()
	if legacy {
		e.Raw([]byte{1, 0})
	} else {
		e.Raw([]byte{3, 0})
	}
	e.Uint16(uint16(len(name)))
	e.Uint16(uint16(len(typ)))
	e.Uint16(uint16(len(space)))
	if legacy {
		e.Raw(pad8(name))
		e.Raw(pad8(typ))
		e.Raw(pad8(space))
	} else {
		e.Uint8(0) // ASCII
		e.Raw(name)
		e.Raw(typ)
		e.Raw(space)
	}
	e.Raw(data)
	return e.Bytes()
}

func hardLink(name string, addr uint64) []byte {
	e := linkHead(name, message.LinkHard)
	e.Offset(addr)
	return e.Bytes()
}

func softLink(name, target string) []byte {
	e := linkHead(name, message.LinkSoft)
	e.Uint16(uint16(len(target)))
	e.Text(target)
	return e.Bytes()
}

func externalLink(name, file, path string) []byte {
	e := linkHead(name, message.LinkExternal)
	e.Uint16(uint16(1 + len(file) + 1 + len(path) + 1))
	e.Uint8(0)
	e.Text(file)
	e.Uint8(0)
	e.Text(path)
	e.Uint8(0)
	return e.Bytes()
}

func linkHead(name string, kind message.LinkKind) *binary.Encoder {
	e := encoder()
	var width uint8 // 1 << width bytes of name length
	if len(name) > 0xFF {
		width = 1
	}
	flags := width
	if kind != message.LinkHard {
		flags |= 0x08
	}
	e.Raw([]byte{1, flags})
	if kind != message.LinkHard {
		e.Uint8(uint8(kind))
	}
	e.UintN(uint64(len(name)), 1<<width)
	e.Text(name)
	return e
}

func linkInfo() []byte {
	e := encoder()
	e.Raw([]byte{0, 0})
	e.Undefined() // fractal heap
	e.Undefined() // name index
	return e.Bytes()
}

func symbolTable(btree, heap uint64) []byte {
	e := encoder()
	e.Offset(btree)
	e.Offset(heap)
	return e.Bytes()
}

// header frames msgs as a version 1 or version 2 object header.
func header(msgs []msg, legacy bool) []byte {
	e := encoder()
	body := encoder()
	if legacy {
		for _, m := range msgs {
			data := pad8(append([]byte(nil), m.data...))
			body.Uint16(uint16(m.typ))
			body.Uint16(uint16(len(data)))
			body.Uint8(0)
			body.Zero(3)
			body.Raw(data)
		}
		e.Raw([]byte{1, 0})
		e.Uint16(uint16(len(msgs)))
		e.Uint32(1)
		e.Uint32(uint32(body.Len()))
		e.Zero(4)
		e.Raw(body.Bytes())
		return e.Bytes()
	}
	for _, m := range msgs {
		body.Uint8(uint8(m.typ))
		body.Uint16(uint16(len(m.data)))
		body.Uint8(0)
		body.Raw(m.data)
	}
	e.Text("OHDR")
	e.Raw([]byte{2, 0x02}) // 4-byte chunk size
	e.Uint32(uint32(body.Len()))
	e.Raw(body.Bytes())
	e.Checksum(0)
	return e.Bytes()
}
