package dtype

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sys/cpu"

	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/slab"
)

// ErrNotNumeric is returned for datatypes with no slab.Type equivalent.
var ErrNotNumeric = errors.New("dtype: not a numeric type")

// HostOrder is the byte order of this machine.
var HostOrder = hostOrder()

func hostOrder() message.Order {
	if cpu.IsBigEndian {
		return message.BigEndian
	}
	return message.LittleEndian
}

// Numeric returns the in-memory type matching dt.
func Numeric(dt *message.Datatype) (slab.Type, error) {
	switch dt.Class {
	case message.ClassFixed:
		switch dt.Size {
		case 1, 2, 4, 8:
			return slab.Type{Class: slab.ClassInteger, Size: int(dt.Size), Signed: dt.Signed}, nil
		}
	case message.ClassFloat:
		switch dt.Size {
		case 4, 8:
			return slab.Type{Class: slab.ClassFloat, Size: int(dt.Size), Signed: true}, nil
		}
	case message.ClassEnum:
		if dt.Base != nil {
			return Numeric(dt.Base)
		}
	}
	return slab.Type{}, fmt.Errorf("%w: %s", ErrNotNumeric, dt)
}

// Matches reports whether elements of dt can be copied into mem with at
// most a byte swap.
func Matches(dt *message.Datatype, mem slab.Type) bool {
	t, err := Numeric(dt)
	return err == nil && t == mem
}

// Swap reverses the byte order of each size-byte element of buf in place.
func Swap(buf []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(buf); i += size {
		e := buf[i : i+size]
		for a, b := 0, size-1; a < b; a, b = a+1, b-1 {
			e[a], e[b] = e[b], e[a]
		}
	}
}

// Convert writes the n stored elements of src, of type dt, into dst as
// mem elements in host order.
func Convert(dst []byte, mem slab.Type, src []byte, dt *message.Datatype) error {
	from, err := Numeric(dt)
	if err != nil {
		return err
	}
	n := len(src) / from.Size
	if len(src)%from.Size != 0 || len(dst) != n*mem.Size {
		return fmt.Errorf("dtype: converting %d bytes of %s into %d bytes of %d-byte elements",
			len(src), dt, len(dst), mem.Size)
	}
	if from == mem {
		copy(dst, src)
		if dt.Order != HostOrder {
			Swap(dst, mem.Size)
		}
		return nil
	}

	order := dt.Order
	for i := 0; i < n; i++ {
		v := read(src[i*from.Size:(i+1)*from.Size], from, order)
		write(dst[i*mem.Size:(i+1)*mem.Size], mem, v)
	}
	return nil
}

// number carries one value through a conversion.
type number struct {
	i     int64
	u     uint64
	f     float64
	float bool
}

func load(b []byte, order message.Order) uint64 {
	var v uint64
	if order == message.BigEndian {
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func store(b []byte, v uint64) {
	if HostOrder == message.BigEndian {
		for i := len(b) - 1; i >= 0; i-- {
			b[i] = byte(v)
			v >>= 8
		}
		return
	}
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}

func read(b []byte, t slab.Type, order message.Order) number {
	raw := load(b, order)
	if t.Class == slab.ClassFloat {
		var f float64
		if t.Size == 4 {
			f = float64(math.Float32frombits(uint32(raw)))
		} else {
			f = math.Float64frombits(raw)
		}
		return number{f: f, float: true}
	}
	if t.Signed {
		shift := 64 - 8*uint(t.Size)
		i := int64(raw<<shift) >> shift
		return number{i: i, u: uint64(i), f: float64(i)}
	}
	return number{i: int64(raw), u: raw, f: float64(raw)}
}

// write stores v as t. Integer targets truncate floats toward zero and
// wrap out-of-range integers.
func write(b []byte, t slab.Type, v number) {
	if t.Class == slab.ClassFloat {
		if t.Size == 4 {
			store(b, uint64(math.Float32bits(float32(v.f))))
		} else {
			store(b, math.Float64bits(v.f))
		}
		return
	}
	bits := v.u
	if v.float {
		if t.Signed || v.f < 0 {
			bits = uint64(int64(v.f))
		} else {
			bits = uint64(v.f)
		}
	}
	store(b, bits)
}
