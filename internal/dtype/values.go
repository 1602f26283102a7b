package dtype

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/heap"
	"github.com/robert-malhotra/h5slab/internal/message"
)

// HeapReader resolves variable-length data.
type HeapReader interface {
	Object(id heap.ID) ([]byte, error)
}

// Values decodes n elements of dt from data. Integers come back as
// int64 or uint64, floats as float64, text as string, enums as their
// member name, compounds as map[string]any and arrays and sequences as
// []any. Other classes come back as []byte. heaps may be nil when dt
// has no variable-length parts.
func Values(dt *message.Datatype, data []byte, n int, cfg binary.Config, heaps HeapReader) ([]any, error) {
	size := int(dt.Size)
	if size <= 0 || len(data) < n*size {
		return nil, fmt.Errorf("dtype: %d bytes for %d elements of %s", len(data), n, dt)
	}
	out := make([]any, n)
	for i := range out {
		v, err := value(dt, data[i*size:(i+1)*size], cfg, heaps)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func value(dt *message.Datatype, b []byte, cfg binary.Config, heaps HeapReader) (any, error) {
	switch dt.Class {
	case message.ClassFixed, message.ClassFloat:
		t, err := Numeric(dt)
		if err != nil {
			return nil, err
		}
		v := read(b, t, dt.Order)
		switch {
		case v.float:
			return v.f, nil
		case t.Signed:
			return v.i, nil
		}
		return v.u, nil
	case message.ClassBitfield:
		return load(b, dt.Order), nil
	case message.ClassString:
		return trim(b, dt.Padding), nil
	case message.ClassEnum:
		for i, ev := range dt.EnumValues {
			if bytes.Equal(ev, b) {
				return dt.EnumNames[i], nil
			}
		}
		return value(dt.Base, b, cfg, heaps)
	case message.ClassCompound:
		m := make(map[string]any, len(dt.Members))
		for _, mem := range dt.Members {
			end := mem.Offset + uint64(mem.Type.Size)
			if end > uint64(len(b)) {
				return nil, fmt.Errorf("member %q past element end", mem.Name)
			}
			v, err := value(mem.Type, b[mem.Offset:end], cfg, heaps)
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", mem.Name, err)
			}
			m[mem.Name] = v
		}
		return m, nil
	case message.ClassArray:
		count := 1
		for _, d := range dt.Dims {
			count *= int(d)
		}
		return Values(dt.Base, b, count, cfg, heaps)
	case message.ClassVarLen:
		return varLen(dt, b, cfg, heaps)
	}
	return append([]byte(nil), b...), nil
}

func varLen(dt *message.Datatype, b []byte, cfg binary.Config, heaps HeapReader) (any, error) {
	d := binary.NewDecoder(b, cfg)
	count := int(d.Uint32())
	id := heap.ParseID(d)
	if err := d.Err(); err != nil {
		return nil, err
	}
	if count == 0 || id.Collection == 0 {
		if dt.VarLenString {
			return "", nil
		}
		return []any{}, nil
	}
	if heaps == nil {
		return nil, fmt.Errorf("dtype: variable-length data without a heap")
	}
	obj, err := heaps.Object(id)
	if err != nil {
		return nil, err
	}
	if dt.VarLenString {
		if count > len(obj) {
			count = len(obj)
		}
		return trim(obj[:count], dt.Padding), nil
	}
	return Values(dt.Base, obj, count, cfg, heaps)
}

func trim(b []byte, pad message.Padding) string {
	if pad == message.PadSpace {
		return string(bytes.TrimRight(b, " "))
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
