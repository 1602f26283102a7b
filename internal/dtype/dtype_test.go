package dtype

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	h5bin "github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/heap"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/slab"
)

var (
	int16LE = &message.Datatype{Class: message.ClassFixed, Size: 2, Signed: true}
	int32BE = &message.Datatype{Class: message.ClassFixed, Size: 4, Signed: true, Order: message.BigEndian}
	uint8T  = &message.Datatype{Class: message.ClassFixed, Size: 1}
	f32LE   = &message.Datatype{Class: message.ClassFloat, Size: 4, Signed: true}
	f64BE   = &message.Datatype{Class: message.ClassFloat, Size: 8, Signed: true, Order: message.BigEndian}

	cfg = h5bin.Config{OffsetSize: 8, LengthSize: 8}
)

func hostUint32(b []byte) uint32 {
	if HostOrder == message.BigEndian {
		return binary.BigEndian.Uint32(b)
	}
	return binary.LittleEndian.Uint32(b)
}

func hostUint64(b []byte) uint64 {
	if HostOrder == message.BigEndian {
		return binary.BigEndian.Uint64(b)
	}
	return binary.LittleEndian.Uint64(b)
}

func TestNumeric(t *testing.T) {
	tt, err := Numeric(int32BE)
	require.NoError(t, err)
	assert.Equal(t, slab.Type{Class: slab.ClassInteger, Size: 4, Signed: true}, tt)

	tt, err = Numeric(f64BE)
	require.NoError(t, err)
	assert.Equal(t, slab.ClassFloat, tt.Class)

	enum := &message.Datatype{Class: message.ClassEnum, Size: 1, Base: uint8T}
	tt, err = Numeric(enum)
	require.NoError(t, err)
	assert.Equal(t, 1, tt.Size)

	_, err = Numeric(&message.Datatype{Class: message.ClassString, Size: 8})
	assert.ErrorIs(t, err, ErrNotNumeric)
	_, err = Numeric(&message.Datatype{Class: message.ClassFixed, Size: 3})
	assert.ErrorIs(t, err, ErrNotNumeric)

	assert.True(t, Matches(int16LE, slab.Type{Class: slab.ClassInteger, Size: 2, Signed: true}))
	assert.False(t, Matches(int16LE, slab.Type{Class: slab.ClassInteger, Size: 2}))
}

func TestSwap(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	Swap(buf, 4)
	assert.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, buf)
	Swap(buf, 1)
	assert.Equal(t, []byte{4, 3, 2, 1, 8, 7, 6, 5}, buf)
}

func TestConvertSameType(t *testing.T) {
	src := []byte{0, 0, 0, 1, 0xFF, 0xFF, 0xFF, 0xFE}
	dst := make([]byte, 8)
	mem := slab.Type{Class: slab.ClassInteger, Size: 4, Signed: true}
	require.NoError(t, Convert(dst, mem, src, int32BE))
	assert.Equal(t, int32(1), int32(hostUint32(dst)))
	assert.Equal(t, int32(-2), int32(hostUint32(dst[4:])))
	assert.Equal(t, []byte{0, 0, 0, 1, 0xFF, 0xFF, 0xFF, 0xFE}, src)
}

func TestConvertWidening(t *testing.T) {
	src := []byte{0xFE, 0xFF, 7, 0}
	dst := make([]byte, 16)
	require.NoError(t, Convert(dst, slab.Type{Class: slab.ClassFloat, Size: 8, Signed: true}, src, int16LE))
	assert.Equal(t, -2.0, math.Float64frombits(hostUint64(dst)))
	assert.Equal(t, 7.0, math.Float64frombits(hostUint64(dst[8:])))

	fsrc := binary.BigEndian.AppendUint64(nil, math.Float64bits(-3.75))
	idst := make([]byte, 4)
	require.NoError(t, Convert(idst, slab.Type{Class: slab.ClassInteger, Size: 4, Signed: true}, fsrc, f64BE))
	assert.Equal(t, int32(-3), int32(hostUint32(idst)))
}

func TestConvertSizeMismatch(t *testing.T) {
	err := Convert(make([]byte, 3), slab.Type{Class: slab.ClassInteger, Size: 2}, []byte{1, 2, 3, 4}, int16LE)
	assert.Error(t, err)
	err = Convert(nil, slab.Type{}, []byte{1}, &message.Datatype{Class: message.ClassOpaque, Size: 1})
	assert.ErrorIs(t, err, ErrNotNumeric)
}

type heaps map[heap.ID][]byte

func (h heaps) Object(id heap.ID) ([]byte, error) { return h[id], nil }

func TestValues(t *testing.T) {
	t.Run("numbers", func(t *testing.T) {
		data := binary.LittleEndian.AppendUint32(nil, math.Float32bits(1.5))
		vs, err := Values(f32LE, data, 1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{1.5}, vs)

		vs, err = Values(int16LE, []byte{0xFF, 0xFF, 2, 0}, 2, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{int64(-1), int64(2)}, vs)

		vs, err = Values(uint8T, []byte{200}, 1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{uint64(200)}, vs)
	})
	t.Run("strings", func(t *testing.T) {
		nul := &message.Datatype{Class: message.ClassString, Size: 4}
		vs, err := Values(nul, []byte("ab\x00\x00abcd"), 2, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"ab", "abcd"}, vs)

		space := &message.Datatype{Class: message.ClassString, Size: 4, Padding: message.PadSpace}
		vs, err = Values(space, []byte("K   "), 1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"K"}, vs)
	})
	t.Run("enum and compound", func(t *testing.T) {
		enum := &message.Datatype{Class: message.ClassEnum, Size: 1, Base: uint8T,
			EnumNames: []string{"OFF", "ON"}, EnumValues: [][]byte{{0}, {1}}}
		vs, err := Values(enum, []byte{1, 5}, 2, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"ON", uint64(5)}, vs)

		comp := &message.Datatype{Class: message.ClassCompound, Size: 3, Members: []message.Member{
			{Name: "flag", Offset: 0, Type: uint8T},
			{Name: "n", Offset: 1, Type: int16LE},
		}}
		vs, err = Values(comp, []byte{1, 3, 0}, 1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"flag": uint64(1), "n": int64(3)}, vs[0])
	})
	t.Run("array", func(t *testing.T) {
		arr := &message.Datatype{Class: message.ClassArray, Size: 3, Dims: []uint32{3}, Base: uint8T}
		vs, err := Values(arr, []byte{1, 2, 3}, 1, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []any{uint64(1), uint64(2), uint64(3)}, vs[0])
	})
	t.Run("vlen", func(t *testing.T) {
		str := &message.Datatype{Class: message.ClassVarLen, Size: 16, VarLenString: true, Base: uint8T}
		enc := h5bin.NewEncoder(cfg)
		enc.Uint32(6)
		enc.Offset(0x400)
		enc.Uint32(1)
		enc.Uint32(0)
		enc.Offset(0)
		enc.Uint32(0)
		h := heaps{{Collection: 0x400, Index: 1}: []byte("kelvin")}
		vs, err := Values(str, enc.Bytes(), 2, cfg, h)
		require.NoError(t, err)
		assert.Equal(t, []any{"kelvin", ""}, vs)

		_, err = Values(str, enc.Bytes(), 1, cfg, nil)
		assert.Error(t, err)
	})
	t.Run("short", func(t *testing.T) {
		_, err := Values(int16LE, []byte{1}, 1, cfg, nil)
		assert.Error(t, err)
	})
}
