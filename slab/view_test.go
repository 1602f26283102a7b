package slab_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/slab"
)

type celsius float32

func TestTypeOf(t *testing.T) {
	assert.Equal(t, slab.Type{Class: slab.ClassInteger, Size: 1, Signed: true}, slab.TypeOf[int8]())
	assert.Equal(t, slab.Type{Class: slab.ClassInteger, Size: 2, Signed: false}, slab.TypeOf[uint16]())
	assert.Equal(t, slab.Type{Class: slab.ClassInteger, Size: 8, Signed: true}, slab.TypeOf[int64]())
	assert.Equal(t, slab.Type{Class: slab.ClassFloat, Size: 4, Signed: true}, slab.TypeOf[float32]())
	assert.Equal(t, slab.Type{Class: slab.ClassFloat, Size: 8, Signed: true}, slab.TypeOf[float64]())
	assert.Equal(t, slab.TypeOf[float32](), slab.TypeOf[celsius]())
}

func TestViewSimple(t *testing.T) {
	v := slab.NewView[uint8](3, 4)
	assert.True(t, v.Simple())
	assert.Equal(t, 12, v.Len())
	assert.Equal(t, []int{4, 1}, v.Strides())

	row, err := v.Sub([]uint64{1, 0}, []uint64{1, 4})
	require.NoError(t, err)
	assert.True(t, row.Simple(), "a full row is contiguous")
	assert.Equal(t, 4, row.Offset())

	col, err := v.Sub([]uint64{0, 1}, []uint64{3, 1})
	require.NoError(t, err)
	assert.False(t, col.Simple())

	_, err = v.Sub([]uint64{2, 0}, []uint64{2, 4})
	require.ErrorIs(t, err, slab.ErrMemSelection)
	_, err = v.Sub([]uint64{math.MaxUint64, 0}, []uint64{2, 4})
	require.ErrorIs(t, err, slab.ErrMemSelection, "origin wraps around")
	_, err = v.Sub([]uint64{0}, []uint64{1})
	require.ErrorIs(t, err, slab.ErrDimensionMismatch)
}

func TestViewOf(t *testing.T) {
	data := []int16{0, 1, 2, 3, 4, 5, 6, 7}
	// Every other element of a 2x4 matrix.
	v, err := slab.ViewOf(data, []uint64{2, 2}, []int{4, 2}, 0)
	require.NoError(t, err)
	assert.False(t, v.Simple())
	assert.Equal(t, []int16{0, 2, 4, 6}, v.Values())

	v.Set(42, 1, 1)
	assert.Equal(t, int16(42), data[6])

	_, err = slab.ViewOf(data, []uint64{3, 3}, []int{4, 1}, 0)
	require.ErrorIs(t, err, slab.ErrMemSelection)
	_, err = slab.ViewOf(data, []uint64{2}, []int{4, 1}, 0)
	require.ErrorIs(t, err, slab.ErrDimensionMismatch)
}

func TestViewAtPanics(t *testing.T) {
	v := slab.NewView[float64](2, 2)
	assert.Panics(t, func() { v.At(2, 0) })
	assert.Panics(t, func() { v.At(0) })
}

func TestParseFallback(t *testing.T) {
	f, ok := slab.ParseFallback("copy")
	assert.True(t, ok)
	assert.Equal(t, slab.FallbackCopy, f)

	f, ok = slab.ParseFallback("")
	assert.True(t, ok)
	assert.Equal(t, slab.FallbackRebind, f)

	_, ok = slab.ParseFallback("scatter")
	assert.False(t, ok)
}
