package filter

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	h5bin "github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

func sample(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i / 7)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Filter{
		NewDeflate([]uint32{6}),
		NewShuffle([]uint32{4}),
		Fletcher32{},
		NewLZ4(nil),
		NewLZ4([]uint32{100}),
		NewZstd(nil),
		NewZstd([]uint32{9}),
	} {
		for _, n := range []int{0, 1, 37, 4096} {
			in := sample(n)
			enc, err := f.Encode(in)
			require.NoError(t, err, "filter %d", f.ID())
			out, err := f.Decode(enc)
			require.NoError(t, err, "filter %d", f.ID())
			assert.True(t, bytes.Equal(in, out), "filter %d, %d bytes", f.ID(), n)
		}
	}
}

func TestShuffleLayout(t *testing.T) {
	s := NewShuffle([]uint32{2})
	out, err := s.Encode([]byte{1, 2, 3, 4, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 5, 2, 4, 6, 7}, out)
}

func TestFletcher32(t *testing.T) {
	data := []byte("abcdefgh")
	enc, err := Fletcher32{}.Encode(data)
	require.NoError(t, err)
	require.Len(t, enc, len(data)+4)

	swapped := append([]byte(nil), enc...)
	sum := binary.LittleEndian.Uint32(enc[len(data):])
	binary.BigEndian.PutUint32(swapped[len(data):], sum)
	out, err := Fletcher32{}.Decode(swapped)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	enc[0] ^= 0xFF
	_, err = Fletcher32{}.Decode(enc)
	assert.ErrorIs(t, err, h5bin.ErrChecksum)

	_, err = Fletcher32{}.Decode([]byte{1})
	assert.Error(t, err)
}

func TestLZ4StoredBlocks(t *testing.T) {
	// Two incompressible blocks stored verbatim.
	raw := []byte{9, 8, 7, 6, 5}
	enc := binary.BigEndian.AppendUint64(nil, 5)
	enc = binary.BigEndian.AppendUint32(enc, 3)
	enc = binary.BigEndian.AppendUint32(enc, 3)
	enc = append(enc, raw[:3]...)
	enc = binary.BigEndian.AppendUint32(enc, 2)
	enc = append(enc, raw[3:]...)
	out, err := NewLZ4(nil).Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = NewLZ4(nil).Decode(enc[:len(enc)-1])
	assert.Error(t, err)
}

func TestPipeline(t *testing.T) {
	fp := &message.FilterPipeline{Filters: []message.Filter{
		{ID: message.FilterShuffle, ClientData: []uint32{4}},
		{ID: message.FilterDeflate, ClientData: []uint32{4}},
		{ID: message.FilterFletcher32},
	}}
	p := NewPipeline(fp)
	require.Equal(t, 3, p.Len())
	in := sample(400)
	enc, err := p.Encode(in)
	require.NoError(t, err)
	out, err := p.Decode(enc, 0)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// A chunk written without its deflate stage.
	partial, err := Of(NewShuffle([]uint32{4}), Fletcher32{}).Encode(in)
	require.NoError(t, err)
	out, err = p.Decode(partial, 1<<1)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	assert.True(t, NewPipeline(nil).Empty())
}

func TestUnavailableFilter(t *testing.T) {
	p := NewPipeline(&message.FilterPipeline{Filters: []message.Filter{
		{ID: message.FilterSZIP, Flags: message.FilterOptional},
	}})
	_, err := p.Decode([]byte{1, 2}, 0)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "szip")

	out, err := p.Decode([]byte{1, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, out)
}

func TestName(t *testing.T) {
	assert.Equal(t, "deflate", Name(message.Filter{ID: message.FilterDeflate}))
	assert.Equal(t, "zstd", Name(message.Filter{ID: message.FilterZstd, Name: "Zstandard"}))
	assert.Equal(t, "bitshuffle", Name(message.Filter{ID: 32008, Name: "bitshuffle"}))
	assert.Equal(t, "filter-307", Name(message.Filter{ID: 307}))
}
