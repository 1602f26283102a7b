package layout

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/filter"
	"github.com/robert-malhotra/h5slab/internal/message"
)

var cfg = binary.Config{OffsetSize: 8, LengthSize: 8}

const undef = ^uint64(0)

type image []byte

func (im *image) put(addr uint64, b []byte) {
	if need := int(addr) + len(b); need > len(*im) {
		*im = append(*im, make([]byte, need-len(*im))...)
	}
	copy((*im)[addr:], b)
}

func (im image) reader() *binary.Reader {
	return binary.NewReader(bytes.NewReader(im), cfg)
}

var (
	u8  = &message.Datatype{Class: message.ClassFixed, Size: 1}
	i16 = &message.Datatype{Class: message.ClassFixed, Size: 2, Signed: true}
)

func space(dims ...uint64) *message.Dataspace {
	return &message.Dataspace{Kind: message.SpaceSimple, Dims: dims}
}

func seq(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)
	}
	return out
}

func read(t *testing.T, l Layout, start, count []uint64, elem int) []byte {
	t.Helper()
	n := elem
	for _, c := range count {
		n *= int(c)
	}
	dst := make([]byte, n)
	require.NoError(t, l.Read(start, count, dst))
	return dst
}

// tile returns the stored bytes of the chunk at scaled of a 2-D uint8
// dataset whose element (r, c) holds r*cols+c. Positions past the
// extent hold 0xEE.
func tile(dims, chunk, scaled []uint64) []byte {
	var out []byte
	for i := uint64(0); i < chunk[0]; i++ {
		for j := uint64(0); j < chunk[1]; j++ {
			r, c := scaled[0]*chunk[0]+i, scaled[1]*chunk[1]+j
			if r < dims[0] && c < dims[1] {
				out = append(out, byte(r*dims[1]+c))
			} else {
				out = append(out, 0xEE)
			}
		}
	}
	return out
}

func offsets(addrs ...uint64) []byte {
	e := binary.NewEncoder(cfg)
	for _, a := range addrs {
		e.Offset(a)
	}
	return e.Bytes()
}

func chunked(kind message.IndexKind, addr uint64, chunk ...uint64) *message.DataLayout {
	return &message.DataLayout{
		Version:     4,
		Class:       message.LayoutChunked,
		ChunkDims:   chunk,
		ElementSize: 1,
		Index:       message.ChunkIndex{Kind: kind, Address: addr},
	}
}

func TestCompact(t *testing.T) {
	msg := &message.DataLayout{Version: 3, Class: message.LayoutCompact, Data: seq(12)}
	l, err := New(image{}.reader(), msg, space(2, 3), i16, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, message.LayoutCompact, l.Class())

	assert.Equal(t, seq(12), read(t, l, []uint64{0, 0}, []uint64{2, 3}, 2))
	assert.Equal(t, []byte{8, 9, 10, 11}, read(t, l, []uint64{1, 1}, []uint64{1, 2}, 2))

	short := &message.DataLayout{Version: 3, Class: message.LayoutCompact, Data: seq(10)}
	l, err = New(image{}.reader(), short, space(2, 3), i16, nil, nil)
	require.NoError(t, err)
	err = l.Read([]uint64{0, 0}, []uint64{1, 1}, make([]byte, 2))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCompactScalar(t *testing.T) {
	msg := &message.DataLayout{Version: 3, Class: message.LayoutCompact, Data: []byte{0x34, 0x12}}
	l, err := New(image{}.reader(), msg, &message.Dataspace{Kind: message.SpaceScalar}, i16, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, read(t, l, nil, nil, 2))
}

func TestContiguous(t *testing.T) {
	var im image
	im.put(0x100, seq(12))
	msg := &message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: 0x100, Size: 12}
	l, err := New(im.reader(), msg, space(3, 4), u8, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, seq(12), read(t, l, []uint64{0, 0}, []uint64{3, 4}, 1))
	assert.Equal(t, []byte{5, 6, 9, 10}, read(t, l, []uint64{1, 1}, []uint64{2, 2}, 1))
	assert.Equal(t, []byte{}, read(t, l, []uint64{1, 1}, []uint64{0, 2}, 1))
}

func TestContiguousSizeFromExtent(t *testing.T) {
	var im image
	im.put(0x40, seq(6))
	msg := &message.DataLayout{Version: 1, Class: message.LayoutContiguous, Address: 0x40}
	l, err := New(im.reader(), msg, space(6), u8, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, read(t, l, []uint64{4}, []uint64{2}, 1))
}

func TestContiguousUnallocated(t *testing.T) {
	msg := &message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: undef, Size: 8}
	fill := &message.FillValue{Version: 2, Defined: true, Value: []byte{0x01, 0x02}}
	l, err := New(image{}.reader(), msg, space(4), i16, nil, fill)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 1, 2}, read(t, l, []uint64{1}, []uint64{2}, 2))
}

func TestContiguousErrors(t *testing.T) {
	var im image
	im.put(0x100, seq(12))
	msg := &message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: 0x100, Size: 6}
	l, err := New(im.reader(), msg, space(3, 4), u8, nil, nil)
	require.NoError(t, err)

	err = l.Read([]uint64{2, 0}, []uint64{1, 4}, make([]byte, 4))
	assert.ErrorIs(t, err, ErrCorrupt)

	for _, tc := range []struct {
		name         string
		start, count []uint64
		dst          int
	}{
		{"past extent", []uint64{3, 0}, []uint64{1, 1}, 1},
		{"count overflow", []uint64{1, 0}, []uint64{3, 1}, 3},
		{"rank", []uint64{0}, []uint64{1}, 1},
		{"short buffer", []uint64{0, 0}, []uint64{1, 2}, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Read(tc.start, tc.count, make([]byte, tc.dst))
			assert.ErrorIs(t, err, ErrBounds)
		})
	}
}

func TestRuns(t *testing.T) {
	type run struct{ Src, Dst, N uint64 }
	collect := func(dims, start, count []uint64) []run {
		var out []run
		require.NoError(t, runs(dims, start, count, 1, func(src, dst, n uint64) error {
			out = append(out, run{src, dst, n})
			return nil
		}))
		return out
	}
	dims := []uint64{3, 4, 5}

	got := collect(dims, []uint64{1, 0, 0}, []uint64{2, 4, 5})
	if diff := cmp.Diff([]run{{20, 0, 40}}, got); diff != "" {
		t.Errorf("full planes (-want +got):\n%s", diff)
	}
	got = collect(dims, []uint64{1, 1, 0}, []uint64{2, 2, 5})
	if diff := cmp.Diff([]run{{25, 0, 10}, {45, 10, 10}}, got); diff != "" {
		t.Errorf("full rows (-want +got):\n%s", diff)
	}
	got = collect(dims, []uint64{0, 1, 2}, []uint64{1, 2, 2})
	if diff := cmp.Diff([]run{{7, 0, 2}, {12, 2, 2}}, got); diff != "" {
		t.Errorf("partial rows (-want +got):\n%s", diff)
	}
}

func TestFillBytes(t *testing.T) {
	b := make([]byte, 7)
	fillBytes(b, []byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3, 1}, b)
	fillBytes(b, []byte{0, 0})
	assert.Equal(t, make([]byte, 7), b)
}

func TestImplicitIndex(t *testing.T) {
	dims, chunk := []uint64{5, 4}, []uint64{2, 2}
	var im image
	for a := uint64(0); a < 3; a++ {
		for b := uint64(0); b < 2; b++ {
			im.put(0x1000+(a*2+b)*4, tile(dims, chunk, []uint64{a, b}))
		}
	}
	l, err := New(im.reader(), chunked(message.IndexImplicit, 0x1000, chunk...), space(dims...), u8, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, message.LayoutChunked, l.Class())

	assert.Equal(t, seq(20), read(t, l, []uint64{0, 0}, []uint64{5, 4}, 1))
	assert.Equal(t, []byte{5, 6, 9, 10, 13, 14}, read(t, l, []uint64{1, 1}, []uint64{3, 2}, 1))
	assert.Equal(t, []byte{19}, read(t, l, []uint64{4, 3}, []uint64{1, 1}, 1))
}

func TestSingleChunkFiltered(t *testing.T) {
	dims := []uint64{3, 3}
	raw := tile(dims, dims, []uint64{0, 0})
	enc, err := filter.NewDeflate([]uint32{6}).Encode(raw)
	require.NoError(t, err)

	var im image
	im.put(0x200, enc)
	im.put(0x400, raw)
	fp := &message.FilterPipeline{Version: 2, Filters: []message.Filter{{ID: message.FilterDeflate, ClientData: []uint32{6}}}}

	msg := chunked(message.IndexSingleChunk, 0x200, 3, 3)
	msg.Flags = message.ChunkSingleFiltered
	msg.Index.FilteredSize = uint64(len(enc))
	l, err := New(im.reader(), msg, space(dims...), u8, fp, nil)
	require.NoError(t, err)
	assert.Equal(t, seq(9), read(t, l, []uint64{0, 0}, []uint64{3, 3}, 1))

	// A masked filter was skipped when the chunk was written.
	msg = chunked(message.IndexSingleChunk, 0x400, 3, 3)
	msg.Flags = message.ChunkSingleFiltered
	msg.Index.FilteredSize = 9
	msg.Index.FilterMask = 1
	l, err = New(im.reader(), msg, space(dims...), u8, fp, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 7, 8}, read(t, l, []uint64{1, 1}, []uint64{2, 2}, 1))
}

func TestChunkDecodedSize(t *testing.T) {
	enc, err := filter.NewDeflate(nil).Encode(seq(5))
	require.NoError(t, err)
	var im image
	im.put(0x200, enc)
	fp := &message.FilterPipeline{Version: 2, Filters: []message.Filter{{ID: message.FilterDeflate}}}

	msg := chunked(message.IndexSingleChunk, 0x200, 3, 3)
	msg.Flags = message.ChunkSingleFiltered
	msg.Index.FilteredSize = uint64(len(enc))
	l, err := New(im.reader(), msg, space(3, 3), u8, fp, nil)
	require.NoError(t, err)
	err = l.Read([]uint64{0, 0}, []uint64{1, 1}, make([]byte, 1))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMissingFilter(t *testing.T) {
	var im image
	im.put(0x200, seq(4))
	fp := &message.FilterPipeline{Version: 2, Filters: []message.Filter{{ID: 307, Name: "bzip2"}}}
	l, err := New(im.reader(), chunked(message.IndexSingleChunk, 0x200, 2, 2), space(2, 2), u8, fp, nil)
	require.NoError(t, err)
	err = l.Read([]uint64{0, 0}, []uint64{2, 2}, make([]byte, 4))
	assert.ErrorIs(t, err, filter.ErrUnavailable)
}

func TestUnallocatedIndex(t *testing.T) {
	fill := &message.FillValue{Version: 3, Defined: true, Value: []byte{9}}
	l, err := New(image{}.reader(), chunked(message.IndexBTreeV1, undef, 2), space(5), u8, nil, fill)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9}, read(t, l, []uint64{1}, []uint64{3}, 1))

	bm, err := l.(*Chunked).Allocated()
	require.NoError(t, err)
	assert.True(t, bm.IsEmpty())
}

func TestElementSizeMismatch(t *testing.T) {
	_, err := New(image{}.reader(), chunked(message.IndexBTreeV1, undef, 2), space(5), i16, nil, nil)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = New(image{}.reader(), chunked(message.IndexBTreeV1, undef, 2, 2), space(5), u8, nil, nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func fixedArrayHeader(client, size, pageBits uint8, n, dblk uint64) []byte {
	e := binary.NewEncoder(cfg)
	e.Text("FAHD")
	e.Uint8(0)
	e.Uint8(client)
	e.Uint8(size)
	e.Uint8(pageBits)
	e.Length(n)
	e.Offset(dblk)
	e.Checksum(0)
	return e.Bytes()
}

// fixedArrayBlock encodes a data block. With a bitmap every page is
// written after the checksummed prefix, each with its own checksum.
func fixedArrayBlock(client uint8, hdr uint64, bitmap []byte, pages ...[]byte) []byte {
	e := binary.NewEncoder(cfg)
	e.Text("FADB")
	e.Uint8(0)
	e.Uint8(client)
	e.Offset(hdr)
	if bitmap == nil {
		for _, p := range pages {
			e.Raw(p)
		}
		e.Checksum(0)
		return e.Bytes()
	}
	e.Raw(bitmap)
	e.Checksum(0)
	for _, p := range pages {
		start := e.Len()
		e.Raw(p)
		e.Checksum(start)
	}
	return e.Bytes()
}

func TestFixedArray(t *testing.T) {
	dims, chunk := []uint64{4, 4}, []uint64{2, 2}
	var im image
	for k := uint64(0); k < 4; k++ {
		im.put(0x1000+k*4, tile(dims, chunk, []uint64{k / 2, k % 2}))
	}
	im.put(0x100, fixedArrayHeader(0, 8, 10, 4, 0x200))
	im.put(0x200, fixedArrayBlock(0, 0x100, nil, offsets(0x1000, 0x1004, undef, 0x100c)))

	fill := &message.FillValue{Version: 3, Defined: true, Value: []byte{0x55}}
	l, err := New(im.reader(), chunked(message.IndexFixedArray, 0x100, chunk...), space(dims...), u8, nil, fill)
	require.NoError(t, err)

	want := seq(16)
	copy(want[8:10], []byte{0x55, 0x55})
	copy(want[12:14], []byte{0x55, 0x55})
	assert.Equal(t, want, read(t, l, []uint64{0, 0}, []uint64{4, 4}, 1))

	c := l.(*Chunked)
	bm, err := c.Allocated()
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 3}, bm.ToArray())
	assert.Equal(t, uint64(4), c.GridSize())

	chunks, err := c.Chunks()
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []uint64{2, 2}, chunks[2].Offset)
	assert.Equal(t, uint64(0x100c), chunks[2].Address)
}

func TestFixedArrayPaged(t *testing.T) {
	dims, chunk := []uint64{4, 4}, []uint64{2, 2}
	var im image
	for k := uint64(0); k < 4; k++ {
		im.put(0x1000+k*4, tile(dims, chunk, []uint64{k / 2, k % 2}))
	}
	// Two pages of two entries; only the first was ever written.
	im.put(0x100, fixedArrayHeader(0, 8, 1, 4, 0x200))
	im.put(0x200, fixedArrayBlock(0, 0x100, []byte{0x80}, offsets(0x1000, 0x1004), offsets(0x1008, 0x100c)))

	l, err := New(im.reader(), chunked(message.IndexFixedArray, 0x100, chunk...), space(dims...), u8, nil, nil)
	require.NoError(t, err)
	want := seq(16)
	clear(want[8:])
	assert.Equal(t, want, read(t, l, []uint64{0, 0}, []uint64{4, 4}, 1))
}

func TestFixedArrayFilteredEdge(t *testing.T) {
	// Chunks of two along an extent of three; the edge chunk is stored
	// unfiltered.
	full, err := filter.NewDeflate(nil).Encode([]byte{10, 11})
	require.NoError(t, err)
	edge := []byte{12, 0xEE}

	var im image
	im.put(0x1000, full)
	im.put(0x1100, edge)
	width := 2 // chunk size field for two byte chunks
	size := uint8(8 + width + 4)
	e := binary.NewEncoder(cfg)
	e.Offset(0x1000)
	e.UintN(uint64(len(full)), width)
	e.Uint32(0)
	e.Offset(0x1100)
	e.UintN(uint64(len(edge)), width)
	e.Uint32(0)
	im.put(0x100, fixedArrayHeader(clientFiltered, size, 10, 2, 0x200))
	im.put(0x200, fixedArrayBlock(clientFiltered, 0x100, nil, e.Bytes()))

	msg := chunked(message.IndexFixedArray, 0x100, 2)
	msg.Flags = message.ChunkDontFilterPartialEdge
	fp := &message.FilterPipeline{Version: 2, Filters: []message.Filter{{ID: message.FilterDeflate}}}
	l, err := New(im.reader(), msg, space(3), u8, fp, nil, Concurrency(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 11, 12}, read(t, l, []uint64{0}, []uint64{3}, 1))
}

func TestFixedArrayBadChecksum(t *testing.T) {
	var im image
	hdr := fixedArrayHeader(0, 8, 10, 1, 0x200)
	hdr[6] ^= 0xFF
	im.put(0x100, hdr)
	l, err := New(im.reader(), chunked(message.IndexFixedArray, 0x100, 2), space(2), u8, nil, nil)
	require.NoError(t, err)
	err = l.Read([]uint64{0}, []uint64{2}, make([]byte, 2))
	assert.ErrorIs(t, err, binary.ErrChecksum)
}

func eaBlock(sig string, hdr uint64, offsetBytes int, body ...[]byte) []byte {
	e := binary.NewEncoder(cfg)
	e.Text(sig)
	e.Uint8(0)
	e.Uint8(0)
	e.Offset(hdr)
	if sig != "EAIB" {
		e.Zero(offsetBytes)
	}
	for _, b := range body {
		e.Raw(b)
	}
	e.Checksum(0)
	return e.Bytes()
}

func TestExtensibleArray(t *testing.T) {
	// Ten one-byte chunks along an unlimited axis. Two entries sit in the
	// index block, the next six in its two data blocks, the rest in the
	// first data block of the third super block.
	var im image
	for k := uint64(0); k < 12; k++ {
		im.put(0x2000+k, []byte{byte(k * 3)})
	}
	const hdr, iblk, d0, d1, s2, d2 = 0x100, 0x200, 0x400, 0x500, 0x600, 0x700

	h := binary.NewEncoder(cfg)
	h.Text("EAHD")
	h.Uint8(0)
	h.Uint8(0)  // client
	h.Uint8(8)  // entry size
	h.Uint8(8)  // max bits
	h.Uint8(2)  // index block entries
	h.Uint8(2)  // data block min entries
	h.Uint8(2)  // super block min pointers
	h.Uint8(10) // page bits
	for i := 0; i < 4; i++ {
		h.Length(0)
	}
	h.Length(10)
	h.Length(0)
	h.Offset(iblk)
	h.Checksum(0)
	im.put(hdr, h.Bytes())

	// Eight super blocks; the first two are held by the index block.
	im.put(iblk, eaBlock("EAIB", hdr, 0,
		offsets(0x2000, 0x2001),
		offsets(d0, d1),
		offsets(s2, undef, undef, undef, undef, undef)))

	im.put(d0, eaBlock("EADB", hdr, 1, offsets(0x2002, 0x2003)))
	im.put(d1, eaBlock("EADB", hdr, 1, offsets(0x2004, undef, 0x2006, 0x2007)))
	im.put(s2, eaBlock("EASB", hdr, 1, offsets(d2, undef)))
	im.put(d2, eaBlock("EADB", hdr, 1, offsets(0x2008, 0x2009, 0x200a, 0x200b)))

	sp := &message.Dataspace{Kind: message.SpaceSimple, Dims: []uint64{10}, MaxDims: []uint64{message.Unlimited}}
	l, err := New(im.reader(), chunked(message.IndexExtensible, hdr, 1), sp, u8, nil, nil)
	require.NoError(t, err)

	want := make([]byte, 10)
	for k := range want {
		want[k] = byte(k * 3)
	}
	want[5] = 0
	assert.Equal(t, want, read(t, l, []uint64{0}, []uint64{10}, 1))
	assert.Equal(t, want[7:], read(t, l, []uint64{7}, []uint64{3}, 1))

	bm, err := l.(*Chunked).Allocated()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), bm.GetCardinality())
}

func TestSuperBlockTable(t *testing.T) {
	h := &eaHeader{maxBits: 8, dblkMin: 2}
	type row struct{ N, Elems, Start uint64 }
	var got []row
	for _, s := range h.supers() {
		got = append(got, row{s.ndblks, s.elems, s.start})
	}
	want := []row{
		{1, 2, 0}, {1, 4, 2}, {2, 4, 6}, {2, 8, 14},
		{4, 8, 30}, {4, 16, 62}, {8, 16, 126}, {8, 32, 254},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("super blocks (-want +got):\n%s", diff)
	}
}

func TestArrayGrid(t *testing.T) {
	c := &Chunked{
		dims:    []uint64{4, 6},
		maxDims: []uint64{8, message.Unlimited},
		chunk:   []uint64{2, 3},
		grid:    []uint64{2, 2},
	}
	g := c.arrayGrid(1)
	assert.Equal(t, uint64(5), g.linear([]uint64{1, 1}))
	assert.Equal(t, uint64(3), g.linear([]uint64{3, 0}))
	assert.Equal(t, []uint64{2, 1}, g.scaled(6))
	for k := uint64(0); k < 8; k++ {
		assert.Equal(t, k, g.linear(g.scaled(k)))
	}

	c.maxDims = []uint64{8, 12}
	g = c.arrayGrid(-1)
	assert.Equal(t, uint64(6), g.linear([]uint64{1, 2}))
	assert.Equal(t, []uint64{3, 3}, g.scaled(15))
}
