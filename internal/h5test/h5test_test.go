package h5test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/heap"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/internal/object"
	"github.com/robert-malhotra/h5slab/internal/superblock"
)

func open(t *testing.T, f *File) (*superblock.Superblock, *binary.Reader) {
	t.Helper()
	b, err := f.Bytes()
	require.NoError(t, err)
	sb, err := superblock.Read(bytes.NewReader(b))
	require.NoError(t, err)
	return sb, binary.NewReader(bytes.NewReader(b[sb.Base:]), sb.Config())
}

func TestModernRoot(t *testing.T) {
	f := New()
	f.UserBlock = 512
	f.Root.Attr(Scalar("version", int32(3)))
	f.Root.Dataset("x", Of([]uint64{2, 3}, []float32{1, 2, 3, 4, 5, 6}))
	f.Root.SoftLink("alias", "/x")
	f.Root.ExternalLink("far", "other.h5", "/y")

	sb, r := open(t, f)
	assert.Equal(t, uint8(2), sb.Version)
	assert.Equal(t, uint64(512), sb.Base)

	root, err := object.Read(r, sb.RootGroupAddress)
	require.NoError(t, err)
	assert.True(t, root.IsGroup())
	links := root.Links()
	require.Len(t, links, 3)
	assert.Equal(t, message.LinkSoft, links[1].Kind)
	assert.Equal(t, "/x", links[1].Target)
	assert.Equal(t, message.LinkExternal, links[2].Kind)
	assert.Equal(t, "other.h5", links[2].File)
	assert.Equal(t, "/y", links[2].Target)
	require.NotNil(t, root.Attribute("version"))

	x, err := object.Read(r, links[0].Address)
	require.NoError(t, err)
	require.True(t, x.IsDataset())
	assert.Equal(t, []uint64{2, 3}, x.Dataspace().Dims)
	assert.Equal(t, "float32", x.Datatype().String())
	l := x.DataLayout()
	assert.Equal(t, message.LayoutContiguous, l.Class)
	data, err := r.Bytes(l.Address, int(l.Size))
	require.NoError(t, err)
	assert.Equal(t, Bytes([]float32{1, 2, 3, 4, 5, 6}), data)
}

func TestLegacyGroups(t *testing.T) {
	f := NewLegacy()
	g := f.Root.Group("b")
	g.Dataset("v", Of([]uint64{4}, []int16{1, 2, 3, 4})).Attr(Text("units", "m"))
	f.Root.Group("a")
	f.Root.SoftLink("c", "/b/v")

	sb, r := open(t, f)
	assert.Equal(t, uint8(0), sb.Version)
	names, err := heap.ReadLocal(r, sb.RootHeapAddress)
	require.NoError(t, err)
	entries, err := btree.GroupEntries(r, sb.RootBTreeAddress, names)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "b", entries[1].Name)
	assert.True(t, entries[2].Soft())
	assert.Equal(t, "/b/v", entries[2].Target)

	b, err := object.Read(r, entries[1].Address)
	require.NoError(t, err)
	st := b.SymbolTable()
	require.NotNil(t, st)
	names, err = heap.ReadLocal(r, st.HeapAddress)
	require.NoError(t, err)
	sub, err := btree.GroupEntries(r, st.BTreeAddress, names)
	require.NoError(t, err)
	require.Len(t, sub, 1)

	v, err := object.Read(r, sub[0].Address)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v.Version)
	a := v.Attribute("units")
	require.NotNil(t, a)
	assert.Equal(t, []byte("m\x00"), a.Data)
}

func TestChunkIndexes(t *testing.T) {
	values := make([]int32, 5*7)
	for i := range values {
		values[i] = int32(i)
	}
	for _, tc := range []struct {
		name   string
		legacy bool
		index  message.IndexKind
	}{
		{"btree", true, message.IndexBTreeV1},
		{"single", false, message.IndexSingleChunk},
		{"implicit", false, message.IndexImplicit},
		{"fixed array", false, message.IndexFixedArray},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := New()
			f.Legacy = tc.legacy
			chunk := []uint64{2, 3}
			if tc.index == message.IndexSingleChunk {
				chunk = []uint64{5, 7}
			}
			f.Root.Dataset("d", Of([]uint64{5, 7}, values)).Chunked(tc.index, chunk...)

			sb, r := open(t, f)
			var addr uint64
			if tc.legacy {
				names, err := heap.ReadLocal(r, sb.RootHeapAddress)
				require.NoError(t, err)
				entries, err := btree.GroupEntries(r, sb.RootBTreeAddress, names)
				require.NoError(t, err)
				addr = entries[0].Address
			} else {
				root, err := object.Read(r, sb.RootGroupAddress)
				require.NoError(t, err)
				addr = root.Links()[0].Address
			}
			h, err := object.Read(r, addr)
			require.NoError(t, err)
			l := h.DataLayout()
			assert.Equal(t, message.LayoutChunked, l.Class)
			assert.Equal(t, tc.index, l.Index.Kind)
			assert.Equal(t, chunk, l.ChunkDims)
			assert.Equal(t, uint32(4), l.ElementSize)
		})
	}
}

func TestErrors(t *testing.T) {
	f := NewLegacy()
	f.Root.ExternalLink("x", "a.h5", "/b")
	_, err := f.Bytes()
	assert.Error(t, err)

	f = New()
	f.Root.Dataset("d", Of([]uint64{4}, []int8{1, 2, 3, 4})).
		Chunked(message.IndexImplicit, 2).
		Filter(Deflate(1))
	_, err = f.Bytes()
	assert.ErrorIs(t, err, errIndex)

	f = New()
	f.Root.Dataset("d", Of([]uint64{4}, []int8{1, 2, 3}))
	_, err = f.Bytes()
	assert.Error(t, err)

	f = New()
	f.UserBlock = 100
	_, err = f.Bytes()
	assert.Error(t, err)
}

func TestExtract(t *testing.T) {
	raw := Bytes([]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8})
	assert.Equal(t, []byte{2, 0, 5, 0}, extract(raw, []uint64{3, 3}, []uint64{0, 1}, []uint64{2, 2}, 1))
	assert.Equal(t, []byte{8, 0, 0, 0}, extract(raw, []uint64{3, 3}, []uint64{1, 1}, []uint64{2, 2}, 1))
}

func TestImageBlocks(t *testing.T) {
	f := New()
	f.UserBlock = 512
	f.Root.Dataset("d", Of([]uint64{4, 4}, make([]uint16, 16))).Chunked(message.IndexFixedArray, 2, 2)
	im, err := f.Encode()
	require.NoError(t, err)

	sb := im.Find(TagSuperblock)
	require.Len(t, sb, 1)
	assert.Equal(t, uint64(512), sb[0].Addr)
	assert.Len(t, im.Find(TagChunk), 4)
	assert.Len(t, im.Find(TagFixedArrayHeader), 1)
	assert.Len(t, im.Find(TagHeader), 2)

	chunk := im.Find(TagChunk)[1]
	before := im.Data[chunk.Addr]
	require.NoError(t, im.Corrupt(TagChunk, 1, 0))
	assert.Equal(t, before^0xFF, im.Data[chunk.Addr])
	assert.Error(t, im.Corrupt(TagChunk, 9, 0))
}

func TestSpaceValidate(t *testing.T) {
	s := space{e: encoder()}
	s.alloc("a", make([]byte, 12))
	s.alloc("b", make([]byte, 8))
	require.NoError(t, s.validate(24))
	assert.Equal(t, uint64(16), s.blocks[1].Addr)
	assert.Error(t, s.validate(20))

	s.blocks = append(s.blocks, Block{Addr: 4, Size: 4, Tag: "c"})
	assert.Error(t, s.validate(24))
}
