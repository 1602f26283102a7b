package superblock

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

func v2Block(version uint8, root uint64) []byte {
	e := binary.NewEncoder(binary.DefaultConfig())
	e.Raw(Signature)
	e.Uint8(version)
	e.Uint8(8)
	e.Uint8(8)
	e.Uint8(0)
	e.Offset(0)
	e.Undefined()
	e.Offset(4096)
	e.Offset(root)
	e.Checksum(0)
	return e.Bytes()
}

func v0Block(btree, heap uint64) []byte {
	e := binary.NewEncoder(binary.DefaultConfig())
	e.Raw(Signature)
	e.Uint8(0)    // version
	e.Uint8(0)    // free-space version
	e.Uint8(0)    // root entry version
	e.Uint8(0)    // reserved
	e.Uint8(0)    // shared header version
	e.Uint8(8)    // offset size
	e.Uint8(8)    // length size
	e.Uint8(0)    // reserved
	e.Uint16(4)   // leaf K
	e.Uint16(16)  // internal K
	e.Uint32(0)   // flags
	e.Offset(0)   // base
	e.Undefined() // free-space info
	e.Offset(8192)
	e.Undefined() // driver info
	e.Offset(0)   // link name offset
	e.Offset(96)  // root object header
	e.Uint32(1)   // cache type
	e.Uint32(0)
	e.Offset(btree)
	e.Offset(heap)
	return e.Bytes()
}

func TestReadNotHDF5(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not a hierarchical data format file")))
	require.ErrorIs(t, err, ErrNotHDF5)

	_, err = Read(bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrNotHDF5)
}

func TestReadV2(t *testing.T) {
	sb, err := Read(bytes.NewReader(v2Block(2, 48)))
	require.NoError(t, err)

	assert.Equal(t, uint8(2), sb.Version)
	assert.Equal(t, uint64(48), sb.RootGroupAddress)
	assert.Equal(t, uint64(4096), sb.EOFAddress)
	assert.True(t, binary.Undefined(sb.ExtensionAddress, 8))
	assert.Zero(t, sb.Base)
	assert.Equal(t, 8, sb.Config().OffsetSize)
}

func TestReadV3AfterUserBlock(t *testing.T) {
	file := append(make([]byte, 1024), v2Block(3, 48)...)
	sb, err := Read(bytes.NewReader(file))
	require.NoError(t, err)

	assert.Equal(t, uint8(3), sb.Version)
	assert.Equal(t, uint64(1024), sb.Base)
}

func TestReadV2ChecksumFailure(t *testing.T) {
	block := v2Block(2, 48)
	block[len(block)-6] ^= 0x01
	_, err := Read(bytes.NewReader(block))
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, binary.ErrChecksum)
}

func TestReadUnsupportedVersion(t *testing.T) {
	block := v2Block(2, 48)
	block[8] = 9
	_, err := Read(bytes.NewReader(block))
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReadV0ScratchPad(t *testing.T) {
	sb, err := Read(bytes.NewReader(v0Block(136, 680)))
	require.NoError(t, err)

	assert.Equal(t, uint8(0), sb.Version)
	assert.Equal(t, uint16(4), sb.GroupLeafK)
	assert.Equal(t, uint16(16), sb.GroupInternalK)
	assert.Equal(t, uint64(96), sb.RootGroupAddress)
	assert.Equal(t, uint64(136), sb.RootBTreeAddress)
	assert.Equal(t, uint64(680), sb.RootHeapAddress)
	assert.Equal(t, uint64(8192), sb.EOFAddress)
}

func TestReadBadOffsetSize(t *testing.T) {
	block := v0Block(0, 0)
	block[13] = 3
	_, err := Read(bytes.NewReader(block))
	require.ErrorIs(t, err, ErrInvalid)
}
