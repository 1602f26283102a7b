package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// Signature opens every HDF5 superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var (
	ErrNotHDF5            = errors.New("superblock: HDF5 signature not found")
	ErrUnsupportedVersion = errors.New("superblock: unsupported version")
	ErrInvalid            = errors.New("superblock: invalid structure")
)

// maxSearch bounds the user-block search.
const maxSearch = 1 << 30

// Superblock holds the fields a reader needs.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8
	Flags      uint32

	// Base is the absolute position of the superblock, to which every
	// other address is relative.
	Base             uint64
	ExtensionAddress uint64
	EOFAddress       uint64
	RootGroupAddress uint64

	// Version 0 and 1 only. RootBTreeAddress and RootHeapAddress come from
	// the root entry's scratch pad and are zero when it carries none.
	GroupLeafK       uint16
	GroupInternalK   uint16
	IndexedStorageK  uint16
	RootBTreeAddress uint64
	RootHeapAddress  uint64
}

// Config returns the decoder configuration of the file.
func (sb *Superblock) Config() binary.Config {
	return binary.Config{
		ByteOrder:  binary.DefaultConfig().ByteOrder,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Read finds and decodes the superblock of r.
func Read(r io.ReaderAt) (*Superblock, error) {
	br := binary.NewReader(r, binary.DefaultConfig())
	for at := uint64(0); at < maxSearch; at = next(at) {
		head, err := br.Prefix(at, len(Signature)+1)
		if err != nil {
			return nil, err
		}
		if len(head) < len(Signature)+1 {
			break
		}
		if !bytes.Equal(head[:len(Signature)], Signature) {
			continue
		}
		sb, err := decode(br, at, head[len(Signature)])
		if err != nil {
			return nil, err
		}
		return sb, nil
	}
	return nil, ErrNotHDF5
}

func next(at uint64) uint64 {
	if at == 0 {
		return 512
	}
	return at * 2
}

// Largest v0/v1 superblock with 8-byte fields.
const maxLegacySize = 8 + 20 + 4*8 + 2*8 + 8 + 16

func decode(br *binary.Reader, at uint64, version uint8) (*Superblock, error) {
	switch version {
	case 0, 1:
		buf, err := br.Prefix(at, maxLegacySize)
		if err != nil {
			return nil, err
		}
		return decodeLegacy(buf, at)
	case 2, 3:
		head, err := br.Bytes(at, 12)
		if err != nil {
			return nil, err
		}
		size := 12 + 4*int(head[9]) + 4
		buf, err := br.Bytes(at, size)
		if err != nil {
			return nil, err
		}
		return decodeV2(buf, at)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}

func validSize(n uint8) bool { return n == 2 || n == 4 || n == 8 }

func decodeLegacy(buf []byte, at uint64) (*Superblock, error) {
	d := binary.NewDecoder(buf, binary.DefaultConfig())
	d.Skip(len(Signature))
	sb := &Superblock{Version: d.Uint8()}
	d.Skip(1) // free-space version
	if v := d.Uint8(); v != 0 {
		d.Fail(fmt.Errorf("%w: root entry version %d", ErrInvalid, v))
	}
	d.Skip(2) // reserved, shared header version
	sb.OffsetSize = d.Uint8()
	sb.LengthSize = d.Uint8()
	d.Skip(1)
	sb.GroupLeafK = d.Uint16()
	sb.GroupInternalK = d.Uint16()
	sb.Flags = d.Uint32()
	if sb.Version == 1 {
		sb.IndexedStorageK = d.Uint16()
		d.Skip(2)
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalid, sb.OffsetSize, sb.LengthSize)
	}

	d = binary.NewDecoder(buf[d.Pos():], sb.Config())
	sb.Base = d.Offset()
	d.Offset() // free-space info
	sb.EOFAddress = d.Offset()
	d.Offset() // driver info

	// Root group symbol table entry.
	d.Offset() // link name offset
	sb.RootGroupAddress = d.Offset()
	cache := d.Uint32()
	d.Skip(4)
	if cache == 1 {
		sb.RootBTreeAddress = d.Offset()
		sb.RootHeapAddress = d.Offset()
	}
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	sb.rebase(at)
	return sb, nil
}

func decodeV2(buf []byte, at uint64) (*Superblock, error) {
	if err := binary.VerifyBlock(buf, "superblock"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	d := binary.NewDecoder(buf, binary.DefaultConfig())
	d.Skip(len(Signature))
	sb := &Superblock{
		Version:    d.Uint8(),
		OffsetSize: d.Uint8(),
		LengthSize: d.Uint8(),
		Flags:      uint32(d.Uint8()),
	}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, fmt.Errorf("%w: offset size %d, length size %d", ErrInvalid, sb.OffsetSize, sb.LengthSize)
	}
	d = binary.NewDecoder(buf[d.Pos():], sb.Config())
	sb.Base = d.Offset()
	sb.ExtensionAddress = d.Offset()
	sb.EOFAddress = d.Offset()
	sb.RootGroupAddress = d.Offset()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	sb.rebase(at)
	return sb, nil
}

// rebase makes addresses relative to the superblock when a user block
// precedes it and the stored base is zero.
func (sb *Superblock) rebase(at uint64) {
	if sb.Base == 0 && at != 0 {
		sb.Base = at
	}
}
