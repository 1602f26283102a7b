package message

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// LayoutClass is the storage class of a dataset.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	}
	return fmt.Sprintf("layout(%d)", uint8(c))
}

// IndexKind identifies the structure that maps chunk coordinates to
// file addresses. Values 1-5 are the on-disk codes of version 4 layouts;
// version 1-3 layouts always use a version 1 B-tree.
type IndexKind uint8

const (
	IndexBTreeV1     IndexKind = 0
	IndexSingleChunk IndexKind = 1
	IndexImplicit    IndexKind = 2
	IndexFixedArray  IndexKind = 3
	IndexExtensible  IndexKind = 4
	IndexBTreeV2     IndexKind = 5
)

func (k IndexKind) String() string {
	switch k {
	case IndexBTreeV1:
		return "btree-v1"
	case IndexSingleChunk:
		return "single-chunk"
	case IndexImplicit:
		return "implicit"
	case IndexFixedArray:
		return "fixed-array"
	case IndexExtensible:
		return "extensible-array"
	case IndexBTreeV2:
		return "btree-v2"
	}
	return fmt.Sprintf("index(%d)", uint8(k))
}

// Version 4 chunked layout flag bits.
const (
	ChunkDontFilterPartialEdge = 0x01
	ChunkSingleFiltered        = 0x02
)

// ChunkIndex holds the creation parameters of a chunk index.
type ChunkIndex struct {
	Kind    IndexKind
	Address uint64

	// Single chunk, filtered.
	FilteredSize uint64
	FilterMask   uint32

	// Fixed and extensible array: log2 of elements per data block page.
	PageBits uint8

	// Extensible array.
	MaxBits          uint8
	IndexElements    uint8
	MinPointers      uint8
	MinBlockElements uint8

	// Version 2 B-tree.
	NodeSize     uint32
	SplitPercent uint8
	MergePercent uint8
}

// DataLayout describes where and how dataset elements are stored.
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	// Compact.
	Data []byte

	// Contiguous. Size is zero for version 1 and 2 layouts, which do
	// not record it.
	Address uint64
	Size    uint64

	// Chunked. ChunkDims has one entry per dataset axis; ElementSize is
	// the trailing dimension the file stores with them.
	ChunkDims   []uint64
	ElementSize uint32
	Flags       uint8
	Index       ChunkIndex
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// ChunkBytes returns the uncompressed size of one chunk.
func (m *DataLayout) ChunkBytes() uint64 {
	n := uint64(m.ElementSize)
	for _, c := range m.ChunkDims {
		n *= c
	}
	return n
}

func decodeLayout(d *binary.Decoder) (*DataLayout, error) {
	l := &DataLayout{Version: d.Uint8()}
	switch l.Version {
	case 1, 2:
		return l, decodeLayoutV1(d, l)
	case 3, 4:
		return l, decodeLayoutV3(d, l)
	}
	return nil, fmt.Errorf("%w: layout version %d", ErrUnsupported, l.Version)
}

func decodeLayoutV1(d *binary.Decoder, l *DataLayout) error {
	ndims := int(d.Uint8())
	l.Class = LayoutClass(d.Uint8())
	d.Skip(5)
	if l.Class != LayoutCompact {
		addr := d.Offset()
		if l.Class == LayoutChunked {
			l.Index = ChunkIndex{Kind: IndexBTreeV1, Address: addr}
		} else {
			l.Address = addr
		}
	}
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = uint64(d.Uint32())
	}
	switch l.Class {
	case LayoutCompact:
		l.Data = d.Bytes(int(d.Uint32()))
	case LayoutChunked:
		return l.splitChunkDims(dims)
	}
	return nil
}

func decodeLayoutV3(d *binary.Decoder, l *DataLayout) error {
	l.Class = LayoutClass(d.Uint8())
	switch l.Class {
	case LayoutCompact:
		l.Data = d.Bytes(int(d.Uint16()))
	case LayoutContiguous:
		l.Address = d.Offset()
		l.Size = d.Length()
	case LayoutChunked:
		if l.Version == 3 {
			ndims := int(d.Uint8())
			l.Index = ChunkIndex{Kind: IndexBTreeV1, Address: d.Offset()}
			dims := make([]uint64, ndims)
			for i := range dims {
				dims[i] = uint64(d.Uint32())
			}
			return l.splitChunkDims(dims)
		}
		return decodeChunkedV4(d, l)
	case LayoutVirtual:
		return fmt.Errorf("%w: virtual dataset layout", ErrUnsupported)
	default:
		return fmt.Errorf("layout class %d", l.Class)
	}
	return nil
}

func decodeChunkedV4(d *binary.Decoder, l *DataLayout) error {
	l.Flags = d.Uint8()
	ndims := int(d.Uint8())
	width := int(d.Uint8())
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i] = d.UintN(width)
	}
	if err := l.splitChunkDims(dims); err != nil {
		return err
	}

	ix := &l.Index
	ix.Kind = IndexKind(d.Uint8())
	switch ix.Kind {
	case IndexSingleChunk:
		if l.Flags&ChunkSingleFiltered != 0 {
			ix.FilteredSize = d.Length()
			ix.FilterMask = d.Uint32()
		}
	case IndexImplicit:
	case IndexFixedArray:
		ix.PageBits = d.Uint8()
	case IndexExtensible:
		ix.MaxBits = d.Uint8()
		ix.IndexElements = d.Uint8()
		ix.MinPointers = d.Uint8()
		ix.MinBlockElements = d.Uint8()
		ix.PageBits = d.Uint8()
	case IndexBTreeV2:
		ix.NodeSize = d.Uint32()
		ix.SplitPercent = d.Uint8()
		ix.MergePercent = d.Uint8()
	default:
		return fmt.Errorf("chunk index type %d", ix.Kind)
	}
	ix.Address = d.Offset()
	return nil
}

// splitChunkDims separates the trailing element-size dimension.
func (l *DataLayout) splitChunkDims(dims []uint64) error {
	if len(dims) < 2 {
		return fmt.Errorf("chunked layout with %d dimensions", len(dims))
	}
	for _, c := range dims {
		if c == 0 {
			return fmt.Errorf("zero chunk dimension in %v", dims)
		}
	}
	l.ChunkDims = dims[:len(dims)-1]
	l.ElementSize = uint32(dims[len(dims)-1])
	return nil
}
