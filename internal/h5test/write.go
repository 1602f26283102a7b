package h5test

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/dtype"
	"github.com/robert-malhotra/h5slab/internal/filter"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/internal/superblock"
)

// Sizes of the superblock at the start of the file.
const (
	superblockV0Size = 8 + 16 + 4*8 + 40
	superblockV2Size = 8 + 4 + 4*8 + 4
)

// fixedArrayPageBits keeps fixture fixed arrays in one unpaged block.
const fixedArrayPageBits = 10

// writer lays objects out back to back after the superblock. Children
// are written before the headers that link to them.
type writer struct {
	space
	legacy bool
	done   map[*Dataset]uint64
}

// Bytes encodes the file.
func (f *File) Bytes() ([]byte, error) {
	im, err := f.Encode()
	if err != nil {
		return nil, err
	}
	return im.Data, nil
}

// Encode encodes the file and reports where each structure went.
func (f *File) Encode() (*Image, error) {
	if f.UserBlock != 0 && (f.UserBlock < 512 || f.UserBlock&(f.UserBlock-1) != 0) {
		return nil, fmt.Errorf("h5test: user block of %d bytes", f.UserBlock)
	}
	w := &writer{space: space{e: encoder()}, legacy: f.Legacy, done: make(map[*Dataset]uint64)}
	size := superblockV2Size
	if f.Legacy {
		size = superblockV0Size
	}
	w.alloc(TagSuperblock, make([]byte, size))
	root, err := w.group(f.Root)
	if err != nil {
		return nil, err
	}
	w.e.Pad(8)
	eof := uint64(w.e.Len())
	base := uint64(f.UserBlock)

	sb := encoder()
	sb.Raw(superblock.Signature)
	if f.Legacy {
		sb.Raw([]byte{0, 0, 0, 0, 0, 8, 8, 0})
		sb.Uint16(4)  // group leaf K
		sb.Uint16(16) // group internal K
		sb.Uint32(0)
		sb.Offset(base)
		sb.Undefined() // free space
		sb.Offset(eof)
		sb.Undefined() // driver info
		sb.Offset(0)   // root link name
		sb.Offset(root.header)
		sb.Uint32(btree.CacheObject)
		sb.Zero(4)
		sb.Offset(root.btree)
		sb.Offset(root.heap)
	} else {
		sb.Raw([]byte{2, 8, 8, 0})
		sb.Offset(base)
		sb.Undefined() // extension
		sb.Offset(eof)
		sb.Offset(root.header)
		sb.Checksum(0)
	}
	w.patch(0, sb.Bytes())
	if err := w.validate(eof); err != nil {
		return nil, err
	}
	return w.image(f.UserBlock), nil
}

// groupRef locates a written group. btree and heap are set for symbol
// table groups.
type groupRef struct {
	header, btree, heap uint64
}

func (w *writer) group(g *Group) (groupRef, error) {
	type member struct {
		link
		addr uint64
		ref  groupRef
	}
	members := make([]member, 0, len(g.links))
	for _, l := range g.links {
		m := member{link: l}
		switch {
		case l.group != nil:
			ref, err := w.group(l.group)
			if err != nil {
				return groupRef{}, fmt.Errorf("group %q: %w", l.name, err)
			}
			m.ref, m.addr = ref, ref.header
		case l.dataset != nil:
			addr, err := w.dataset(l.dataset)
			if err != nil {
				return groupRef{}, fmt.Errorf("dataset %q: %w", l.name, err)
			}
			m.addr = addr
		case l.file != "" && w.legacy:
			return groupRef{}, fmt.Errorf("h5test: external link %q in a legacy file", l.name)
		}
		members = append(members, m)
	}
	attrs, err := w.attributes(g.Attrs)
	if err != nil {
		return groupRef{}, err
	}

	if !w.legacy {
		msgs := []msg{{message.TypeLinkInfo, linkInfo()}}
		for _, m := range members {
			var data []byte
			switch {
			case m.soft != "":
				data = softLink(m.name, m.soft)
			case m.file != "":
				data = externalLink(m.name, m.file, m.path)
			default:
				data = hardLink(m.name, m.addr)
			}
			msgs = append(msgs, msg{message.TypeLink, data})
		}
		msgs = append(msgs, attrs...)
		return groupRef{header: w.alloc(TagHeader, header(msgs, false))}, nil
	}

	// Local heap: offset 0 is the empty name, then member names and soft
	// link targets.
	slices.SortFunc(members, func(a, b member) int { return strings.Compare(a.name, b.name) })
	names := make([]byte, 8)
	intern := func(s string) uint64 {
		off := uint64(len(names))
		names = pad8(append(append(names, s...), 0))
		return off
	}
	snod := encoder()
	snod.Text("SNOD")
	snod.Raw([]byte{1, 0})
	snod.Uint16(uint16(len(members)))
	var last uint64
	for _, m := range members {
		last = intern(m.name)
		snod.Offset(last)
		switch {
		case m.soft != "":
			target := intern(m.soft)
			snod.Undefined()
			snod.Uint32(btree.CacheSoftLink)
			snod.Zero(4)
			snod.Uint32(uint32(target))
			snod.Zero(12)
		case m.group != nil:
			snod.Offset(m.addr)
			snod.Uint32(btree.CacheObject)
			snod.Zero(4)
			snod.Offset(m.ref.btree)
			snod.Offset(m.ref.heap)
		default:
			snod.Offset(m.addr)
			snod.Uint32(btree.CacheNone)
			snod.Zero(4 + 16)
		}
	}
	snodAddr := w.alloc(TagSymbolNode, snod.Bytes())

	tree := encoder()
	tree.Text("TREE")
	tree.Raw([]byte{0, 0}) // group node, leaf
	if len(members) == 0 {
		tree.Uint16(0)
		tree.Undefined()
		tree.Undefined()
		tree.Length(0)
	} else {
		tree.Uint16(1)
		tree.Undefined()
		tree.Undefined()
		tree.Length(0)
		tree.Offset(snodAddr)
		tree.Length(last)
	}
	treeAddr := w.alloc(TagGroupTree, tree.Bytes())

	dataAddr := w.alloc(TagHeapData, names)
	heap := encoder()
	heap.Text("HEAP")
	heap.Raw([]byte{0, 0, 0, 0})
	heap.Length(uint64(len(names)))
	heap.Length(^uint64(0)) // no free block
	heap.Offset(dataAddr)
	heapAddr := w.alloc(TagLocalHeap, heap.Bytes())

	msgs := append([]msg{{message.TypeSymbolTable, symbolTable(treeAddr, heapAddr)}}, attrs...)
	return groupRef{header: w.alloc(TagHeader, header(msgs, true)), btree: treeAddr, heap: heapAddr}, nil
}

func (w *writer) attributes(attrs []*Attr) ([]msg, error) {
	out := make([]msg, 0, len(attrs))
	for _, a := range attrs {
		data := a.Data
		if a.Strings != nil {
			data = w.strings(a.Strings)
		}
		n := uint64(1)
		for _, d := range a.Dims {
			n *= d
		}
		if uint64(len(data)) != n*uint64(a.Type.Size) {
			return nil, fmt.Errorf("h5test: attribute %q has %d bytes for %d elements", a.Name, len(data), n)
		}
		out = append(out, msg{message.TypeAttribute, attribute(a, data, w.legacy)})
	}
	return out, nil
}

// strings stores s in a global heap collection and returns the
// variable-length references to them.
func (w *writer) strings(s []string) []byte {
	e := encoder()
	e.Text("GCOL")
	e.Raw([]byte{1, 0, 0, 0})
	e.Length(0) // patched
	for i, v := range s {
		e.Uint16(uint16(i + 1))
		e.Uint16(1)
		e.Zero(4)
		e.Length(uint64(len(v)))
		e.Text(v)
		e.Pad(8)
	}
	e.Uint16(0)
	e.Zero(14)
	e.PutUintNAt(8, uint64(e.Len()), cfg.LengthSize)
	addr := w.alloc(TagGlobalHeap, e.Bytes())

	refs := encoder()
	for i, v := range s {
		refs.Uint32(uint32(len(v)))
		refs.Offset(addr)
		refs.Uint32(uint32(i + 1))
	}
	return refs.Bytes()
}

func (w *writer) dataset(d *Dataset) (uint64, error) {
	if addr, ok := w.done[d]; ok {
		return addr, nil
	}
	raw, err := d.fileData()
	if err != nil {
		return 0, err
	}
	v := uint8(4)
	if w.legacy {
		v = 3
	}

	e := encoder()
	switch d.Layout {
	case message.LayoutCompact:
		e.Raw([]byte{v, byte(message.LayoutCompact)})
		e.Uint16(uint16(len(raw)))
		e.Raw(raw)
	case message.LayoutContiguous:
		e.Raw([]byte{v, byte(message.LayoutContiguous)})
		if d.Unallocated {
			e.Undefined()
		} else {
			e.Offset(w.alloc(TagData, raw))
		}
		e.Length(uint64(len(raw)))
	case message.LayoutChunked:
		if err := w.chunked(e, d, raw); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("h5test: layout %v", d.Layout)
	}

	msgs := []msg{
		{message.TypeDataspace, dataspace(d.Dims, d.MaxDims, w.legacy)},
		{message.TypeDatatype, datatype(d.Type)},
		{message.TypeFillValue, fillValue(d.Fill, w.legacy)},
		{message.TypeDataLayout, e.Bytes()},
	}
	if len(d.Filters) > 0 {
		msgs = append(msgs, msg{message.TypeFilterPipeline, filterPipeline(d.Filters, w.legacy)})
	}
	attrs, err := w.attributes(d.Attrs)
	if err != nil {
		return 0, err
	}
	addr := w.alloc(TagHeader, header(append(msgs, attrs...), w.legacy))
	w.done[d] = addr
	return addr, nil
}

// fileData returns the elements in file byte order.
func (d *Dataset) fileData() ([]byte, error) {
	n := uint64(1)
	for _, x := range d.Dims {
		n *= x
	}
	size := n * uint64(d.Type.Size)
	if d.Data == nil {
		return make([]byte, size), nil
	}
	if uint64(len(d.Data)) != size {
		return nil, fmt.Errorf("h5test: %d data bytes for %d elements of %s", len(d.Data), n, d.Type)
	}
	raw := append([]byte(nil), d.Data...)
	if d.Type.Order == message.BigEndian {
		dtype.Swap(raw, int(d.Type.Size))
	}
	return raw, nil
}

// stored is one chunk as written.
type stored struct {
	scaled []uint64
	addr   uint64
	size   uint64
}

var errIndex = errors.New("h5test: chunk index cannot hold this dataset")

func (w *writer) chunked(e *binary.Encoder, d *Dataset, raw []byte) error {
	rank := len(d.Dims)
	if rank == 0 || len(d.Chunk) != rank {
		return fmt.Errorf("h5test: rank %d chunks for rank %d dataset", len(d.Chunk), rank)
	}
	elem := uint64(d.Type.Size)
	grid := make([]uint64, rank)
	chunkBytes := elem
	for i, c := range d.Chunk {
		grid[i] = (d.Dims[i] + c - 1) / c
		chunkBytes *= c
	}
	index := d.Index
	if w.legacy {
		index = message.IndexBTreeV1
	}
	pipe := filter.NewPipeline(&message.FilterPipeline{Filters: d.Filters})

	var chunks []stored
	var block []byte
	var k uint64
	var failed error
	each(grid, func(scaled []uint64) {
		defer func() { k++ }()
		if failed != nil {
			return
		}
		s := stored{scaled: slices.Clone(scaled), addr: ^uint64(0)}
		data := extract(raw, d.Dims, scaled, d.Chunk, elem)
		switch {
		case index == message.IndexImplicit:
			if len(d.Filters) > 0 || len(d.Missing) > 0 {
				failed = fmt.Errorf("%w: implicit index with filters or missing chunks", errIndex)
				return
			}
			block = append(block, data...)
		case slices.Contains(d.Missing, k):
		default:
			enc, err := pipe.Encode(data)
			if err != nil {
				failed = err
				return
			}
			s.addr, s.size = w.alloc(TagChunk, enc), uint64(len(enc))
		}
		chunks = append(chunks, s)
	})
	if failed != nil {
		return failed
	}

	dims := append(slices.Clone(d.Chunk), elem)
	if w.legacy {
		e.Raw([]byte{3, byte(message.LayoutChunked), byte(rank + 1)})
		e.Offset(w.chunkTree(chunks, d))
		for _, c := range dims {
			e.Uint32(uint32(c))
		}
		return nil
	}

	filtered := len(d.Filters) > 0
	var flags uint8
	if index == message.IndexSingleChunk && filtered {
		flags = message.ChunkSingleFiltered
	}
	e.Raw([]byte{4, byte(message.LayoutChunked), flags, byte(rank + 1), 4})
	for _, c := range dims {
		e.Uint32(uint32(c))
	}
	e.Uint8(uint8(index))
	switch index {
	case message.IndexSingleChunk:
		if len(chunks) != 1 {
			return fmt.Errorf("%w: %d chunks in a single chunk index", errIndex, len(chunks))
		}
		if filtered {
			e.Length(chunks[0].size)
			e.Uint32(0)
		}
		e.Offset(chunks[0].addr)
	case message.IndexImplicit:
		e.Offset(w.alloc(TagChunk, block))
	case message.IndexFixedArray:
		if d.MaxDims != nil {
			return fmt.Errorf("%w: fixed array with maximum dimensions", errIndex)
		}
		e.Uint8(fixedArrayPageBits)
		e.Offset(w.fixedArray(chunks, filtered, chunkBytes))
	default:
		return fmt.Errorf("%w: %v", errIndex, index)
	}
	return nil
}

// chunkTree writes a one-node version 1 chunk B-tree.
func (w *writer) chunkTree(chunks []stored, d *Dataset) uint64 {
	var live []stored
	for _, c := range chunks {
		if c.addr != ^uint64(0) {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return ^uint64(0)
	}
	e := encoder()
	e.Text("TREE")
	e.Raw([]byte{1, 0})
	e.Uint16(uint16(len(live)))
	e.Undefined()
	e.Undefined()
	key := func(size uint64, offset []uint64) {
		e.Uint32(uint32(size))
		e.Uint32(0)
		for _, o := range offset {
			e.Uint64(o)
		}
		e.Uint64(0)
	}
	for _, c := range live {
		off := make([]uint64, len(c.scaled))
		for i, s := range c.scaled {
			off[i] = s * d.Chunk[i]
		}
		key(c.size, off)
		e.Offset(c.addr)
	}
	end := make([]uint64, len(d.Dims))
	for i := range end {
		end[i] = (d.Dims[i] + d.Chunk[i] - 1) / d.Chunk[i] * d.Chunk[i]
	}
	key(0, end)
	return w.alloc(TagChunkTree, e.Bytes())
}

// fixedArray writes an unpaged fixed array index over chunks, which
// must be in row-major grid order.
func (w *writer) fixedArray(chunks []stored, filtered bool, chunkBytes uint64) uint64 {
	size := cfg.OffsetSize
	width := 0
	client := uint8(0)
	if filtered {
		width = btree.ChunkSizeWidth(chunkBytes)
		size += width + 4
		client = 1
	}
	head := func(dblk uint64) []byte {
		e := encoder()
		e.Text("FAHD")
		e.Raw([]byte{0, client, byte(size), fixedArrayPageBits})
		e.Length(uint64(len(chunks)))
		e.Offset(dblk)
		e.Checksum(0)
		return e.Bytes()
	}
	addr := w.alloc(TagFixedArrayHeader, head(0))

	e := encoder()
	e.Text("FADB")
	e.Raw([]byte{0, client})
	e.Offset(addr)
	for _, c := range chunks {
		e.Offset(c.addr)
		if filtered {
			e.UintN(c.size, width)
			e.Uint32(0)
		}
	}
	e.Checksum(0)
	w.patch(addr, head(w.alloc(TagFixedArrayBlock, e.Bytes())))
	return addr
}

// extract copies the chunk at grid position scaled out of the row-major
// elements of a dataset, zero padding past the edge.
func extract(raw []byte, dims, scaled, chunk []uint64, elem uint64) []byte {
	n := elem
	for _, c := range chunk {
		n *= c
	}
	out := make([]byte, n)
	var k uint64
	each(chunk, func(in []uint64) {
		defer func() { k++ }()
		var src uint64
		for i, x := range in {
			at := scaled[i]*chunk[i] + x
			if at >= dims[i] {
				return
			}
			src = src*dims[i] + at
		}
		copy(out[k*elem:(k+1)*elem], raw[src*elem:(src+1)*elem])
	})
	return out
}

// each calls fn for every coordinate of extent in row-major order.
func each(extent []uint64, fn func(idx []uint64)) {
	for _, e := range extent {
		if e == 0 {
			return
		}
	}
	idx := make([]uint64, len(extent))
	for {
		fn(idx)
		i := len(extent) - 1
		for ; i >= 0; i-- {
			if idx[i]++; idx[i] < extent[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
