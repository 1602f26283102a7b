package h5test

import (
	stdbinary "encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/slab"
)

// File describes an HDF5 file.
type File struct {
	Root *Group
	// Legacy selects the version 0 superblock and symbol table groups.
	Legacy bool
	// UserBlock reserves bytes ahead of the superblock. It must be zero
	// or a power of two of at least 512.
	UserBlock int
}

// New returns an empty file in the current format.
func New() *File { return &File{Root: &Group{}} }

// NewLegacy returns an empty file in the legacy format.
func NewLegacy() *File { return &File{Root: &Group{}, Legacy: true} }

// Save encodes f and writes it to path.
func (f *File) Save(t testing.TB, path string) {
	t.Helper()
	b, err := f.Bytes()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

// Path writes f to a temporary file and returns its name.
func (f *File) Path(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.h5")
	f.Save(t, path)
	return path
}

// Group is a group and its members, in insertion order.
type Group struct {
	Attrs []*Attr
	links []link
}

type link struct {
	name    string
	group   *Group
	dataset *Dataset
	soft    string
	file    string // external
	path    string // external
}

// Group adds a child group.
func (g *Group) Group(name string) *Group {
	c := &Group{}
	g.links = append(g.links, link{name: name, group: c})
	return c
}

// Dataset adds d under name. The same dataset may be linked from
// several groups.
func (g *Group) Dataset(name string, d *Dataset) *Dataset {
	g.links = append(g.links, link{name: name, dataset: d})
	return d
}

// SoftLink adds a link to the object at target.
func (g *Group) SoftLink(name, target string) {
	g.links = append(g.links, link{name: name, soft: target})
}

// ExternalLink adds a link to path inside another file. Legacy files
// cannot hold external links.
func (g *Group) ExternalLink(name, file, path string) {
	g.links = append(g.links, link{name: name, file: file, path: path})
}

// Attr attaches attributes to the group.
func (g *Group) Attr(a ...*Attr) *Group {
	g.Attrs = append(g.Attrs, a...)
	return g
}

// Dataset is a dataset and its storage parameters.
type Dataset struct {
	Type    *message.Datatype
	Dims    []uint64 // nil for a scalar
	MaxDims []uint64
	Data    []byte // row-major little-endian elements; nil reads as zeros
	Layout  message.LayoutClass
	Chunk   []uint64
	// Index is the chunk index of current-format files. Legacy files
	// always use a version 1 B-tree.
	Index   message.IndexKind
	Filters []message.Filter
	Fill    []byte
	// Missing lists the row-major grid positions of chunks never
	// written.
	Missing []uint64
	// Unallocated leaves contiguous storage unwritten.
	Unallocated bool
	Attrs       []*Attr
}

// Of returns a contiguous dataset holding values.
func Of[T slab.Element](dims []uint64, values []T) *Dataset {
	return &Dataset{
		Type:   TypeOf[T](),
		Dims:   dims,
		Data:   Bytes(values),
		Layout: message.LayoutContiguous,
	}
}

// Compact stores the elements inside the object header.
func (d *Dataset) Compact() *Dataset {
	d.Layout = message.LayoutCompact
	return d
}

// Chunked splits the elements into chunks of the given shape.
func (d *Dataset) Chunked(index message.IndexKind, chunk ...uint64) *Dataset {
	d.Layout = message.LayoutChunked
	d.Index = index
	d.Chunk = chunk
	return d
}

// Filter appends filters to the chunk pipeline.
func (d *Dataset) Filter(f ...message.Filter) *Dataset {
	d.Filters = append(d.Filters, f...)
	return d
}

// BigEndian stores the elements most significant byte first.
func (d *Dataset) BigEndian() *Dataset {
	t := *d.Type
	t.Order = message.BigEndian
	d.Type = &t
	return d
}

// FillValue sets the value unwritten elements read as.
func (d *Dataset) FillValue(b []byte) *Dataset {
	d.Fill = b
	return d
}

// Attr attaches attributes to the dataset.
func (d *Dataset) Attr(a ...*Attr) *Dataset {
	d.Attrs = append(d.Attrs, a...)
	return d
}

// Attr is a named value attached to a group or dataset.
type Attr struct {
	Name string
	Type *message.Datatype
	Dims []uint64 // nil for a scalar
	Data []byte
	// Strings holds the values of a variable-length string attribute,
	// which are stored in a global heap.
	Strings []string
}

// Scalar returns a single-valued numeric attribute.
func Scalar[T slab.Element](name string, v T) *Attr {
	return &Attr{Name: name, Type: TypeOf[T](), Data: Bytes([]T{v})}
}

// Values returns a one-dimensional numeric attribute.
func Values[T slab.Element](name string, v ...T) *Attr {
	return &Attr{Name: name, Type: TypeOf[T](), Dims: []uint64{uint64(len(v))}, Data: Bytes(v)}
}

// Text returns a fixed-length string attribute.
func Text(name, s string) *Attr {
	return &Attr{Name: name, Type: String(len(s) + 1), Data: append([]byte(s), 0)}
}

// VarText returns a variable-length string attribute. One value makes a
// scalar.
func VarText(name string, s ...string) *Attr {
	a := &Attr{Name: name, Type: VarString(), Strings: s}
	if len(s) != 1 {
		a.Dims = []uint64{uint64(len(s))}
	}
	return a
}

// Bytes returns values as little-endian bytes.
func Bytes[T slab.Element](values []T) []byte {
	b, err := stdbinary.Append(nil, stdbinary.LittleEndian, values)
	if err != nil {
		panic(err)
	}
	return b
}

// TypeOf returns the little-endian datatype of T.
func TypeOf[T slab.Element]() *message.Datatype {
	t := slab.TypeOf[T]()
	if t.Class == slab.ClassFloat {
		return Float(t.Size)
	}
	return Int(t.Size, t.Signed)
}

// Int returns an integer datatype.
func Int(size int, signed bool) *message.Datatype {
	return &message.Datatype{
		Version:   1,
		Class:     message.ClassFixed,
		Size:      uint32(size),
		Signed:    signed,
		Precision: uint16(8 * size),
	}
}

// Float returns an IEEE float datatype of 4 or 8 bytes.
func Float(size int) *message.Datatype {
	return &message.Datatype{
		Version:   1,
		Class:     message.ClassFloat,
		Size:      uint32(size),
		Signed:    true,
		Precision: uint16(8 * size),
	}
}

// String returns a NUL-terminated fixed-length string datatype.
func String(n int) *message.Datatype {
	return &message.Datatype{Version: 1, Class: message.ClassString, Size: uint32(n)}
}

// VarString returns a variable-length string datatype.
func VarString() *message.Datatype {
	return &message.Datatype{
		Version:      1,
		Class:        message.ClassVarLen,
		Size:         4 + uint32(cfg.OffsetSize) + 4,
		VarLenString: true,
		Base:         Int(1, false),
	}
}

// Deflate returns a gzip filter at level.
func Deflate(level uint32) message.Filter {
	return message.Filter{ID: message.FilterDeflate, ClientData: []uint32{level}}
}

// Shuffle returns a byte shuffle filter for elements of size bytes.
func Shuffle(size uint32) message.Filter {
	return message.Filter{ID: message.FilterShuffle, ClientData: []uint32{size}}
}

// Fletcher32 returns a checksum filter.
func Fletcher32() message.Filter {
	return message.Filter{ID: message.FilterFletcher32}
}

// LZ4 returns an LZ4 filter.
func LZ4() message.Filter {
	return message.Filter{ID: message.FilterLZ4, Name: "lz4"}
}

// Zstd returns a Zstandard filter at level.
func Zstd(level uint32) message.Filter {
	return message.Filter{ID: message.FilterZstd, Name: "zstd", ClientData: []uint32{level}}
}
