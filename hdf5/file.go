package hdf5

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/heap"
	"github.com/robert-malhotra/h5slab/internal/object"
	"github.com/robert-malhotra/h5slab/internal/superblock"
)

// File is an open HDF5 file. Its methods are safe for concurrent use.
type File struct {
	name   string
	size   int64
	closer io.Closer
	reader *binary.Reader
	sb     *superblock.Superblock
	opts   openOptions
	log    *slog.Logger
	root   *Group
	heaps  *heapCache

	mu       sync.Mutex
	closed   bool
	external map[string]*File
}

// Open opens the HDF5 file at path.
func Open(path string, opts ...OpenOption) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, err
	}
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.opener == nil {
		dir := filepath.Dir(path)
		o.opener = func(name string) (*File, error) {
			if !filepath.IsAbs(name) {
				name = filepath.Join(dir, name)
			}
			return Open(name, opts...)
		}
	}
	f, err := newFile(fh, st.Size(), path, o)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.closer = fh
	return f, nil
}

// OpenReaderAt reads an HDF5 file of size bytes from r. Closing the File
// does not close r unless WithCloser says so.
func OpenReaderAt(r io.ReaderAt, size int64, opts ...OpenOption) (*File, error) {
	o := defaultOpenOptions()
	for _, opt := range opts {
		opt(&o)
	}
	f, err := newFile(r, size, "", o)
	if err != nil {
		return nil, err
	}
	f.closer = o.closer
	return f, nil
}

func newFile(r io.ReaderAt, size int64, name string, o openOptions) (*File, error) {
	sb, err := superblock.Read(io.NewSectionReader(r, 0, size))
	if err != nil {
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %w", ErrNotHDF5, err)
		}
		return nil, err
	}
	if sb.Base > uint64(size) {
		return nil, fmt.Errorf("%w: base address %#x past end of file", ErrNotHDF5, sb.Base)
	}
	// Every address in the file is relative to the base.
	src := io.NewSectionReader(r, int64(sb.Base), size-int64(sb.Base))
	f := &File{
		name:   name,
		size:   size,
		reader: binary.NewReader(src, sb.Config()),
		sb:     sb,
		opts:   o,
		log:    o.logger.With(slog.String("file", name)),
	}
	f.heaps = &heapCache{r: f.reader, m: make(map[uint64]*heap.Global)}

	h, err := object.Read(f.reader, sb.RootGroupAddress)
	if err != nil {
		return nil, fmt.Errorf("root group: %w", err)
	}
	f.root = &Group{file: f, path: "/", header: h}
	f.log.Debug("opened",
		slog.Int("superblock", int(sb.Version)),
		slog.Uint64("base", sb.Base),
		slog.Int64("size", size))
	return f, nil
}

// Close releases the file and every file opened through its external
// links. Later calls return nil.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	ext := f.external
	f.external = nil
	f.mu.Unlock()

	var errs []error
	for _, e := range ext {
		errs = append(errs, e.Close())
	}
	if f.closer != nil {
		errs = append(errs, f.closer.Close())
	}
	return errors.Join(errs...)
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Name returns the path the file was opened from, or "" for readers.
func (f *File) Name() string { return f.name }

// Size returns the file size in bytes.
func (f *File) Size() int64 { return f.size }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.sb.Version) }

// Root returns the root group.
func (f *File) Root() *Group { return f.root }

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(path string) (*Group, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(path)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(path string) (*Dataset, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(path)
}

// Attr returns the attribute named by an object@name path, such as
// "/grid/t@units" or "/@title".
func (f *File) Attr(path string) (*Attribute, error) {
	if f.isClosed() {
		return nil, ErrClosed
	}
	objPath, name, err := ParseAttrPath(path)
	if err != nil {
		return nil, err
	}
	obj, err := f.root.Object(objPath)
	if err != nil {
		return nil, err
	}
	var a *Attribute
	switch o := obj.(type) {
	case *Group:
		a = o.Attr(name)
	case *Dataset:
		a = o.Attr(name)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, path)
	}
	return a, nil
}

// externalFile returns the file an external link names, opening it on
// first use.
func (f *File) externalFile(name string) (*File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if ext, ok := f.external[name]; ok {
		return ext, nil
	}
	if f.opts.opener == nil {
		return nil, fmt.Errorf("%w: external link to %q without an opener", ErrUnsupported, name)
	}
	ext, err := f.opts.opener(name)
	if err != nil {
		return nil, fmt.Errorf("external file %q: %w", name, err)
	}
	if f.external == nil {
		f.external = make(map[string]*File)
	}
	f.external[name] = ext
	f.log.Debug("opened external file", slog.String("name", name))
	return ext, nil
}

// heapCache resolves variable-length data, keeping each global heap
// collection after its first read.
type heapCache struct {
	r  *binary.Reader
	mu sync.Mutex
	m  map[uint64]*heap.Global
}

func (c *heapCache) Object(id heap.ID) ([]byte, error) {
	c.mu.Lock()
	g, ok := c.m[id.Collection]
	c.mu.Unlock()
	if !ok {
		var err error
		if g, err = heap.ReadGlobal(c.r, id.Collection); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.m[id.Collection] = g
		c.mu.Unlock()
	}
	return g.Object(id.Index)
}
