package hdf5

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/robert-malhotra/h5slab/internal/btree"
	"github.com/robert-malhotra/h5slab/internal/heap"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/internal/object"
)

// Object is a group or a dataset.
type Object interface {
	Name() string
	Path() string
	Attrs() []*Attribute
	Attr(name string) *Attribute
}

var (
	_ Object = (*Group)(nil)
	_ Object = (*Dataset)(nil)
)

// LinkKind says how a link names its target.
type LinkKind uint8

const (
	HardLink LinkKind = iota
	SoftLink
	ExternalLink
)

func (k LinkKind) String() string {
	switch k {
	case HardLink:
		return "hard"
	case SoftLink:
		return "soft"
	case ExternalLink:
		return "external"
	}
	return fmt.Sprintf("LinkKind(%d)", uint8(k))
}

// Link is one member of a group. Target is the path a soft or external
// link points at; File is the file an external link names.
type Link struct {
	Name   string
	Kind   LinkKind
	Target string
	File   string

	address uint64
}

// Group is an HDF5 group.
type Group struct {
	file   *File
	path   string
	header *object.Header
}

// File returns the file the group lives in.
func (g *Group) File() *File { return g.file }

// Path returns the absolute path the group was opened by.
func (g *Group) Path() string { return g.path }

// Name returns the last component of the group's path, or "/".
func (g *Group) Name() string { return path.Base(g.path) }

// Links returns the group's members in storage order: creation order for
// new-style groups, name order for old-style ones.
func (g *Group) Links() ([]Link, error) {
	if g.file.isClosed() {
		return nil, ErrClosed
	}
	h := g.header
	if li := h.LinkInfo(); li != nil && li.Dense(g.file.reader.OffsetSize()) {
		return nil, fmt.Errorf("%w: %s stores its links densely", ErrUnsupported, g.path)
	}
	if msgs := h.Links(); len(msgs) > 0 || h.LinkInfo() != nil {
		out := make([]Link, 0, len(msgs))
		for _, m := range msgs {
			l := Link{Name: m.Name, Target: m.Target, File: m.File, address: m.Address}
			switch m.Kind {
			case message.LinkSoft:
				l.Kind = SoftLink
			case message.LinkExternal:
				l.Kind = ExternalLink
			}
			out = append(out, l)
		}
		return out, nil
	}

	var btreeAddr, heapAddr uint64
	if st := h.SymbolTable(); st != nil {
		btreeAddr, heapAddr = st.BTreeAddress, st.HeapAddress
	} else if g.path == "/" && g.file.sb.RootBTreeAddress != 0 {
		btreeAddr, heapAddr = g.file.sb.RootBTreeAddress, g.file.sb.RootHeapAddress
	} else {
		return nil, nil
	}
	names, err := heap.ReadLocal(g.file.reader, heapAddr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	entries, err := btree.GroupEntries(g.file.reader, btreeAddr, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.path, err)
	}
	out := make([]Link, len(entries))
	for i, e := range entries {
		out[i] = Link{Name: e.Name, address: e.Address}
		if e.Soft() {
			out[i].Kind = SoftLink
			out[i].Target = e.Target
		}
	}
	return out, nil
}

// Members returns the names of the group's links.
func (g *Group) Members() ([]string, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(links))
	for i, l := range links {
		names[i] = l.Name
	}
	return names, nil
}

// Object opens the group or dataset at p. Absolute paths start at the
// file's root; relative ones at g.
func (g *Group) Object(p string) (Object, error) {
	if g.file.isClosed() {
		return nil, ErrClosed
	}
	hops := 0
	return g.resolve(p, &hops)
}

// OpenGroup opens the group at p.
func (g *Group) OpenGroup(p string) (*Group, error) {
	obj, err := g.Object(p)
	if err != nil {
		return nil, err
	}
	sub, ok := obj.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotGroup, obj.Path())
	}
	return sub, nil
}

// OpenDataset opens the dataset at p.
func (g *Group) OpenDataset(p string) (*Dataset, error) {
	obj, err := g.Object(p)
	if err != nil {
		return nil, err
	}
	ds, ok := obj.(*Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDataset, obj.Path())
	}
	return ds, nil
}

func (g *Group) resolve(p string, hops *int) (Object, error) {
	names, err := SplitPath(p)
	if err != nil {
		return nil, err
	}
	var cur Object = g
	if strings.HasPrefix(p, "/") {
		cur = g.file.root
	}
	for _, name := range names {
		grp, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotGroup, cur.Path())
		}
		if cur, err = grp.child(name, hops); err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (g *Group) child(name string, hops *int) (Object, error) {
	links, err := g.Links()
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.Name == name {
			return g.follow(l, hops)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, joinPath(g.path, name))
}

func (g *Group) follow(l Link, hops *int) (Object, error) {
	if l.Kind != HardLink {
		*hops++
		if *hops > MaxLinkDepth {
			return nil, fmt.Errorf("%w: %s", ErrLinkDepth, joinPath(g.path, l.Name))
		}
	}
	switch l.Kind {
	case SoftLink:
		obj, err := g.resolve(l.Target, hops)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("dangling soft link %s -> %s: %w", joinPath(g.path, l.Name), l.Target, err)
		}
		return obj, err
	case ExternalLink:
		ext, err := g.file.externalFile(l.File)
		if err != nil {
			return nil, err
		}
		return ext.root.resolve(l.Target, hops)
	}
	return g.file.load(joinPath(g.path, l.Name), l.address)
}

// load opens the object header at addr as a group or a dataset.
func (f *File) load(p string, addr uint64) (Object, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	switch {
	case h.IsDataset():
		ds, err := newDataset(f, p, h)
		if err != nil {
			return nil, err
		}
		return ds, nil
	case h.IsGroup():
		return &Group{file: f, path: p, header: h}, nil
	}
	f.log.Debug("skipping object", slog.String("path", p), slog.Uint64("address", addr))
	return nil, fmt.Errorf("%w: %s is neither a group nor a dataset", ErrUnsupported, p)
}

// Attrs returns the group's attributes.
func (g *Group) Attrs() []*Attribute { return attrs(g.file, g.header) }

// Attr returns the attribute called name, or nil.
func (g *Group) Attr(name string) *Attribute { return attr(g.file, g.header, name) }

// HasAttr reports whether the group carries an attribute called name.
func (g *Group) HasAttr(name string) bool { return g.header.Attribute(name) != nil }
