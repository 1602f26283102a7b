package hdf5

import (
	"errors"
)

// SkipGroup returned by a WalkFunc for a group skips the group's members.
var SkipGroup = errors.New("skip this group")

// Entry is one object or link visited by Walk.
//
// Soft and external links are reported without being followed: Object is
// nil and Link says where they point. Err is set when a hard link's
// target could not be opened; the walk continues past it.
type Entry struct {
	Path   string
	Link   Link
	Object Object
	Err    error
}

// WalkFunc is called for each entry. Returning SkipGroup for a group
// skips its members; any other error stops the walk and is returned.
type WalkFunc func(e Entry) error

// Walk visits g and everything below it depth first, members in storage
// order. An object reachable by several hard links is visited once.
func Walk(g *Group, fn WalkFunc) error {
	if g.file.isClosed() {
		return ErrClosed
	}
	seen := make(map[uint64]bool)
	err := walk(g, Entry{Path: g.path, Link: Link{Name: g.Name()}, Object: g}, seen, fn)
	if errors.Is(err, SkipGroup) {
		return nil
	}
	return err
}

func walk(g *Group, self Entry, seen map[uint64]bool, fn WalkFunc) error {
	if err := fn(self); err != nil {
		return err
	}
	links, err := g.Links()
	if err != nil {
		return err
	}
	for _, l := range links {
		e := Entry{Path: joinPath(g.path, l.Name), Link: l}
		if l.Kind != HardLink {
			if err := fn(e); err != nil && !errors.Is(err, SkipGroup) {
				return err
			}
			continue
		}
		if seen[l.address] {
			continue
		}
		seen[l.address] = true

		e.Object, e.Err = g.file.load(e.Path, l.address)
		sub, ok := e.Object.(*Group)
		if !ok {
			if err := fn(e); err != nil && !errors.Is(err, SkipGroup) {
				return err
			}
			continue
		}
		if err := walk(sub, e, seen, fn); err != nil && !errors.Is(err, SkipGroup) {
			return err
		}
	}
	return nil
}

// AttrEntry is one attribute visited by WalkAttrs.
type AttrEntry struct {
	Path   string // object@name
	Object Object
	Attr   *Attribute
}

// WalkAttrs calls fn for every attribute of every object Walk visits.
func WalkAttrs(g *Group, fn func(a AttrEntry) error) error {
	return Walk(g, func(e Entry) error {
		if e.Object == nil {
			return nil
		}
		for _, a := range e.Object.Attrs() {
			if err := fn(AttrEntry{Path: JoinAttrPath(e.Path, a.Name()), Object: e.Object, Attr: a}); err != nil {
				return err
			}
		}
		return nil
	})
}
