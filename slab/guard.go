package slab

import "errors"

// guard scopes store handles. Handles are released in reverse acquisition
// order unless kept.
type guard struct {
	store   Store
	handles []Handle
}

func newGuard(s Store) *guard {
	return &guard{store: s}
}

// track registers h for release.
func (g *guard) track(h Handle) Handle {
	g.handles = append(g.handles, h)
	return h
}

// keep transfers ownership of every tracked handle to the caller.
func (g *guard) keep() {
	g.handles = nil
}

// release closes every tracked handle and joins close failures onto err.
func (g *guard) release(err error) error {
	var errs []error
	for i := len(g.handles) - 1; i >= 0; i-- {
		if cerr := g.store.Close(g.handles[i]); cerr != nil {
			errs = append(errs, cerr)
		}
	}
	g.handles = nil
	if len(errs) == 0 {
		return err
	}
	return errors.Join(append([]error{err}, errs...)...)
}
