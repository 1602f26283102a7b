// Package hdf5 is a read-only HDF5 reader written in pure Go.
//
// A File is opened from a path or any io.ReaderAt. Groups are walked by
// path, following hard, soft and external links; datasets are read
// whole or by region, with every storage layout and chunk index HDF5
// 1.8 through 1.14 writes. Store adapts a File to slab.Store so the
// slab package can read hyperslabs from it.
package hdf5

import (
	"errors"

	"github.com/robert-malhotra/h5slab/internal/layout"
)

var (
	ErrNotHDF5     = errors.New("hdf5: not an HDF5 file")
	ErrNotFound    = errors.New("hdf5: object not found")
	ErrNotDataset  = errors.New("hdf5: object is not a dataset")
	ErrNotGroup    = errors.New("hdf5: object is not a group")
	ErrUnsupported = errors.New("hdf5: unsupported feature")
	ErrInvalidPath = errors.New("hdf5: invalid path")
	ErrClosed      = errors.New("hdf5: file is closed")
	ErrLinkDepth   = errors.New("hdf5: too many links")

	// ErrBounds is returned for regions outside a dataset.
	ErrBounds = layout.ErrBounds
)

// MaxLinkDepth is the number of soft and external links followed while
// resolving one path.
const MaxLinkDepth = 40
