package slab

// Handle identifies an object owned by a Store: a group, dataset, datatype
// or dataspace. The zero Handle is never valid.
type Handle uint64

// Class is the numeric class of an element type.
type Class uint8

const (
	ClassInteger Class = iota + 1
	ClassFloat
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Type describes an in-memory element type in host byte order.
type Type struct {
	Class  Class
	Size   int
	Signed bool
}

// Store is the capability set consumed from the backing array-file engine.
//
// Handles returned by Store methods are owned by the caller and must be
// released with Close exactly once. Read must either fill dst completely
// or fail without writing to it.
type Store interface {
	// OpenDataset opens the dataset name inside group.
	OpenDataset(group Handle, name string) (Handle, error)
	// DatasetType returns a handle to the dataset's stored element type.
	DatasetType(ds Handle) (Handle, error)
	// TypeEqual reports whether a stored element type matches mem.
	TypeEqual(fileType Handle, mem Type) (bool, error)
	// DatasetSpace returns a fresh dataspace handle covering the whole dataset.
	DatasetSpace(ds Handle) (Handle, error)
	ExtentRank(space Handle) (int, error)
	ExtentDims(space Handle) ([]uint64, error)
	// AttrExists reports whether obj carries an attribute called name.
	AttrExists(obj Handle, name string) (bool, error)
	// CreateSimple creates a dataspace with the given dimensions.
	CreateSimple(dims []uint64) (Handle, error)
	// SelectHyperslab restricts space to the box at offset with size count.
	// A box that does not fit the dataspace is rejected.
	SelectHyperslab(space Handle, offset, count []uint64) error
	// Read transfers the fileSpace selection of ds into the memSpace
	// selection of dst, converting to mem.
	Read(ds Handle, mem Type, memSpace, fileSpace Handle, dst []byte) error
	// Close releases any handle returned by the Store.
	Close(h Handle) error
}
