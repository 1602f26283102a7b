// Package slab reads rectangular sub-regions ("hyperslabs") of large
// file-resident numeric arrays without loading the whole array.
//
// An Array is opened over a Store, the capability set of the backing
// array-file engine. Construction resolves the exposed shape once,
// honouring the "reverse-shape" marker attribute; every Subarray call then
// selects the requested box on disk and transfers it into a caller-owned
// View, straight into the view's storage when the view is contiguous.
//
// Every handle acquired from the Store is released on every exit path,
// success or failure:
//
//	arr, err := slab.Open[float32](store, root, "volume")
//	if err != nil {
//	    return err
//	}
//	defer arr.Close()
//
//	dst := slab.NewView[float32](64, 64, 64)
//	if err := arr.Subarray([]uint64{128, 0, 256}, dst); err != nil {
//	    return err
//	}
//
// The package is synchronous and adds no locking; a single Array must not
// be used from several goroutines without external serialization.
package slab
