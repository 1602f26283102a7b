// Package h5test builds small HDF5 files for tests.
//
// A File is described as a tree of groups, datasets and attributes and
// encoded with [File.Bytes]. Two flavours are produced: the default uses
// version 2 superblocks and object headers with link messages, the
// legacy flavour uses a version 0 superblock, version 1 headers and
// symbol table groups, as written by HDF5 1.8 with default settings.
//
//	f := h5test.New()
//	f.Root.Group("grid").Dataset("t", h5test.Of([]uint64{4, 6}, values)).
//		Chunked(message.IndexFixedArray, 2, 4).
//		Filter(h5test.Deflate(6))
//	path := f.Path(t)
package h5test
