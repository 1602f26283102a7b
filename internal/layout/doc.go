// Package layout reads boxes of raw dataset elements from the three HDF5
// storage classes.
//
// A [Layout] answers one question: given a start coordinate and a count
// per axis, fill a row-major buffer with the stored bytes of that box.
// The bytes are in file order; converting them to memory types is the
// caller's job (see package dtype).
//
// # Storage Classes
//
//   - Compact (class 0): the elements live in the layout message of the
//     object header. Implemented by [Compact].
//
//   - Contiguous (class 1): the elements occupy one block of the file.
//     Implemented by [Contiguous]. A block with an undefined address has
//     never been written and reads as fill.
//
//   - Chunked (class 2): the elements are split into equally sized chunks
//     located through an index and optionally filtered. Implemented by
//     [Chunked].
//
// # Reading a Box
//
// Use [New] to build the reader for a dataset from its header messages:
//
//	l, err := layout.New(r, hdr.DataLayout(), hdr.Dataspace(), hdr.Datatype(),
//		hdr.FilterPipeline(), hdr.FillValue())
//	buf := make([]byte, 2*3*4*elemSize)
//	err = l.Read([]uint64{0, 1, 0}, []uint64{2, 3, 4}, buf)
//
// Boxes are checked against the dataspace extent before any I/O, and a
// box outside it fails with [ErrBounds].
//
// # Contiguous Runs
//
// A contiguous read is split into runs of consecutive file bytes. Trailing
// axes that the box spans completely are merged into the run, so reading
// whole rows or planes costs one ReadAt per run rather than one per row.
//
// # Chunk Indexes
//
// Chunked storage supports every index HDF5 writes:
//
//   - Version 1 B-tree ("TREE"): layouts of version 1 to 3
//   - Single chunk: the whole dataset is one chunk, no index structure
//   - Implicit: chunks stored back to back in grid order
//   - Fixed array ("FAHD", "FADB"): one entry per chunk, optionally paged
//   - Extensible array ("EAHI", "EAIB", "EASB", "EADB"): index block, super
//     blocks and data blocks, as written for datasets with one unlimited axis
//   - Version 2 B-tree ("BTHD"): record types 10 and 11
//
// The index is read once, on first use. Allocated chunks are kept in a
// roaring bitmap keyed by linear grid position; [Chunked.Allocated]
// exposes it for reporting.
//
// # Chunk Assembly
//
// Chunks overlapping a box are fetched and decoded through the filter
// pipeline in parallel, bounded by [Concurrency]. Each decoded chunk is
// copied into the destination row by row, clipped to both the box and the
// dataset extent so that partial edge chunks are handled. Chunks with no
// storage behind them are filled with the dataset fill value.
//
// # Key Types
//
//   - [Layout]: interface implemented by every storage class
//   - [Compact]: elements stored in the object header
//   - [Contiguous]: elements stored in one block
//   - [Chunked]: elements stored in indexed, optionally filtered chunks
//   - [Option]: tuning for [New], such as [Concurrency]
package layout
