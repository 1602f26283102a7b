// Package btree walks the B-trees HDF5 uses to index group members and
// dataset chunks.
//
// # Version 1
//
// Version 1 B-trees (signature "TREE") come in two node types:
//
//   - Type 0 indexes the symbol table nodes ("SNOD") of old-style groups.
//     [GroupEntries] returns every member, with names resolved through the
//     group's local heap.
//
//   - Type 1 indexes the chunks of datasets written with layout versions 1
//     to 3. [Chunks] returns every chunk with its offset, size and filter
//     mask.
//
// # Version 2
//
// Version 2 B-trees ("BTHD", "BTIN", "BTLF") index the chunks of version 4
// layouts. Record type 10 is used for unfiltered datasets and type 11 for
// filtered ones; the latter stores a size and filter mask per chunk, with
// the size field as wide as [ChunkSizeWidth] says. Chunk offsets are
// stored scaled by the chunk dimensions. [ReadV2Header] decodes the header
// and [ChunksV2] walks the tree.
//
// The walkers return every entry; callers build their own lookup
// structures over the result. A node visited twice fails with
// [ErrCycle].
//
// # Key Types
//
//   - [Chunk]: location of one chunk
//   - [SymbolEntry]: one member of an old-style group
//   - [V2Header]: header of a version 2 B-tree
package btree
