// Package superblock locates and decodes the HDF5 superblock.
//
// The superblock is the entry point of every HDF5 file. It records the
// format versions in use, the widths of addresses and lengths, and where
// the root group is.
//
// # Location
//
// The superblock is searched for at offset 0 and then at every power of
// two from 512, the positions a user block can push it to. The position
// found becomes [Superblock.Base]; every other address in the file is
// relative to it.
//
//	sb, err := superblock.Read(f)
//	r := binary.NewReader(f, sb.Config())
//	root, err := object.Read(r, sb.RootGroupAddress)
//
// # Versions
//
//   - Version 0 and 1: fixed-size fields followed by the root group symbol
//     table entry. When the entry's cache type is 1 its scratch pad carries
//     the root group's B-tree and local heap addresses, which are exposed as
//     RootBTreeAddress and RootHeapAddress. Version 1 adds the indexed
//     storage B-tree K value.
//
//   - Version 2 and 3: a compact layout that points at the root object
//     header directly and ends in a lookup3 checksum. The checksum is
//     verified and a mismatch is an error. Version 3 adds file consistency
//     flags for single-writer/multiple-reader access.
//
// # Errors
//
// [ErrNotHDF5] is returned when no signature is found at any candidate
// offset. Unsupported versions and address widths other than 2, 4 or 8
// bytes are rejected.
//
// # Key Types
//
//   - [Superblock]: decoded fields and the [binary.Config] derived from them
package superblock
