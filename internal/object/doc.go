// Package object reads HDF5 object headers.
//
// Every group, dataset and committed datatype has an object header: a
// list of typed messages spread over one or more chunks. The header is
// how an object is identified; its address is the object's address.
//
// # Header Versions
//
//   - Version 1: a 16-byte prefix followed by 8-byte aligned messages.
//     Used by files with a version 0 or 1 superblock.
//
//   - Version 2 (signature "OHDR"): a variable-size prefix with optional
//     timestamps and attribute phase change values, unaligned messages
//     and a lookup3 checksum at the end of every chunk.
//
// # Reading
//
// [Read] detects the version, follows continuation messages to every
// further chunk ("OCHK" in version 2), verifies chunk checksums and decodes
// each message with package message:
//
//	hdr, err := object.Read(r, addr)
//	if hdr.IsDataset() {
//		space := hdr.Dataspace()
//		layout := hdr.DataLayout()
//	}
//
// # Shared Messages
//
// A message stored in the shared format points at the header that owns
// it, as committed datatypes do. Such messages are resolved when the
// header is read, so callers always see the decoded message.
//
// # Accessors
//
// Typed accessors return the first message of a kind, or nil:
// [Header.Dataspace], [Header.Datatype], [Header.DataLayout],
// [Header.FillValue], [Header.FilterPipeline], [Header.SymbolTable],
// [Header.LinkInfo]. [Header.Links] and [Header.Attributes] return every
// message of their kind in header order.
//
// # Key Types
//
//   - [Header]: the decoded messages of one object
package object
