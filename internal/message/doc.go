// Package message decodes HDF5 object header messages.
//
// Every object in an HDF5 file is described by the messages in its object
// header. A dataset header, for example, carries a dataspace, a datatype,
// a data layout and usually a fill value; a group header carries either
// link messages or a symbol table message.
//
// # Parsing
//
// [Parse] turns the raw payload of one message into a typed value:
//
//	m, err := message.Parse(message.TypeDataspace, payload, cfg)
//	space := m.(*message.Dataspace)
//
// Message types a reader of groups and datasets does not need come back
// as [Unknown] with their bytes intact. Messages stored in the shared
// message format are recognised by [ParseShared]; resolving them is left
// to package object.
//
// # Supported Messages
//
//   - [Dataspace]: rank, current and maximum dimensions
//   - [Datatype]: fixed-point, floating-point, string, compound, array,
//     enum and variable-length classes, with byte order and padding
//   - [FillValue]: both the old (type 0x04) and new (type 0x05) forms
//   - [DataLayout]: versions 1 to 4
//   - [FilterPipeline]: versions 1 and 2
//   - [Attribute]: versions 1 to 3
//   - [Link] and [LinkInfo]: hard, soft and external links of new-style groups
//   - [SymbolTable]: B-tree and local heap of old-style groups
//   - [Continuation]: the next chunk of the header
//   - [ModTime]: object modification time
//
// # Layout Messages
//
// Layout messages of every version are decoded. For chunked layouts of
// version 4 the chunk index kind ([IndexKind]) and its creation
// parameters ([ChunkIndex]) are decoded as well, since the index structures
// in the file cannot be read without them. [DataLayout.ChunkBytes] gives the
// uncompressed size of one chunk.
//
// # Key Types
//
//   - [Message]: interface implemented by every decoded message
//   - [Type]: the message type number
//   - [Datatype], [Dataspace], [DataLayout]: what a dataset read needs
//   - [Filter]: one entry of a filter pipeline
package message
