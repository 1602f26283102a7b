// Package heap reads the two heap structures HDF5 uses for
// variable-length data.
//
// # Local Heap
//
// A [Local] heap (signature "HEAP") belongs to one old-style group and
// holds the names of its members as NUL-terminated strings. Symbol table
// entries and soft link values refer to them by offset into the heap's
// data segment.
//
//	names, err := heap.ReadLocal(r, stab.HeapAddress)
//	name, err := names.String(offset)
//
// The data segment is read in full when the heap is opened; lookups do no
// further I/O.
//
// # Global Heap
//
// A [Global] heap collection (signature "GCOL") holds numbered objects
// shared by any number of datasets and attributes, most often the
// contents of variable-length strings and sequences. Objects are padded to
// eight bytes and object 0 marks the free space at the end.
//
//	col, err := heap.ReadGlobal(r, id.Collection)
//	s, err := col.String(id.Index)
//
// # Heap IDs
//
// Variable-length elements store an [ID]: a length, the collection
// address and the object index. [ParseID] decodes one from a
// [binary.Decoder] positioned at the element.
//
// # Key Types
//
//   - [Local]: member names of an old-style group
//   - [Global]: one global heap collection
//   - [ID]: reference to a global heap object
package heap
