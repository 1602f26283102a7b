// Package dtype bridges stored HDF5 datatypes and in-memory values.
//
// # Numeric Types
//
// [Numeric] maps a fixed-point or floating-point datatype onto the
// [slab.Type] describing the matching Go element, and [Matches] reports
// whether a stored type and a memory type are the same. Other classes
// have no numeric mapping and fail.
//
// # Conversion
//
// [Convert] moves a buffer of stored elements into host layout:
//
//	mem := slab.TypeOf[float32]()
//	err := dtype.Convert(dst, mem, raw, ds.Datatype())
//
// Byte order is swapped when the stored order differs from the host's,
// which is detected once with golang.org/x/sys/cpu. Integers may be widened
// to a larger integer of the same signedness. [Swap] reverses the bytes of
// every element of a buffer in place.
//
// # Attribute Values
//
// [Values] decodes small buffers of any class into Go values for display:
// integers as int64 or uint64, floats as float64, strings as string, enums
// as their member name, compounds as map[string]any, and arrays and
// variable-length sequences as []any. Variable-length data is fetched
// through a [HeapReader].
//
// # Key Types
//
//   - [HeapReader]: source of global heap objects for variable-length data
package dtype
