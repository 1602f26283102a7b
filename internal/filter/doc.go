// Package filter implements the HDF5 chunk filters.
//
// Filtered datasets store each chunk after passing it through the
// dataset's filter pipeline. Reading a chunk undoes the filters in
// reverse order.
//
// # Supported Filters
//
//   - deflate (1): through github.com/klauspost/compress/zlib
//   - shuffle (2): byte transposition by element size
//   - Fletcher-32 (3): trailing checksum, verified on decode
//   - LZ4 (32004): the HDF5 block framing, through github.com/pierrec/lz4/v4
//   - Zstandard (32015): through github.com/klauspost/compress/zstd
//
// Filters are looked up by ID in [Registry]. An ID with no entry yields a
// placeholder that fails with [ErrUnavailable] only when a chunk actually
// needs it, so datasets whose chunks skip an optional filter stay readable.
//
// # Pipelines
//
// [NewPipeline] builds the chain from a filter pipeline message:
//
//	p := filter.NewPipeline(hdr.FilterPipeline())
//	data, err := p.Decode(raw, chunk.FilterMask)
//
// Bit i of the chunk's filter mask set means filter i was skipped when the
// chunk was written. Every filter can also encode; [Of] builds a pipeline
// from filter values directly, which test fixtures use to write filtered
// chunks.
//
// [Name] gives the short display name of a filter for reports.
//
// # Key Types
//
//   - [Filter]: one reversible chunk transformation
//   - [Pipeline]: the ordered chain of a dataset
//   - [Deflate], [Shuffle], [Fletcher32], [LZ4], [Zstd]: the implementations
package filter
