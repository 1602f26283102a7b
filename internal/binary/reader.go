// Package binary decodes the little-endian, variable-width integer fields
// HDF5 metadata is built from.
//
// Offsets ("addresses") and lengths have a per-file width taken from the
// superblock. Reader fetches raw blocks from an io.ReaderAt; Decoder walks
// a block with a sticky error so parsers can decode a whole structure and
// check for truncation once at the end.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrShortBuffer is recorded when a structure runs past its block.
	ErrShortBuffer = errors.New("binary: structure truncated")
	// ErrSignature is recorded when a block does not start with the expected magic.
	ErrSignature = errors.New("binary: bad signature")
)

// Config describes the field widths of one file.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int // 2, 4 or 8
	LengthSize int // 2, 4 or 8
}

// DefaultConfig is used until the superblock has been read.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// Undefined reports whether v is the all-ones "undefined address" of the
// given width.
func Undefined(v uint64, size int) bool {
	if size >= 8 {
		return v == ^uint64(0)
	}
	return v == 1<<(8*size)-1
}

// Reader reads metadata blocks from a file.
type Reader struct {
	r   io.ReaderAt
	cfg Config
}

// NewReader wraps r with the field widths in cfg.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, cfg: cfg}
}

// WithConfig returns a reader over the same file with different widths.
func (r *Reader) WithConfig(cfg Config) *Reader {
	return &Reader{r: r.r, cfg: cfg}
}

func (r *Reader) Config() Config  { return r.cfg }
func (r *Reader) OffsetSize() int { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int { return r.cfg.LengthSize }

// Undefined reports whether addr is the undefined address for this file.
func (r *Reader) Undefined(addr uint64) bool {
	return Undefined(addr, r.cfg.OffsetSize)
}

// ReadAt implements io.ReaderAt over the underlying file.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

// Bytes reads exactly n bytes at addr.
func (r *Reader) Bytes(addr uint64, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binary: negative read of %d bytes at %#x", n, addr)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := r.r.ReadAt(buf, int64(addr))
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("binary: reading %d bytes at %#x: %w", n, addr, err)
}

// Prefix reads up to n bytes at addr, stopping early at end of file.
func (r *Reader) Prefix(addr uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := r.r.ReadAt(buf, int64(addr))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("binary: reading at %#x: %w", addr, err)
	}
	return buf[:read], nil
}

// Decoder reads n bytes at addr and returns a Decoder over them.
func (r *Reader) Decoder(addr uint64, n int) (*Decoder, error) {
	buf, err := r.Bytes(addr, n)
	if err != nil {
		return nil, err
	}
	return NewDecoder(buf, r.cfg), nil
}

// Decoder walks a byte slice. The first failure is kept and every later
// read returns zero values.
type Decoder struct {
	buf []byte
	pos int
	cfg Config
	err error
}

// NewDecoder returns a Decoder over buf.
func NewDecoder(buf []byte, cfg Config) *Decoder {
	return &Decoder{buf: buf, cfg: cfg}
}

func (d *Decoder) Err() error      { return d.err }
func (d *Decoder) Pos() int        { return d.pos }
func (d *Decoder) Remaining() int  { return len(d.buf) - d.pos }
func (d *Decoder) Config() Config  { return d.cfg }
func (d *Decoder) Buffer() []byte  { return d.buf }
func (d *Decoder) OffsetSize() int { return d.cfg.OffsetSize }
func (d *Decoder) LengthSize() int { return d.cfg.LengthSize }
func (d *Decoder) Undefined(v uint64) bool {
	return Undefined(v, d.cfg.OffsetSize)
}

// Fail records err unless an earlier error is already recorded.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = fmt.Errorf("%w: need %d bytes at %d of %d", ErrShortBuffer, n, d.pos, len(d.buf))
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

// Bytes returns the next n bytes. The slice aliases the block.
func (d *Decoder) Bytes(n int) []byte { return d.take(n) }

// Skip advances n bytes.
func (d *Decoder) Skip(n int) { d.take(n) }

// SeekTo moves to an absolute position within the block.
func (d *Decoder) SeekTo(pos int) {
	if d.err != nil {
		return
	}
	if pos < 0 || pos > len(d.buf) {
		d.err = fmt.Errorf("%w: seek to %d of %d", ErrShortBuffer, pos, len(d.buf))
		return
	}
	d.pos = pos
}

// Align advances to the next multiple of n relative to the block start.
func (d *Decoder) Align(n int) {
	if rem := d.pos % n; n > 1 && rem != 0 {
		d.Skip(n - rem)
	}
}

// Signature consumes a four-byte magic and records ErrSignature on mismatch.
func (d *Decoder) Signature(magic string) {
	b := d.take(len(magic))
	if b != nil && string(b) != magic {
		d.err = fmt.Errorf("%w: want %q, got %q", ErrSignature, magic, b)
	}
}

func (d *Decoder) Uint8() uint8   { return uint8(Uint(d.take(1))) }

func (d *Decoder) Uint16() uint16 { return uint16(Uint(d.take(2))) }

func (d *Decoder) Uint32() uint32 { return uint32(Uint(d.take(4))) }

func (d *Decoder) Uint64() uint64 { return Uint(d.take(8)) }

// UintN reads an n-byte little-endian unsigned integer, 0 < n <= 8.
func (d *Decoder) UintN(n int) uint64 {
	if n > 8 {
		d.Fail(fmt.Errorf("binary: %d-byte integer", n))
		return 0
	}
	return Uint(d.take(n))
}

// Offset reads a file address.
func (d *Decoder) Offset() uint64 { return d.UintN(d.cfg.OffsetSize) }

// Length reads a length field.
func (d *Decoder) Length() uint64 { return d.UintN(d.cfg.LengthSize) }

// CString reads a NUL-terminated string and consumes the terminator.
func (d *Decoder) CString() string {
	if d.err != nil {
		return ""
	}
	for i := d.pos; i < len(d.buf); i++ {
		if d.buf[i] == 0 {
			s := string(d.buf[d.pos:i])
			d.pos = i + 1
			return s
		}
	}
	d.err = fmt.Errorf("%w: unterminated string at %d", ErrShortBuffer, d.pos)
	return ""
}

// Uint decodes a little-endian unsigned integer of len(b) <= 8 bytes.
func Uint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// EncodedSize is the number of bytes needed to store values up to limit.
func EncodedSize(limit uint64) int {
	n := 1
	for limit > 0xFF {
		limit >>= 8
		n++
	}
	return n
}
