package binary

// Encoder appends little-endian HDF5 fields to a growing buffer. It is
// the inverse of Decoder and is used to build fixture files.
type Encoder struct {
	buf []byte
	cfg Config
}

// NewEncoder returns an empty Encoder.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

func (e *Encoder) Bytes() []byte { return e.buf }
func (e *Encoder) Len() int      { return len(e.buf) }

func (e *Encoder) Raw(b []byte)    { e.buf = append(e.buf, b...) }
func (e *Encoder) Text(s string)   { e.buf = append(e.buf, s...) }
func (e *Encoder) Uint8(v uint8)   { e.buf = append(e.buf, v) }
func (e *Encoder) Uint16(v uint16) { e.UintN(uint64(v), 2) }
func (e *Encoder) Uint32(v uint32) { e.UintN(uint64(v), 4) }
func (e *Encoder) Uint64(v uint64) { e.UintN(v, 8) }
func (e *Encoder) Zero(n int)      { e.buf = append(e.buf, make([]byte, n)...) }
func (e *Encoder) Offset(v uint64) { e.UintN(v, e.cfg.OffsetSize) }
func (e *Encoder) Length(v uint64) { e.UintN(v, e.cfg.LengthSize) }
func (e *Encoder) Undefined()      { e.UintN(^uint64(0), e.cfg.OffsetSize) }

// UintN appends the low n bytes of v, little-endian.
func (e *Encoder) UintN(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

// Checksum appends the lookup3 checksum of everything written since start.
func (e *Encoder) Checksum(start int) {
	e.Uint32(Lookup3Checksum(e.buf[start:]))
}

// PutUintNAt overwrites n bytes at pos with v, little-endian.
func (e *Encoder) PutUintNAt(pos int, v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf[pos+i] = byte(v >> (8 * i))
	}
}

// Pad appends zero bytes up to a multiple of n.
func (e *Encoder) Pad(n int) {
	if rem := len(e.buf) % n; rem != 0 {
		e.Zero(n - rem)
	}
}
