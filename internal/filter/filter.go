package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/message"
)

// ErrUnavailable is returned when a chunk needs a filter this package
// does not implement.
var ErrUnavailable = errors.New("filter: not available")

// Filter is one reversible chunk transformation.
type Filter interface {
	ID() uint16
	Decode(input []byte) ([]byte, error)
	Encode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to constructors taking the client data.
var Registry = map[uint16]func(cd []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return Fletcher32{} },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var names = map[uint16]string{
	message.FilterDeflate:     "deflate",
	message.FilterShuffle:     "shuffle",
	message.FilterFletcher32:  "fletcher32",
	message.FilterLZ4:         "lz4",
	message.FilterZstd:        "zstd",
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "nbit",
	message.FilterScaleOffset: "scaleoffset",
}

// Name returns a short name for f: the well-known name for its ID, the
// name stored in the file, or "filter-<id>".
func Name(f message.Filter) string {
	if n, ok := names[f.ID]; ok {
		return n
	}
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("filter-%d", f.ID)
}

// New returns the filter described by f. Unknown filters yield a
// placeholder that fails when a chunk actually needs it.
func New(f message.Filter) Filter {
	if mk, ok := Registry[f.ID]; ok {
		return mk(f.ClientData)
	}
	name := f.Name
	if n, ok := names[f.ID]; ok && name == "" {
		name = n
	}
	return missing{id: f.ID, name: name}
}

type missing struct {
	id   uint16
	name string
}

func (m missing) ID() uint16 { return m.id }

func (m missing) Decode([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: %d %q", ErrUnavailable, m.id, m.name)
}

func (m missing) Encode([]byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: %d %q", ErrUnavailable, m.id, m.name)
}
