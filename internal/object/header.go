package object

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
	"github.com/robert-malhotra/h5slab/internal/message"
)

var (
	ErrInvalidHeader      = errors.New("object: invalid header")
	ErrUnsupportedVersion = errors.New("object: unsupported header version")
)

// maxShareDepth bounds the chain of headers followed to resolve a shared
// message.
const maxShareDepth = 8

// Header is a decoded object header.
type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32

	Messages []message.Message

	// Skipped holds attribute messages that use encodings this package
	// does not decode. They do not make the object unreadable.
	Skipped []error

	// Version 2 headers with times stored.
	AccessTime uint32
	ModTime    uint32
	ChangeTime uint32
	BirthTime  uint32
}

// chunk is one run of messages in the header.
type chunk struct {
	addr uint64
	size uint64
}

// Read decodes the object header at addr.
func Read(r *binary.Reader, addr uint64) (*Header, error) {
	return read(r, addr, 0)
}

func read(r *binary.Reader, addr uint64, depth int) (*Header, error) {
	if r.Undefined(addr) {
		return nil, fmt.Errorf("%w: undefined address", ErrInvalidHeader)
	}
	peek, err := r.Prefix(addr, 4)
	if err != nil {
		return nil, err
	}
	var h *Header
	switch {
	case len(peek) == 4 && string(peek) == "OHDR":
		h, err = readV2(r, addr, depth)
	case len(peek) > 0 && peek[0] == 1:
		h, err = readV1(r, addr, depth)
	default:
		return nil, fmt.Errorf("%w: at %#x", ErrInvalidHeader, addr)
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %#x: %w", addr, err)
	}
	return h, nil
}

// raw is an undecoded message.
type raw struct {
	typ   message.Type
	flags uint8
	data  []byte
}

// decode parses one message and appends it, queueing continuation chunks.
func (h *Header) decode(r *binary.Reader, m raw, depth int, queue *[]chunk) error {
	if m.typ == message.TypeNIL {
		return nil
	}
	if m.flags&message.FlagShared != 0 {
		msg, err := resolveShared(r, m, depth)
		if err != nil {
			return err
		}
		h.Messages = append(h.Messages, msg)
		return nil
	}
	msg, err := message.Parse(m.typ, m.data, r.Config())
	if err != nil {
		if m.typ == message.TypeAttribute && errors.Is(err, message.ErrUnsupported) {
			h.Skipped = append(h.Skipped, err)
			return nil
		}
		return err
	}
	if c, ok := msg.(*message.Continuation); ok {
		*queue = append(*queue, chunk{addr: c.Address, size: c.Length})
		return nil
	}
	h.Messages = append(h.Messages, msg)
	return nil
}

// resolveShared loads a message stored in another object header.
func resolveShared(r *binary.Reader, m raw, depth int) (message.Message, error) {
	ref, err := message.ParseShared(m.data, r.Config())
	if err != nil {
		return nil, fmt.Errorf("shared message %#04x: %w", uint16(m.typ), err)
	}
	if depth >= maxShareDepth {
		return nil, fmt.Errorf("%w: shared message chain too deep", ErrInvalidHeader)
	}
	owner, err := read(r, ref.Address, depth+1)
	if err != nil {
		return nil, fmt.Errorf("shared message %#04x: %w", uint16(m.typ), err)
	}
	msg := owner.GetMessage(m.typ)
	if msg == nil {
		return nil, fmt.Errorf("%w: shared message %#04x missing from %#x", ErrInvalidHeader, uint16(m.typ), ref.Address)
	}
	return msg, nil
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

// GetMessages returns every message of type typ.
func (h *Header) GetMessages(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func find[M message.Message](h *Header, typ message.Type) M {
	m, _ := h.GetMessage(typ).(M)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return find[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return find[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return find[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return find[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

func (h *Header) SymbolTable() *message.SymbolTable {
	return find[*message.SymbolTable](h, message.TypeSymbolTable)
}

func (h *Header) LinkInfo() *message.LinkInfo {
	return find[*message.LinkInfo](h, message.TypeLinkInfo)
}

// FillValue returns the fill value, preferring the new message over the
// old one when both are present.
func (h *Header) FillValue() *message.FillValue {
	if fv := find[*message.FillValue](h, message.TypeFillValue); fv != nil {
		return fv
	}
	return find[*message.FillValue](h, message.TypeFillValueOld)
}

// Links returns the link messages of a compact new-style group.
func (h *Header) Links() []*message.Link {
	var out []*message.Link
	for _, m := range h.GetMessages(message.TypeLink) {
		out = append(out, m.(*message.Link))
	}
	return out
}

// Attributes returns the attributes stored in the header.
func (h *Header) Attributes() []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.GetMessages(message.TypeAttribute) {
		out = append(out, m.(*message.Attribute))
	}
	return out
}

// Attribute returns the attribute called name, or nil.
func (h *Header) Attribute(name string) *message.Attribute {
	for _, a := range h.Attributes() {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Modified returns the modification time in seconds since the epoch, or
// zero when the header does not record one.
func (h *Header) Modified() uint32 {
	if h.ModTime != 0 {
		return h.ModTime
	}
	if m := find[*message.ModTime](h, message.TypeModTime); m != nil {
		return m.Seconds
	}
	return 0
}

// IsDataset reports whether the header describes a dataset.
func (h *Header) IsDataset() bool {
	return h.DataLayout() != nil && h.Dataspace() != nil
}

// IsGroup reports whether the header describes a group of either style.
func (h *Header) IsGroup() bool {
	return h.SymbolTable() != nil || h.LinkInfo() != nil || len(h.Links()) > 0
}
