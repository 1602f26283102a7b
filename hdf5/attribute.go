package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/dtype"
	"github.com/robert-malhotra/h5slab/internal/message"
	"github.com/robert-malhotra/h5slab/internal/object"
)

// Attribute is a small named value attached to a group or dataset.
type Attribute struct {
	file *File
	msg  *message.Attribute
}

func attrs(f *File, h *object.Header) []*Attribute {
	msgs := h.Attributes()
	out := make([]*Attribute, len(msgs))
	for i, m := range msgs {
		out[i] = &Attribute{file: f, msg: m}
	}
	return out
}

func attr(f *File, h *object.Header, name string) *Attribute {
	if m := h.Attribute(name); m != nil {
		return &Attribute{file: f, msg: m}
	}
	return nil
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.msg.Name }

// Shape returns the dimensions of the value; nil for scalars.
func (a *Attribute) Shape() []uint64 {
	if a.msg.Dataspace == nil {
		return nil
	}
	return a.msg.Dataspace.Dims
}

// Scalar reports whether the value is a single element.
func (a *Attribute) Scalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.Kind == message.SpaceScalar
}

// NumElements returns the number of elements in the value.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// TypeName describes the stored element type, such as "float64" or
// "string(8)".
func (a *Attribute) TypeName() string { return a.msg.Datatype.String() }

// Values decodes every element. See dtype.Values for the Go type each
// HDF5 class decodes to.
func (a *Attribute) Values() ([]any, error) {
	if a.file.isClosed() {
		return nil, ErrClosed
	}
	n := a.NumElements()
	if n == 0 {
		return nil, nil
	}
	vals, err := dtype.Values(a.msg.Datatype, a.msg.Data, int(n), a.file.reader.Config(), a.file.heaps)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.msg.Name, err)
	}
	return vals, nil
}

// Value decodes a scalar attribute, or returns all elements as []any.
func (a *Attribute) Value() (any, error) {
	vals, err := a.Values()
	if err != nil {
		return nil, err
	}
	if a.Scalar() && len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}
