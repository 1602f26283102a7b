package cli

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/slab"
)

// array is a slab.Array with its element type erased.
type array interface {
	Name() string
	Shape() []uint64
	Order() slab.Order
	Close() error
	read(begin, end []uint64) (region, error)
}

// region is a view read from an array.
type region interface {
	Shape() []uint64
	writeText(w io.Writer) error
	writeRaw(w io.Writer) error
}

type typedArray[T slab.Element] struct {
	*slab.Array[T]
}

func (a typedArray[T]) read(begin, end []uint64) (region, error) {
	v, err := a.Range(begin, end)
	if err != nil {
		return nil, err
	}
	return typedRegion[T]{v}, nil
}

type typedRegion[T slab.Element] struct {
	*slab.View[T]
}

// writeText prints one line per innermost row, prefixed by the indices of
// the outer axes.
func (r typedRegion[T]) writeText(w io.Writer) error {
	shape := r.View.Shape()
	data := r.Values()
	if len(shape) == 0 {
		_, err := fmt.Fprintln(w, format(data[0]))
		return err
	}
	row := int(shape[len(shape)-1])
	var b strings.Builder
	for start := 0; start+row <= len(data) && row > 0; start += row {
		b.Reset()
		if len(shape) > 1 {
			b.WriteString(outerIndex(start/row, shape[:len(shape)-1]))
			b.WriteByte(' ')
		}
		for i, x := range data[start : start+row] {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(format(x))
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// writeRaw writes the elements little-endian in row-major order.
func (r typedRegion[T]) writeRaw(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, r.Values())
}

func format[T slab.Element](x T) string {
	switch v := any(x).(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return fmt.Sprint(x)
}

// outerIndex formats row number n of a box with the given outer dims as
// "[i,j]".
func outerIndex(n int, outer []uint64) string {
	idx := make([]string, len(outer))
	for i := len(outer) - 1; i >= 0; i-- {
		idx[i] = strconv.FormatUint(uint64(n)%outer[i], 10)
		n /= int(outer[i])
	}
	return "[" + strings.Join(idx, ",") + "]"
}

type opener func(s *hdf5.Store, name string, opts ...slab.Option) (array, error)

func openAs[T slab.Element](s *hdf5.Store, name string, opts ...slab.Option) (array, error) {
	a, err := slab.Open[T](s, s.Root(), name, opts...)
	if err != nil {
		return nil, err
	}
	return typedArray[T]{a}, nil
}

var openers = map[string]opener{
	"int8":    openAs[int8],
	"int16":   openAs[int16],
	"int32":   openAs[int32],
	"int64":   openAs[int64],
	"uint8":   openAs[uint8],
	"uint16":  openAs[uint16],
	"uint32":  openAs[uint32],
	"uint64":  openAs[uint64],
	"float32": openAs[float32],
	"float64": openAs[float64],
}

func typeNames() string {
	names := make([]string, 0, len(openers))
	for n := range openers {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// typeName returns the Go name of t, such as "uint16".
func typeName(t slab.Type) string {
	if t.Class == slab.ClassFloat {
		return "float" + strconv.Itoa(t.Size*8)
	}
	if t.Signed {
		return "int" + strconv.Itoa(t.Size*8)
	}
	return "uint" + strconv.Itoa(t.Size*8)
}

// openArray opens the dataset name in f as an array of typ, or of the
// dataset's own element type when typ is empty.
func (s *session) openArray(f *hdf5.File, name, typ string) (array, error) {
	if typ == "" {
		ds, err := f.OpenDataset(name)
		if err != nil {
			return nil, err
		}
		t, err := ds.ElementType()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		typ = typeName(t)
	}
	open, ok := openers[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q (want one of %s)", errUsage, typ, typeNames())
	}
	return open(hdf5.NewStore(f), name, s.arrayOptions()...)
}

// parseIndex parses a comma-separated list of non-negative integers.
// The empty string yields nil.
func parseIndex(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q in %q", errUsage, p, s)
		}
		out[i] = v
	}
	return out, nil
}

// bounds fills in the defaults for a region: begin at the origin, end at
// the on-disk shape. Region coordinates are always in on-disk axis order,
// reversed arrays included.
func bounds(a array, begin, end []uint64) ([]uint64, []uint64) {
	if begin == nil {
		begin = make([]uint64, len(a.Shape()))
	}
	if end == nil {
		end = a.Shape()
		if a.Order() == slab.Reversed {
			end = reversedShape(end)
		}
	}
	return begin, end
}

func formatShape(shape []uint64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func reversedShape(shape []uint64) []uint64 {
	out := slices.Clone(shape)
	slices.Reverse(out)
	return out
}
