package slab

import "fmt"

// View is a caller-owned n-dimensional window over a slice of T.
//
// Strides are counted in elements. A view created with NewView is simple:
// one unbroken row-major run starting at offset 0.
type View[T Element] struct {
	data    []T
	shape   []uint64
	strides []int
	offset  int
	order   Order
}

// NewView allocates a zeroed, simple, Forward view of the given shape.
func NewView[T Element](shape ...uint64) *View[T] {
	return &View[T]{
		data:    make([]T, product(shape)),
		shape:   append([]uint64(nil), shape...),
		strides: rowMajorStrides(shape),
	}
}

// ViewOf wraps existing storage with explicit strides and offset. The
// caller guarantees that every addressed element lies within data.
func ViewOf[T Element](data []T, shape []uint64, strides []int, offset int) (*View[T], error) {
	if len(shape) != len(strides) {
		return nil, fmt.Errorf("%w: %d dims but %d strides", ErrDimensionMismatch, len(shape), len(strides))
	}
	v := &View[T]{
		data:    data,
		shape:   append([]uint64(nil), shape...),
		strides: append([]int(nil), strides...),
		offset:  offset,
	}
	if product(shape) > 0 {
		lo, hi := v.span()
		if lo < 0 || hi >= len(data) {
			return nil, fmt.Errorf("%w: view addresses [%d, %d] outside %d elements", ErrMemSelection, lo, hi, len(data))
		}
	}
	return v, nil
}

// WithOrder returns a shallow copy of v carrying order o.
func (v *View[T]) WithOrder(o Order) *View[T] {
	w := *v
	w.order = o
	return &w
}

func (v *View[T]) Rank() int       { return len(v.shape) }
func (v *View[T]) Order() Order    { return v.order }
func (v *View[T]) Len() int        { return product(v.shape) }
func (v *View[T]) Data() []T       { return v.data }
func (v *View[T]) Offset() int     { return v.offset }
func (v *View[T]) Shape() []uint64 { return append([]uint64(nil), v.shape...) }
func (v *View[T]) Strides() []int  { return append([]int(nil), v.strides...) }

// Simple reports whether the view's elements form one unbroken row-major
// run, so a bulk transfer can target its storage directly.
func (v *View[T]) Simple() bool {
	want := 1
	for d := len(v.shape) - 1; d >= 0; d-- {
		if v.shape[d] != 1 && v.strides[d] != want {
			return false
		}
		want *= int(v.shape[d])
	}
	return v.offset+want <= len(v.data)
}

// At returns the element at idx.
func (v *View[T]) At(idx ...uint64) T {
	return v.data[v.index(idx)]
}

// Set stores x at idx.
func (v *View[T]) Set(x T, idx ...uint64) {
	v.data[v.index(idx)] = x
}

// Sub returns the sub-view starting at origin with the given shape,
// sharing v's storage. The result is generally not simple.
func (v *View[T]) Sub(origin, shape []uint64) (*View[T], error) {
	if len(origin) != v.Rank() || len(shape) != v.Rank() {
		return nil, fmt.Errorf("%w: sub-view rank %d/%d, view rank %d", ErrDimensionMismatch, len(origin), len(shape), v.Rank())
	}
	off := v.offset
	for d := range origin {
		if origin[d] > v.shape[d] || shape[d] > v.shape[d]-origin[d] {
			return nil, fmt.Errorf("%w: axis %d: origin %d, extent %d exceeds %d", ErrMemSelection, d, origin[d], shape[d], v.shape[d])
		}
		off += int(origin[d]) * v.strides[d]
	}
	return &View[T]{
		data:    v.data,
		shape:   append([]uint64(nil), shape...),
		strides: append([]int(nil), v.strides...),
		offset:  off,
		order:   v.order,
	}, nil
}

// Values returns the view's elements in row-major order as a new slice.
func (v *View[T]) Values() []T {
	out := make([]T, 0, v.Len())
	v.each(func(i int) { out = append(out, v.data[i]) })
	return out
}

func (v *View[T]) index(idx []uint64) int {
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("slab: index rank %d, view rank %d", len(idx), len(v.shape)))
	}
	i := v.offset
	for d, x := range idx {
		if x >= v.shape[d] {
			panic(fmt.Sprintf("slab: index %d out of range [0, %d) on axis %d", x, v.shape[d], d))
		}
		i += int(x) * v.strides[d]
	}
	return i
}

// each visits the storage index of every element in row-major order.
func (v *View[T]) each(fn func(i int)) {
	if v.Len() == 0 {
		return
	}
	if len(v.shape) == 0 {
		fn(v.offset)
		return
	}
	var walk func(d, base int)
	walk = func(d, base int) {
		n := int(v.shape[d])
		if d == len(v.shape)-1 {
			for k := 0; k < n; k++ {
				fn(base + k*v.strides[d])
			}
			return
		}
		for k := 0; k < n; k++ {
			walk(d+1, base+k*v.strides[d])
		}
	}
	walk(0, v.offset)
}

// scatter copies contiguous row-major src into v's storage.
func (v *View[T]) scatter(src []T) {
	k := 0
	v.each(func(i int) {
		v.data[i] = src[k]
		k++
	})
}

// rebind points v at a fresh simple buffer.
func (v *View[T]) rebind(buf []T) {
	v.data = buf
	v.strides = rowMajorStrides(v.shape)
	v.offset = 0
}

// bytes returns the raw storage of a simple view.
func (v *View[T]) bytes() []byte {
	return asBytes(v.data[v.offset : v.offset+v.Len()])
}

func (v *View[T]) span() (lo, hi int) {
	lo, hi = v.offset, v.offset
	for d, n := range v.shape {
		step := v.strides[d] * (int(n) - 1)
		if step < 0 {
			lo += step
		} else {
			hi += step
		}
	}
	return lo, hi
}

func rowMajorStrides(shape []uint64) []int {
	strides := make([]int, len(shape))
	s := 1
	for d := len(shape) - 1; d >= 0; d-- {
		strides[d] = s
		s *= int(shape[d])
	}
	return strides
}

func product(shape []uint64) int {
	n := 1
	for _, s := range shape {
		n *= int(s)
	}
	return n
}
