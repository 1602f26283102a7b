// Package slabtest provides an in-memory slab.Store with handle accounting
// and failure injection, for testing code built on package slab.
package slabtest

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/robert-malhotra/h5slab/slab"
)

// Kind is the kind of object a handle refers to.
type Kind string

const (
	KindGroup    Kind = "group"
	KindDataset  Kind = "dataset"
	KindType     Kind = "type"
	KindSpace    Kind = "space"
	KindMemSpace Kind = "memspace"
)

// Record describes one handle the store has handed out.
type Record struct {
	Handle slab.Handle
	Kind   Kind
	Closes int
}

// Dataset is an in-memory dataset: row-major elements in host order.
type Dataset struct {
	Type  slab.Type
	Dims  []uint64
	Data  []byte
	Attrs map[string]bool
}

type object struct {
	kind   Kind
	ds     *Dataset
	dims   []uint64
	offset []uint64
	count  []uint64
}

// Store is an in-memory slab.Store. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	datasets map[string]*Dataset
	objects  map[slab.Handle]*object
	records  []*Record
	next     slab.Handle
	root     slab.Handle
	calls    int
	failures map[string]error
}

// New returns an empty store with a root group.
func New() *Store {
	s := &Store{
		datasets: make(map[string]*Dataset),
		objects:  make(map[slab.Handle]*object),
		failures: make(map[string]error),
	}
	s.next = 1
	s.root = s.next
	s.objects[s.root] = &object{kind: KindGroup}
	s.next++
	return s
}

// Add stores values under name with the given on-disk dims.
func Add[T slab.Element](s *Store, name string, dims []uint64, values []T) *Dataset {
	var zero T
	size := int(unsafe.Sizeof(zero))
	data := make([]byte, len(values)*size)
	if len(values) > 0 {
		copy(data, unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(data)))
	}
	ds := &Dataset{
		Type:  slab.TypeOf[T](),
		Dims:  append([]uint64(nil), dims...),
		Data:  data,
		Attrs: make(map[string]bool),
	}
	s.mu.Lock()
	s.datasets[name] = ds
	s.mu.Unlock()
	return ds
}

// Root returns the root group handle. It is not counted as open.
func (s *Store) Root() slab.Handle { return s.root }

// FailOn makes every later call of the named Store method return err.
// A nil err clears the failure.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns the number of Store method invocations so far.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Live returns the number of handles opened and not yet closed.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects) - 1
}

// Records returns a copy of every handle record, in acquisition order.
func (s *Store) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// RecordsOf returns the records of one kind.
func (s *Store) RecordsOf(k Kind) []Record {
	var out []Record
	for _, r := range s.Records() {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

// ErrInvalidHandle is returned for unknown or already closed handles.
var ErrInvalidHandle = errors.New("slabtest: invalid handle")

func (s *Store) enter(method string) error {
	s.calls++
	return s.failures[method]
}

func (s *Store) open(o *object) slab.Handle {
	h := s.next
	s.next++
	s.objects[h] = o
	s.records = append(s.records, &Record{Handle: h, Kind: o.kind})
	return h
}

func (s *Store) get(h slab.Handle, kinds ...Kind) (*object, error) {
	o, ok := s.objects[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	for _, k := range kinds {
		if o.kind == k {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %d is a %s", ErrInvalidHandle, h, o.kind)
}

func (s *Store) OpenDataset(group slab.Handle, name string) (slab.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("OpenDataset"); err != nil {
		return 0, err
	}
	if _, err := s.get(group, KindGroup); err != nil {
		return 0, err
	}
	ds, ok := s.datasets[name]
	if !ok {
		return 0, fmt.Errorf("slabtest: no dataset %q", name)
	}
	return s.open(&object{kind: KindDataset, ds: ds}), nil
}

func (s *Store) DatasetType(ds slab.Handle) (slab.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DatasetType"); err != nil {
		return 0, err
	}
	o, err := s.get(ds, KindDataset)
	if err != nil {
		return 0, err
	}
	return s.open(&object{kind: KindType, ds: o.ds}), nil
}

func (s *Store) TypeEqual(fileType slab.Handle, mem slab.Type) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("TypeEqual"); err != nil {
		return false, err
	}
	o, err := s.get(fileType, KindType)
	if err != nil {
		return false, err
	}
	return o.ds.Type == mem, nil
}

func (s *Store) DatasetSpace(ds slab.Handle) (slab.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DatasetSpace"); err != nil {
		return 0, err
	}
	o, err := s.get(ds, KindDataset)
	if err != nil {
		return 0, err
	}
	return s.open(&object{kind: KindSpace, dims: o.ds.Dims}), nil
}

func (s *Store) ExtentRank(space slab.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExtentRank"); err != nil {
		return 0, err
	}
	o, err := s.get(space, KindSpace, KindMemSpace)
	if err != nil {
		return 0, err
	}
	return len(o.dims), nil
}

func (s *Store) ExtentDims(space slab.Handle) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ExtentDims"); err != nil {
		return nil, err
	}
	o, err := s.get(space, KindSpace, KindMemSpace)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), o.dims...), nil
}

func (s *Store) AttrExists(obj slab.Handle, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AttrExists"); err != nil {
		return false, err
	}
	o, err := s.get(obj, KindDataset)
	if err != nil {
		return false, err
	}
	return o.ds.Attrs[name], nil
}

func (s *Store) CreateSimple(dims []uint64) (slab.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateSimple"); err != nil {
		return 0, err
	}
	return s.open(&object{kind: KindMemSpace, dims: append([]uint64(nil), dims...)}), nil
}

func (s *Store) SelectHyperslab(space slab.Handle, offset, count []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SelectHyperslab"); err != nil {
		return err
	}
	o, err := s.get(space, KindSpace, KindMemSpace)
	if err != nil {
		return err
	}
	if len(offset) != len(o.dims) || len(count) != len(o.dims) {
		return fmt.Errorf("slabtest: selection rank %d/%d, space rank %d", len(offset), len(count), len(o.dims))
	}
	for d := range o.dims {
		if offset[d] > o.dims[d] || count[d] > o.dims[d]-offset[d] {
			return fmt.Errorf("slabtest: axis %d: offset %d, count %d exceeds %d", d, offset[d], count[d], o.dims[d])
		}
	}
	o.offset = append([]uint64(nil), offset...)
	o.count = append([]uint64(nil), count...)
	return nil
}

func (s *Store) Read(ds slab.Handle, mem slab.Type, memSpace, fileSpace slab.Handle, dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Read"); err != nil {
		return err
	}
	d, err := s.get(ds, KindDataset)
	if err != nil {
		return err
	}
	ms, err := s.get(memSpace, KindMemSpace)
	if err != nil {
		return err
	}
	fs, err := s.get(fileSpace, KindSpace)
	if err != nil {
		return err
	}
	if d.ds.Type != mem {
		return fmt.Errorf("slabtest: no conversion from %+v to %+v", d.ds.Type, mem)
	}
	fOff, fCount := selection(fs)
	_, mCount := selection(ms)
	if count(fCount) != count(mCount) {
		return fmt.Errorf("slabtest: file selection has %d elements, memory %d", count(fCount), count(mCount))
	}
	size := mem.Size
	if len(dst) != count(fCount)*size {
		return fmt.Errorf("slabtest: destination is %d bytes, need %d", len(dst), count(fCount)*size)
	}
	if count(fCount) == 0 {
		return nil
	}

	// Walk the box in row-major order; the memory side is contiguous.
	idx := make([]uint64, len(fCount))
	for k := 0; k < count(fCount); k++ {
		lin := uint64(0)
		for dim := range idx {
			lin = lin*d.ds.Dims[dim] + fOff[dim] + idx[dim]
		}
		copy(dst[k*size:(k+1)*size], d.ds.Data[int(lin)*size:])
		for dim := len(idx) - 1; dim >= 0; dim-- {
			idx[dim]++
			if idx[dim] < fCount[dim] {
				break
			}
			idx[dim] = 0
		}
	}
	return nil
}

func (s *Store) Close(h slab.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.Handle == h {
			r.Closes++
		}
	}
	failure := s.enter("Close")
	if h == s.root {
		return fmt.Errorf("%w: root group is not closable", ErrInvalidHandle)
	}
	if _, ok := s.objects[h]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	delete(s.objects, h)
	return failure
}

func selection(o *object) (offset, cnt []uint64) {
	if o.count == nil {
		return make([]uint64, len(o.dims)), o.dims
	}
	return o.offset, o.count
}

func count(dims []uint64) int {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n
}
