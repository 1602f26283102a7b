package slab

import "unsafe"

// Element is the set of numeric types an Array can hold.
type Element interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// TypeOf returns the memory Type of T.
func TypeOf[T Element]() Type {
	var zero T
	size := int(unsafe.Sizeof(zero))
	// Classified by arithmetic so named types (type Kelvin float32) work.
	if isFloat[T]() {
		return Type{Class: ClassFloat, Size: size, Signed: true}
	}
	return Type{Class: ClassInteger, Size: size, Signed: isSigned[T]()}
}

func isFloat[T Element]() bool {
	var half T = 1
	half /= 2
	return half != 0
}

func isSigned[T Element]() bool {
	var zero T
	return zero-1 < zero
}

// asBytes reinterprets s as its raw host-order bytes.
func asBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
