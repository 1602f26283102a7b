package btree

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5slab/internal/binary"
)

// ErrCycle is returned when a tree visits the same node twice.
var ErrCycle = errors.New("btree: node visited twice")

// Version 1 node types.
const (
	nodeGroup = 0
	nodeChunk = 1
)

// maxDepth bounds the height of any tree walked.
const maxDepth = 64

// v1Node is a decoded version 1 node: n children and n+1 keys.
type v1Node struct {
	level    int
	keys     [][]byte
	children []uint64
}

func readV1Node(r *binary.Reader, addr uint64, kind uint8, keySize int) (*v1Node, error) {
	head := 8 + 2*r.OffsetSize()
	d, err := r.Decoder(addr, head)
	if err != nil {
		return nil, fmt.Errorf("btree node at %#x: %w", addr, err)
	}
	d.Signature("TREE")
	if t := d.Uint8(); d.Err() == nil && t != kind {
		return nil, fmt.Errorf("btree node at %#x: type %d, want %d", addr, t, kind)
	}
	n := &v1Node{level: int(d.Uint8())}
	entries := int(d.Uint16())
	d.Skip(2 * r.OffsetSize()) // siblings
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("btree node at %#x: %w", addr, err)
	}

	body, err := r.Decoder(addr+uint64(head), (entries+1)*keySize+entries*r.OffsetSize())
	if err != nil {
		return nil, fmt.Errorf("btree node at %#x: %w", addr, err)
	}
	for i := 0; i < entries; i++ {
		n.keys = append(n.keys, body.Bytes(keySize))
		n.children = append(n.children, body.Offset())
	}
	n.keys = append(n.keys, body.Bytes(keySize))
	return n, body.Err()
}

// walkV1 visits every leaf entry of the tree rooted at addr.
func walkV1(r *binary.Reader, addr uint64, kind uint8, keySize int, leaf func(key []byte, child uint64) error) error {
	seen := make(map[uint64]bool)
	var walk func(addr uint64, depth int) error
	walk = func(addr uint64, depth int) error {
		if seen[addr] || depth > maxDepth {
			return fmt.Errorf("%w: %#x", ErrCycle, addr)
		}
		seen[addr] = true
		n, err := readV1Node(r, addr, kind, keySize)
		if err != nil {
			return err
		}
		for i, child := range n.children {
			if n.level == 0 {
				err = leaf(n.keys[i], child)
			} else {
				err = walk(child, depth+1)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return walk(addr, 0)
}
