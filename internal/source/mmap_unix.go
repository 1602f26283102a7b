//go:build unix

package source

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mapped is a read-only shared mapping of a whole file.
type mapped struct {
	mu   sync.RWMutex
	data []byte
	size int64
}

// OpenMapped maps a local file into memory. HDF5 reads jump between
// metadata and chunks, so the mapping is advised for random access.
func OpenMapped(name string) (Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("source: %s is a directory", name)
	}
	m := &mapped{size: st.Size()}
	if m.size == 0 {
		return m, nil
	}
	if int64(int(m.size)) != m.size {
		return nil, fmt.Errorf("source: %s is too large to map", name)
	}
	m.data, err = unix.Mmap(int(f.Fd()), 0, int(m.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("source: mmap %s: %w", name, err)
	}
	// Advisory only.
	_ = unix.Madvise(m.data, unix.MADV_RANDOM)
	return m, nil
}

func (m *mapped) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil && m.size > 0 {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("source: negative offset %d", off)
	}
	if off >= m.size {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mapped) Size() int64 { return m.size }

func (m *mapped) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

func (m *mapped) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
