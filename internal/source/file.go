package source

import (
	"fmt"
	"os"
)

type file struct {
	*os.File
	size int64
}

// OpenFile opens a local file for positioned reads.
func OpenFile(name string) (Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("source: %s is a directory", name)
	}
	return &file{File: f, size: st.Size()}, nil
}

func (f *file) Size() int64 { return f.size }
