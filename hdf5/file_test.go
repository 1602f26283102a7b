package hdf5_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/internal/h5test"
)

func open(t *testing.T, f *h5test.File) *hdf5.File {
	t.Helper()
	h, err := hdf5.Open(f.Path(t))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func seq[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64](n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(i)
	}
	return out
}

func bytesOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// box extracts the row-major box at start with size count from values of
// extent dims.
func box[T any](values []T, dims, start, count []uint64) []T {
	var out []T
	idx := make([]uint64, len(dims))
	for {
		lin := uint64(0)
		for i := range dims {
			lin = lin*dims[i] + start[i] + idx[i]
		}
		out = append(out, values[lin])
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < count[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

func TestOpen(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		name := "modern"
		if legacy {
			name = "legacy"
		}
		t.Run(name, func(t *testing.T) {
			src := h5test.New()
			src.Legacy = legacy
			src.Root.Group("grid").Dataset("t", h5test.Of([]uint64{3, 4}, seq[float64](12)))
			src.Root.Dataset("n", h5test.Of([]uint64{5}, seq[int32](5)))

			f := open(t, src)
			if legacy {
				assert.Equal(t, 0, f.Version())
			} else {
				assert.Equal(t, 2, f.Version())
			}
			members, err := f.Root().Members()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"grid", "n"}, members)

			ds, err := f.OpenDataset("/grid/t")
			require.NoError(t, err)
			assert.Equal(t, []uint64{3, 4}, ds.Shape())
			assert.Equal(t, "/grid/t", ds.Path())
			assert.Equal(t, "t", ds.Name())
			assert.Equal(t, "float64", ds.TypeName())

			got, err := hdf5.ReadAll[float64](ds)
			require.NoError(t, err)
			assert.Equal(t, seq[float64](12), got)
		})
	}
}

func TestOpenUserBlock(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		src := h5test.New()
		src.Legacy = legacy
		src.UserBlock = 1024
		src.Root.Dataset("d", h5test.Of([]uint64{2, 2}, []int16{1, 2, 3, 4}))

		f := open(t, src)
		ds, err := f.OpenDataset("d")
		require.NoError(t, err)
		got, err := hdf5.ReadAll[int16](ds)
		require.NoError(t, err)
		assert.Equal(t, []int16{1, 2, 3, 4}, got)
	}
}

func TestOpenReaderAt(t *testing.T) {
	src := h5test.New()
	src.Root.Dataset("d", h5test.Of([]uint64{3}, []uint8{7, 8, 9}))
	b, err := src.Bytes()
	require.NoError(t, err)

	f, err := hdf5.OpenReaderAt(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "", f.Name())
	assert.Equal(t, int64(len(b)), f.Size())

	ds, err := f.OpenDataset("/d")
	require.NoError(t, err)
	got, err := hdf5.ReadAll[uint8](ds)
	require.NoError(t, err)
	assert.Equal(t, []uint8{7, 8, 9}, got)
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error { c.n++; return nil }

func TestOpenReaderAtCloser(t *testing.T) {
	src := h5test.New()
	b, err := src.Bytes()
	require.NoError(t, err)

	c := &closeCounter{}
	f, err := hdf5.OpenReaderAt(bytes.NewReader(b), int64(len(b)), hdf5.WithCloser(c))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Equal(t, 1, c.n)

	_, err = hdf5.OpenReaderAt(bytes.NewReader(b[:16]), 16, hdf5.WithCloser(c))
	assert.Error(t, err)
	assert.Equal(t, 1, c.n)
}

func TestOpenNotHDF5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.h5")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not hdf5"), 128), 0o644))
	_, err := hdf5.Open(path)
	assert.ErrorIs(t, err, hdf5.ErrNotHDF5)

	_, err = hdf5.Open(filepath.Join(t.TempDir(), "missing.h5"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClose(t *testing.T) {
	src := h5test.New()
	src.Root.Dataset("d", h5test.Of([]uint64{2}, []int8{1, 2}))
	f, err := hdf5.Open(src.Path(t))
	require.NoError(t, err)
	ds, err := f.OpenDataset("d")
	require.NoError(t, err)

	require.NoError(t, f.Close())
	assert.NoError(t, f.Close())

	_, err = f.OpenDataset("d")
	assert.ErrorIs(t, err, hdf5.ErrClosed)
	_, err = f.Root().Links()
	assert.ErrorIs(t, err, hdf5.ErrClosed)
	_, err = hdf5.ReadAll[int8](ds)
	assert.ErrorIs(t, err, hdf5.ErrClosed)
}

func TestFileAttr(t *testing.T) {
	src := h5test.New()
	src.Root.Attr(h5test.Text("title", "run 7"))
	src.Root.Group("g").Dataset("d", h5test.Of([]uint64{1}, []float32{1})).
		Attr(h5test.Scalar("scale", 0.5))

	f := open(t, src)
	a, err := f.Attr("/@title")
	require.NoError(t, err)
	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, "run 7", v)

	a, err = f.Attr("/g/d@scale")
	require.NoError(t, err)
	v, err = a.Value()
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	_, err = f.Attr("/g/d@missing")
	assert.ErrorIs(t, err, hdf5.ErrNotFound)
	_, err = f.Attr("/g/d")
	assert.ErrorIs(t, err, hdf5.ErrInvalidPath)
}
