package hdf5_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/hdf5"
	"github.com/robert-malhotra/h5slab/internal/h5test"
)

func linked(legacy bool) *h5test.File {
	f := h5test.New()
	f.Legacy = legacy
	g := f.Root.Group("data")
	g.Dataset("v", h5test.Of([]uint64{3}, []int32{4, 5, 6}))
	g.SoftLink("rel", "v")
	f.Root.SoftLink("abs", "/data/v")
	f.Root.SoftLink("dir", "/data")
	f.Root.SoftLink("dangling", "/nowhere")
	f.Root.SoftLink("loop1", "/loop2")
	f.Root.SoftLink("loop2", "/loop1")
	return f
}

func TestSoftLinks(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		f := open(t, linked(legacy))

		for _, p := range []string{"/abs", "abs", "/data/rel", "/dir/v", "/dir/rel", "/data/./v"} {
			ds, err := f.OpenDataset(p)
			require.NoError(t, err, p)
			got, err := hdf5.ReadAll[int32](ds)
			require.NoError(t, err, p)
			assert.Equal(t, []int32{4, 5, 6}, got, p)
		}

		g, err := f.OpenGroup("dir")
		require.NoError(t, err)
		members, err := g.Members()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"v", "rel"}, members)

		_, err = f.OpenDataset("/dangling")
		assert.ErrorIs(t, err, hdf5.ErrNotFound)
		_, err = f.OpenDataset("/loop1")
		assert.ErrorIs(t, err, hdf5.ErrLinkDepth)
	}
}

func TestLinks(t *testing.T) {
	f := open(t, linked(false))
	links, err := f.Root().Links()
	require.NoError(t, err)
	require.Len(t, links, 6)
	assert.Equal(t, "data", links[0].Name)
	assert.Equal(t, hdf5.HardLink, links[0].Kind)
	assert.Equal(t, hdf5.SoftLink, links[1].Kind)
	assert.Equal(t, "/data/v", links[1].Target)
	assert.Equal(t, "soft", links[1].Kind.String())
}

func TestOpenErrors(t *testing.T) {
	f := open(t, linked(false))

	_, err := f.OpenDataset("/data")
	assert.ErrorIs(t, err, hdf5.ErrNotDataset)
	_, err = f.OpenGroup("/data/v")
	assert.ErrorIs(t, err, hdf5.ErrNotGroup)
	_, err = f.OpenDataset("/data/v/x")
	assert.ErrorIs(t, err, hdf5.ErrNotGroup)
	_, err = f.OpenDataset("/data/w")
	assert.ErrorIs(t, err, hdf5.ErrNotFound)
	_, err = f.OpenDataset("../data/v")
	assert.ErrorIs(t, err, hdf5.ErrInvalidPath)
}

func TestExternalLinks(t *testing.T) {
	dir := t.TempDir()
	other := h5test.New()
	other.Root.Group("g").Dataset("y", h5test.Of([]uint64{2}, []float32{1.5, 2.5}))
	other.Save(t, filepath.Join(dir, "other.h5"))

	top := h5test.New()
	top.Root.ExternalLink("far", "other.h5", "/g/y")
	top.Root.ExternalLink("farg", "other.h5", "/g")
	top.Root.ExternalLink("gone", "missing.h5", "/y")
	path := filepath.Join(dir, "main.h5")
	top.Save(t, path)

	f, err := hdf5.Open(path)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.OpenDataset("/far")
	require.NoError(t, err)
	got, err := hdf5.ReadAll[float32](ds)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, got)

	ds, err = f.OpenDataset("/farg/y")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ds.Shape())

	_, err = f.OpenDataset("/gone")
	assert.Error(t, err)

	b, err := top.Bytes()
	require.NoError(t, err)
	r, err := hdf5.OpenReaderAt(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	_, err = r.OpenDataset("/far")
	assert.ErrorIs(t, err, hdf5.ErrUnsupported)

	r, err = hdf5.OpenReaderAt(bytes.NewReader(b), int64(len(b)),
		hdf5.WithExternalOpener(func(name string) (*hdf5.File, error) {
			return hdf5.Open(filepath.Join(dir, name))
		}))
	require.NoError(t, err)
	_, err = r.OpenDataset("/far")
	assert.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestWalk(t *testing.T) {
	src := h5test.New()
	a := src.Root.Group("a")
	a.Dataset("x", h5test.Of([]uint64{1}, []int8{1}))
	a.Group("deep").Dataset("z", h5test.Of([]uint64{1}, []int8{1}))
	src.Root.Group("b").SoftLink("toa", "/a")
	src.Root.Dataset("y", h5test.Of([]uint64{1}, []int8{1})).Attr(h5test.Scalar("k", int32(1)))

	f := open(t, src)
	var paths []string
	var soft []string
	err := hdf5.Walk(f.Root(), func(e hdf5.Entry) error {
		require.NoError(t, e.Err)
		paths = append(paths, e.Path)
		if e.Link.Kind == hdf5.SoftLink {
			assert.Nil(t, e.Object)
			soft = append(soft, e.Path+" -> "+e.Link.Target)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/a/x", "/a/deep", "/a/deep/z", "/b", "/b/toa", "/y"}, paths)
	assert.Equal(t, []string{"/b/toa -> /a"}, soft)

	paths = nil
	err = hdf5.Walk(f.Root(), func(e hdf5.Entry) error {
		paths = append(paths, e.Path)
		if e.Path == "/a" {
			return hdf5.SkipGroup
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/b", "/b/toa", "/y"}, paths)

	var attrs []string
	require.NoError(t, hdf5.WalkAttrs(f.Root(), func(a hdf5.AttrEntry) error {
		attrs = append(attrs, a.Path)
		return nil
	}))
	assert.Equal(t, []string{"/y@k"}, attrs)
}
