package hdf5_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5slab/internal/h5test"
)

func TestAttributes(t *testing.T) {
	for _, legacy := range []bool{false, true} {
		src := h5test.New()
		src.Legacy = legacy
		src.Root.Dataset("d", h5test.Of([]uint64{2}, []float32{1, 2})).Attr(
			h5test.Scalar("count", uint16(9)),
			h5test.Values("bounds", -1.5, 1.5),
			h5test.Text("units", "kelvin"),
			h5test.VarText("source", "model"),
			h5test.VarText("tags", "a", "bb", ""),
		)

		f := open(t, src)
		ds, err := f.OpenDataset("d")
		require.NoError(t, err)

		var names []string
		for _, a := range ds.Attrs() {
			names = append(names, a.Name())
		}
		assert.Equal(t, []string{"count", "bounds", "units", "source", "tags"}, names)
		assert.True(t, ds.HasAttr("units"))
		assert.False(t, ds.HasAttr("unit"))
		assert.Nil(t, ds.Attr("unit"))

		for _, tc := range []struct {
			name   string
			scalar bool
			shape  []uint64
			want   any
		}{
			{"count", true, nil, uint64(9)},
			{"bounds", false, []uint64{2}, []any{-1.5, 1.5}},
			{"units", true, nil, "kelvin"},
			{"source", true, nil, "model"},
			{"tags", false, []uint64{3}, []any{"a", "bb", ""}},
		} {
			a := ds.Attr(tc.name)
			require.NotNil(t, a, tc.name)
			assert.Equal(t, tc.scalar, a.Scalar(), tc.name)
			if tc.shape != nil {
				assert.Equal(t, tc.shape, a.Shape(), tc.name)
			} else {
				assert.Empty(t, a.Shape(), tc.name)
			}
			v, err := a.Value()
			require.NoError(t, err, tc.name)
			assert.Equal(t, tc.want, v, tc.name)
		}
		assert.Equal(t, uint64(3), ds.Attr("tags").NumElements())
	}
}
