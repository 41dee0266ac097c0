package tilegroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/extsort"
	"github.com/planetiler/planetiler-go/render"
	"github.com/planetiler/planetiler-go/sortkey"
)

func appendFeature(t *testing.T, s *extsort.Sorter, tileID uint32, layerID uint8, sortOrder uint16, featureOrder uint8) {
	t.Helper()
	key := sortkey.Pack(tileID, layerID, sortOrder, featureOrder)
	f := render.Feature{SortKey: key, GeomType: render.Point, Geometry: render.EncodeRing([]render.Coord{{X: 1, Y: 2}})}
	require.NoError(t, s.Append(extsort.Record{Key: uint64(key), Payload: render.EncodeFeature(f)}))
}

func TestReaderGroupsByTile(t *testing.T) {
	s := extsort.NewSorter(t.TempDir(), 1<<20)
	appendFeature(t, s, 1, 0, 0, 0)
	appendFeature(t, s, 1, 1, 0, 0)
	appendFeature(t, s, 2, 0, 0, 0)
	require.NoError(t, s.Finish())

	it, err := s.Iter()
	require.NoError(t, err)
	defer it.Close()

	namer := func(id uint8) string {
		if id == 0 {
			return "layerA"
		}
		return "layerB"
	}
	r := NewReader(it, namer)

	g1, ok := r.Next()
	require.True(t, ok)
	assert.EqualValues(t, 1, g1.TileID)
	require.Len(t, g1.Layers, 2)
	assert.Equal(t, "layerA", g1.Layers[0].Name)
	assert.Equal(t, "layerB", g1.Layers[1].Name)

	g2, ok := r.Next()
	require.True(t, ok)
	assert.EqualValues(t, 2, g2.TileID)
	require.Len(t, g2.Layers, 1)

	_, ok = r.Next()
	assert.False(t, ok)
	assert.NoError(t, r.Err())
}

func TestReaderPreservesFeatureOrderWithinLayer(t *testing.T) {
	s := extsort.NewSorter(t.TempDir(), 1<<20)
	appendFeature(t, s, 5, 0, 0, 0)
	appendFeature(t, s, 5, 0, 0, 1)
	appendFeature(t, s, 5, 0, 0, 2)
	require.NoError(t, s.Finish())

	it, err := s.Iter()
	require.NoError(t, err)
	defer it.Close()

	r := NewReader(it, nil)
	g, ok := r.Next()
	require.True(t, ok)
	require.Len(t, g.Layers, 1)
	require.Len(t, g.Layers[0].Features, 3)
	for i, f := range g.Layers[0].Features {
		assert.EqualValues(t, i, f.SortKey.FeatureOrder())
	}
}

func TestFingerprintMatchesIdenticalLayers(t *testing.T) {
	key := sortkey.Pack(1, 0, 0, 0)
	f := render.Feature{SortKey: key, GeomType: render.Point, Geometry: render.EncodeRing([]render.Coord{{X: 3, Y: 4}})}
	a := Layer{Features: []render.Feature{f}}
	b := Layer{Features: []render.Feature{f}}
	assert.True(t, HasSameContents(a, b))

	f2 := f
	f2.Geometry = render.EncodeRing([]render.Coord{{X: 9, Y: 9}})
	c := Layer{Features: []render.Feature{f2}}
	assert.False(t, HasSameContents(a, c))
}
