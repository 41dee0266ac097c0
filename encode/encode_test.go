package encode

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/render"
	"github.com/planetiler/planetiler-go/sortkey"
	"github.com/planetiler/planetiler-go/tilegroup"
)

func testKeyName(id int) string {
	names := []string{"name", "kind"}
	if id < 0 || id >= len(names) {
		return "unknown"
	}
	return names[id]
}

func TestEncodeTileProducesGzippedMVT(t *testing.T) {
	attrs := render.EncodeAttrs([]render.Attr{{KeyID: 0, Type: render.AttrString, Str: "Main St"}})
	f := render.Feature{
		SortKey:  sortkey.Pack(7, 0, 0, 0),
		GeomType: render.Point,
		Geometry: render.EncodeRing([]render.Coord{{X: 100, Y: 200}}),
		Attrs:    attrs,
	}
	g := tilegroup.Group{
		TileID: 7,
		Layers: []tilegroup.Layer{{Name: "places", LayerID: 0, Features: []render.Feature{f}}},
	}

	res, err := EncodeTile(g, testKeyName, true, true, true)
	require.NoError(t, err)
	require.NotEmpty(t, res.Data)
	assert.True(t, res.HasHash)
	assert.False(t, res.IsFill)

	gz, err := gzip.NewReader(bytes.NewReader(res.Data))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

// TestEncodeTileFlagsFillButKeepsData verifies SPEC_FULL.md §4.5/§8
// property 7: a fill-only tile is flagged IsFill but still carries its
// real, non-empty payload — the first occurrence of a run of identical
// fills must reach the archive, since the encoder pool (not EncodeTile)
// is what collapses later repeats down to zero bytes.
func TestEncodeTileFlagsFillButKeepsData(t *testing.T) {
	f := render.Feature{
		SortKey:           sortkey.Pack(1, 0, 0, 0),
		GeomType:          render.Polygon,
		Geometry:          render.EncodeRing([]render.Coord{{X: 0, Y: 0}, {X: 4096, Y: 0}, {X: 4096, Y: 4096}, {X: 0, Y: 4096}}),
		ContainsOnlyFills: true,
	}
	g := tilegroup.Group{
		TileID: 1,
		Layers: []tilegroup.Layer{{Name: "landcover", LayerID: 0, Features: []render.Feature{f}}},
	}

	res, err := EncodeTile(g, testKeyName, true, true, false)
	require.NoError(t, err)
	assert.True(t, res.IsFill)
	assert.NotEmpty(t, res.Data)
	assert.True(t, res.HasHash, "a fill tile's hash is always computed so a repeat can be detected")
}

func TestEncodeTileEmptyGroupIsFillOnlyWhenRequested(t *testing.T) {
	g := tilegroup.Group{TileID: 9}

	res, err := EncodeTile(g, testKeyName, false, true, false)
	require.NoError(t, err)
	assert.False(t, res.IsFill)

	res, err = EncodeTile(g, testKeyName, true, true, false)
	require.NoError(t, err)
	assert.True(t, res.IsFill)
}

func TestEncodeTileSkipsGzipWhenDisabled(t *testing.T) {
	f := render.Feature{
		SortKey:  sortkey.Pack(3, 0, 0, 0),
		GeomType: render.Point,
		Geometry: render.EncodeRing([]render.Coord{{X: 10, Y: 10}}),
	}
	g := tilegroup.Group{
		TileID: 3,
		Layers: []tilegroup.Layer{{Name: "places", LayerID: 0, Features: []render.Feature{f}}},
	}

	res, err := EncodeTile(g, testKeyName, true, false, false)
	require.NoError(t, err)
	assert.Equal(t, res.RawBytes, len(res.Data))
}
