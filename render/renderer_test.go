package render

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/planetiler/planetiler-go/tileid"
)

// TestRenderSinglePoint is scenario E1 from SPEC_FULL.md §8: one point at
// (0,0) emitted to a point layer at z=0..1 should land in tiles (0,0,0)
// and (0,0,1), each at tile-local (2048,2048).
func TestRenderSinglePoint(t *testing.T) {
	r := NewRenderer(tileid.Hilbert)
	geom := orb.Point{0, 0}

	opts := LayerOptions{
		Layer:        "poi",
		LayerID:      0,
		GeometryKind: KindPoint,
		MinZoom:      0,
		MaxZoom:      1,
	}

	var got []Feature
	err := r.Render(geom, opts, func(f Feature) error {
		got = append(got, f)
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	for _, f := range got {
		assert.Equal(t, Point, f.GeomType)
		parts, err := DecodeGeometry(f.GeomType, f.Geometry)
		assert.NoError(t, err)
		assert.Len(t, parts, 1)
		assert.Len(t, parts[0], 1)
		assert.InDelta(t, 2048, parts[0][0].X, 1)
		assert.InDelta(t, 2048, parts[0][0].Y, 1)
	}
}

func TestRenderRespectsZoomRange(t *testing.T) {
	r := NewRenderer(tileid.TMS)
	geom := orb.Point{10, 10}
	opts := LayerOptions{GeometryKind: KindPoint, MinZoom: 2, MaxZoom: 4}

	count := 0
	err := r.Render(geom, opts, func(f Feature) error {
		count++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}
