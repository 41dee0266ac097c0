package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRing(t *testing.T) {
	points := []Coord{{0, 0}, {100, 50}, {-20, 4096}, {4096, -64}}
	encoded := EncodeRing(points)
	decoded, err := DecodeRing(encoded)
	assert.NoError(t, err)
	assert.Equal(t, points, decoded)
}

func TestEncodeDecodeGeometrySinglePart(t *testing.T) {
	ring := []Coord{{2048, 2048}}
	encoded := EncodeGeometry(Point, [][]Coord{ring})
	decoded, err := DecodeGeometry(Point, encoded)
	assert.NoError(t, err)
	assert.Equal(t, [][]Coord{ring}, decoded)
}

func TestEncodeGeometryPanicsOnWrongPartCountForSingleType(t *testing.T) {
	assert.Panics(t, func() {
		EncodeGeometry(Point, [][]Coord{{{0, 0}}, {{1, 1}}})
	})
}

func TestEncodeDecodeGeometryMultiPart(t *testing.T) {
	parts := [][]Coord{
		{{0, 0}, {10, 10}, {10, 0}},
		{{100, 100}, {110, 110}, {110, 100}},
	}
	encoded := EncodeGeometry(MultiPolygon, parts)
	decoded, err := DecodeGeometry(MultiPolygon, encoded)
	assert.NoError(t, err)
	assert.Equal(t, parts, decoded)
}

func TestEncodeDecodeAttrs(t *testing.T) {
	attrs := []Attr{
		{KeyID: 0, Type: AttrString, Str: "residential"},
		{KeyID: 1, Type: AttrLong, Long: -42},
		{KeyID: 2, Type: AttrDouble, Dbl: 3.14159},
		{KeyID: 3, Type: AttrBool, Bool: true},
	}
	encoded := EncodeAttrs(attrs)
	decoded, err := DecodeAttrs(encoded)
	assert.NoError(t, err)
	assert.Equal(t, attrs, decoded)
}

func TestEncodeDecodeEmptyAttrs(t *testing.T) {
	encoded := EncodeAttrs(nil)
	decoded, err := DecodeAttrs(encoded)
	assert.NoError(t, err)
	assert.Empty(t, decoded)
}
