package sortkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackExtract(t *testing.T) {
	k := Pack(12345, 7, 999, 3)
	assert.Equal(t, uint32(12345), k.TileID())
	assert.Equal(t, uint8(7), k.LayerID())
	assert.Equal(t, uint16(999), k.SortOrder())
	assert.Equal(t, uint8(3), k.FeatureOrder())
}

func TestMonotonicityByTileID(t *testing.T) {
	a := Pack(1, 255, 65535, 255)
	b := Pack(2, 0, 0, 0)
	assert.True(t, a.Less(b))
}

func TestMonotonicityByLayerWithinTile(t *testing.T) {
	a := Pack(5, 1, 65535, 255)
	b := Pack(5, 2, 0, 0)
	assert.True(t, a.Less(b))
}

func TestMonotonicityBySortOrderWithinLayer(t *testing.T) {
	a := Pack(5, 1, 10, 255)
	b := Pack(5, 1, 11, 0)
	assert.True(t, a.Less(b))
}

func TestTieBreakByFeatureOrder(t *testing.T) {
	a := Pack(5, 1, 10, 0)
	b := Pack(5, 1, 10, 1)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
