// Package sortkey packs (tileId, layerId, sortOrder, featureOrder) into a
// single big-endian-comparable 64-bit key. Sorting render-features by this
// key yields tiles in archive order, layers in declared order within a
// tile, and profile-supplied sortOrder within a layer — stable by emission
// order on ties (see SPEC_FULL.md §3).
package sortkey

// Key is a packed sort key:
//
//	[ tileId:32 | layerId:8 | sortOrder:16 | featureOrder:8 ]
type Key uint64

const (
	tileIDBits       = 32
	layerIDBits      = 8
	sortOrderBits    = 16
	featureOrderBits = 8

	tileIDShift    = layerIDBits + sortOrderBits + featureOrderBits
	layerIDShift   = sortOrderBits + featureOrderBits
	sortOrderShift = featureOrderBits
)

// Pack builds a Key from its components. layerID, sortOrder and
// featureOrder each occupy exactly as many bits as their Go type already
// guarantees (uint8, uint16, uint8), so there is no out-of-range case to
// reject here.
func Pack(tileID uint32, layerID uint8, sortOrder uint16, featureOrder uint8) Key {
	return Key(uint64(tileID)<<tileIDShift |
		uint64(layerID)<<layerIDShift |
		uint64(sortOrder)<<sortOrderShift |
		uint64(featureOrder))
}

// TileID extracts the top 32 bits.
func (k Key) TileID() uint32 {
	return uint32(uint64(k) >> tileIDShift)
}

// LayerID extracts the layer-id byte.
func (k Key) LayerID() uint8 {
	return uint8(uint64(k) >> layerIDShift)
}

// SortOrder extracts the profile-supplied sort order.
func (k Key) SortOrder() uint16 {
	return uint16(uint64(k) >> sortOrderShift)
}

// FeatureOrder extracts the emission-order tie-breaker.
func (k Key) FeatureOrder() uint8 {
	return uint8(uint64(k))
}

// Less reports whether k sorts before other. Keys compare as plain
// unsigned integers since all fields are packed big-endian-style from
// most to least significant.
func (k Key) Less(other Key) bool {
	return k < other
}
