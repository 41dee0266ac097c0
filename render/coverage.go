package render

import (
	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"

	"github.com/planetiler/planetiler-go/tileid"
)

// coverageID packs a (z,x,y) tile coordinate into the same kind of global,
// all-zooms-at-once ordinal the teacher's ZxyToID/generalizeOr
// (pmtiles/bitmap.go) use to track which tiles a geometry has already
// covered during a zoom-collapsing sweep. tileid.Hilbert already implements
// that packing (a per-level offset plus a within-level index), so it is
// reused here purely as an internal bookkeeping numbering, independent of
// whichever tileid.Order the archive Writer actually writes tiles under.
func coverageID(z uint8, x, y uint32) uint64 {
	return uint64(tileid.Hilbert.ID(tileid.Coord{Z: z, X: x, Y: y}))
}

func coverageCoord(id uint64) tileid.Coord {
	return tileid.Hilbert.Coord(uint32(id))
}

// coveredTiles computes, for every zoom from minZoom to maxZoom, the set of
// tiles geom covers. Rather than re-walking geom against tilecover.Geometry
// once per zoom, it computes the single most expensive covering set once at
// maxZoom and generalizes it upward one level at a time via roaring64.Bitmap
// ORs — the same zoom-collapsing technique as the teacher's
// bitmapMultiPolygon/generalizeOr: a tile covered at zoom z+1 always lies
// entirely within its zoom-z parent tile, so the parent is covered too, and
// repeating the tile-cover walk at every intermediate zoom is unnecessary.
func coveredTiles(geom orb.Geometry, minZoom, maxZoom int) (map[uint8][]maptile.Tile, error) {
	finest, err := tilecover.Geometry(geom, maptile.Zoom(maxZoom))
	if err != nil {
		return nil, err
	}

	bitmap := roaring64.New()
	for tile := range finest {
		bitmap.Add(coverageID(uint8(tile.Z), tile.X, tile.Y))
	}

	byZoom := make(map[uint8][]maptile.Tile, maxZoom-minZoom+1)
	for z := maxZoom; z >= minZoom; z-- {
		frontier := tilesAtZoom(bitmap, uint8(z))
		byZoom[uint8(z)] = frontier

		if z > minZoom {
			parents := roaring64.New()
			for _, tile := range frontier {
				parents.Add(coverageID(uint8(tile.Z)-1, tile.X/2, tile.Y/2))
			}
			bitmap.Or(parents)
		}
	}
	return byZoom, nil
}

// tilesAtZoom extracts the tiles in bitmap belonging to zoom z.
func tilesAtZoom(bitmap *roaring64.Bitmap, z uint8) []maptile.Tile {
	var tiles []maptile.Tile
	it := bitmap.Iterator()
	for it.HasNext() {
		c := coverageCoord(it.Next())
		if c.Z != z {
			continue
		}
		tiles = append(tiles, maptile.New(c.X, c.Y, maptile.Zoom(c.Z)))
	}
	return tiles
}
