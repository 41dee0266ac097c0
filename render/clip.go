package render

import "math"

// tileExtent is the tile-local coordinate grid size, per SPEC_FULL.md §3.
const tileExtent = 4096.0

// mercBound is a tile's bound in spherical-mercator meters, expanded by the
// configured per-zoom pixel buffer; buf is the padding added on each side.
type mercBound struct {
	minX, minY, maxX, maxY float64
	buf                    float64
}

const earthCircumference = 40075016.6855785

// tileMercBound returns the mercator bound of tile (z, x, y), padded by
// bufferPixels (in units of the tile's own 256-pixel nominal size).
func tileMercBound(z uint8, x, y uint32, bufferPixels float64) mercBound {
	n := math.Exp2(float64(z))
	tileSize := earthCircumference / n
	originX := -earthCircumference / 2
	originY := earthCircumference / 2

	minX := originX + float64(x)*tileSize
	maxX := minX + tileSize
	maxY := originY - float64(y)*tileSize
	minY := maxY - tileSize

	buf := tileSize * (bufferPixels / 256.0)
	return mercBound{minX - buf, minY - buf, maxX + buf, maxY + buf, buf}
}

// toTileLocal maps a mercator point inside (or near) the padded tile bound
// into the tile-local integer grid, in which the unpadded tile spans
// 0..4096; a point in the buffer maps outside [0,4096]. No clamping is
// applied.
func toTileLocal(b mercBound, x, y float64) Coord {
	minX, maxY := b.minX+b.buf, b.maxY-b.buf
	width := b.maxX - b.minX - 2*b.buf
	height := b.maxY - b.minY - 2*b.buf
	lx := (x - minX) / width
	ly := (maxY - y) / height
	return Coord{
		X: int32(math.Round(lx * tileExtent)),
		Y: int32(math.Round(ly * tileExtent)),
	}
}

// clipRingToBound runs Sutherland-Hodgman polygon clipping against an
// axis-aligned rectangle, for closed rings. points are mercator (x,y)
// pairs; the returned ring is still in mercator space.
func clipRingToBound(points [][2]float64, b mercBound) [][2]float64 {
	clip := func(pts [][2]float64, inside func(p [2]float64) bool, intersect func(a, b [2]float64) [2]float64) [][2]float64 {
		if len(pts) == 0 {
			return pts
		}
		out := make([][2]float64, 0, len(pts))
		prev := pts[len(pts)-1]
		prevIn := inside(prev)
		for _, cur := range pts {
			curIn := inside(cur)
			if curIn {
				if !prevIn {
					out = append(out, intersect(prev, cur))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, intersect(prev, cur))
			}
			prev, prevIn = cur, curIn
		}
		return out
	}

	pts := points
	pts = clip(pts, func(p [2]float64) bool { return p[0] >= b.minX },
		func(a, c [2]float64) [2]float64 {
			t := (b.minX - a[0]) / (c[0] - a[0])
			return [2]float64{b.minX, a[1] + t*(c[1]-a[1])}
		})
	pts = clip(pts, func(p [2]float64) bool { return p[0] <= b.maxX },
		func(a, c [2]float64) [2]float64 {
			t := (b.maxX - a[0]) / (c[0] - a[0])
			return [2]float64{b.maxX, a[1] + t*(c[1]-a[1])}
		})
	pts = clip(pts, func(p [2]float64) bool { return p[1] >= b.minY },
		func(a, c [2]float64) [2]float64 {
			t := (b.minY - a[1]) / (c[1] - a[1])
			return [2]float64{a[0] + t*(c[0]-a[0]), b.minY}
		})
	pts = clip(pts, func(p [2]float64) bool { return p[1] <= b.maxY },
		func(a, c [2]float64) [2]float64 {
			t := (b.maxY - a[1]) / (c[1] - a[1])
			return [2]float64{a[0] + t*(c[0]-a[0]), b.maxY}
		})
	return pts
}

// clipLineToBound clips an open polyline against the bound using
// Liang-Barsky segment clipping, returning zero or more
// disjoint sub-segments (a line may exit and re-enter the tile).
func clipLineToBound(points [][2]float64, b mercBound) [][][2]float64 {
	clipSegment := func(a, c [2]float64) (out [2][2]float64, ok bool) {
		// Liang-Barsky
		dx, dy := c[0]-a[0], c[1]-a[1]
		t0, t1 := 0.0, 1.0
		p := []float64{-dx, dx, -dy, dy}
		q := []float64{a[0] - b.minX, b.maxX - a[0], a[1] - b.minY, b.maxY - a[1]}
		for i := 0; i < 4; i++ {
			if p[i] == 0 {
				if q[i] < 0 {
					return out, false
				}
				continue
			}
			r := q[i] / p[i]
			if p[i] < 0 {
				if r > t1 {
					return out, false
				}
				if r > t0 {
					t0 = r
				}
			} else {
				if r < t0 {
					return out, false
				}
				if r < t1 {
					t1 = r
				}
			}
		}
		out[0] = [2]float64{a[0] + t0*dx, a[1] + t0*dy}
		out[1] = [2]float64{a[0] + t1*dx, a[1] + t1*dy}
		return out, true
	}

	var result [][][2]float64
	var current [][2]float64
	for i := 0; i+1 < len(points); i++ {
		seg, ok := clipSegment(points[i], points[i+1])
		if !ok {
			if len(current) > 1 {
				result = append(result, current)
			}
			current = nil
			continue
		}
		// A segment that starts outside the bound re-enters the tile, so
		// it begins a new part.
		p := points[i]
		outside := p[0] < b.minX || p[0] > b.maxX || p[1] < b.minY || p[1] > b.maxY
		if len(current) == 0 || outside {
			if len(current) > 1 {
				result = append(result, current)
			}
			current = [][2]float64{seg[0]}
		}
		current = append(current, seg[1])
	}
	if len(current) > 1 {
		result = append(result, current)
	}
	return result
}

// isFullTileRing reports whether a clipped ring is (within rounding)
// exactly the tile boundary — the "fill tile" condition from SPEC_FULL.md §4.2:
// its bounding box reaches all four tile edges and the ring fills that box.
func isFullTileRing(ring []Coord) bool {
	if len(ring) < 4 {
		return false
	}
	var minX, minY int32 = ring[0].X, ring[0].Y
	var maxX, maxY int32 = ring[0].X, ring[0].Y
	for _, p := range ring {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	const tol = 2
	var area2 int64 // twice the ring's area (shoelace)
	for i := range ring {
		j := (i + 1) % len(ring)
		area2 += int64(ring[i].X)*int64(ring[j].Y) - int64(ring[j].X)*int64(ring[i].Y)
	}
	if area2 < 0 {
		area2 = -area2
	}
	slack := 4 * tol * int64((maxX-minX)+(maxY-minY))
	if 2*int64(maxX-minX)*int64(maxY-minY)-area2 > slack {
		return false
	}
	return minX <= tol && minY <= tol && maxX >= int32(tileExtent)-tol && maxY >= int32(tileExtent)-tol
}
