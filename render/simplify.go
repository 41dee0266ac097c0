package render

import "math"

// SimplifyMethod selects the per-zoom simplification algorithm named in
// SPEC_FULL.md §4.2.
type SimplifyMethod int

const (
	DouglasPeucker SimplifyMethod = iota
	VisvalingamWhyatt
)

// douglasPeucker simplifies a tile-local polyline in place, keeping
// points whose perpendicular distance from the chord exceeds tolerance
// (in tile-local 4096-grid units).
func douglasPeucker(points []Coord, tolerance float64) []Coord {
	if len(points) < 3 || tolerance <= 0 {
		return points
	}
	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	var recurse func(lo, hi int)
	recurse = func(lo, hi int) {
		if hi <= lo+1 {
			return
		}
		maxDist := -1.0
		maxIdx := -1
		a, b := points[lo], points[hi]
		for i := lo + 1; i < hi; i++ {
			d := perpendicularDistance(points[i], a, b)
			if d > maxDist {
				maxDist = d
				maxIdx = i
			}
		}
		if maxDist > tolerance {
			keep[maxIdx] = true
			recurse(lo, maxIdx)
			recurse(maxIdx, hi)
		}
	}
	recurse(0, len(points)-1)

	out := make([]Coord, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func perpendicularDistance(p, a, b Coord) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	if dx == 0 && dy == 0 {
		return math.Hypot(float64(p.X-a.X), float64(p.Y-a.Y))
	}
	num := math.Abs(dy*float64(p.X-a.X) - dx*float64(p.Y-a.Y))
	return num / math.Hypot(dx, dy)
}

// visvalingamWhyatt simplifies a ring by iteratively removing the point
// forming the smallest triangle area with its neighbors, until the
// smallest remaining area exceeds tolerance (tile-local squared units).
func visvalingamWhyatt(points []Coord, tolerance float64) []Coord {
	n := len(points)
	if n < 4 || tolerance <= 0 {
		return points
	}
	areaOf := func(a, b, c Coord) float64 {
		return math.Abs(float64(a.X)*float64(b.Y-c.Y)+
			float64(b.X)*float64(c.Y-a.Y)+
			float64(c.X)*float64(a.Y-b.Y)) / 2
	}

	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}
	remaining := n

	for remaining > 3 {
		minArea := math.Inf(1)
		minIdx := -1

		idxs := make([]int, 0, remaining)
		for k := 0; k < n; k++ {
			if alive[k] {
				idxs = append(idxs, k)
			}
		}
		for pos := 1; pos < len(idxs)-1; pos++ {
			area := areaOf(points[idxs[pos-1]], points[idxs[pos]], points[idxs[pos+1]])
			if area < minArea {
				minArea = area
				minIdx = idxs[pos]
			}
		}
		if minIdx < 0 || minArea > tolerance {
			break
		}
		alive[minIdx] = false
		remaining--
	}

	out := make([]Coord, 0, remaining)
	for k := 0; k < n; k++ {
		if alive[k] {
			out = append(out, points[k])
		}
	}
	return out
}

// geometryExtent returns the bounding-box width+height of a ring, used as
// a cheap proxy for minPixelSize degeneracy checks.
func geometryExtent(points []Coord) float64 {
	if len(points) == 0 {
		return 0
	}
	minX, minY, maxX, maxY := points[0].X, points[0].Y, points[0].X, points[0].Y
	for _, p := range points {
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
	return float64((maxX - minX) + (maxY - minY))
}

func ringCentroid(points []Coord) Coord {
	if len(points) == 0 {
		return Coord{}
	}
	var sx, sy int64
	for _, p := range points {
		sx += int64(p.X)
		sy += int64(p.Y)
	}
	return Coord{X: int32(sx / int64(len(points))), Y: int32(sy / int64(len(points)))}
}
