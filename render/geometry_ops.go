package render

import (
	"fmt"

	"github.com/paulmach/orb"
)

// clipAndLocalize clips a mercator geometry to a padded tile bound and
// translates the result into tile-local 0..4096 integer coordinates. The
// GeometryKind controls how multi-part orb geometries collapse: Centroid
// and PointOnSurface both reduce to a single representative point.
func clipAndLocalize(geom orb.Geometry, kind GeometryKind, bound mercBound) ([][]Coord, GeometryType, error) {
	switch kind {
	case KindCentroid, KindPointOnSurface:
		p, ok := representativePoint(geom)
		if !ok {
			return nil, 0, nil
		}
		if p[0] < bound.minX || p[0] > bound.maxX || p[1] < bound.minY || p[1] > bound.maxY {
			return nil, 0, nil
		}
		return [][]Coord{{toTileLocal(bound, p[0], p[1])}}, Point, nil
	case KindPoint:
		switch g := geom.(type) {
		case orb.Point:
			if g[0] < bound.minX || g[0] > bound.maxX || g[1] < bound.minY || g[1] > bound.maxY {
				return nil, 0, nil
			}
			return [][]Coord{{toTileLocal(bound, g[0], g[1])}}, Point, nil
		case orb.MultiPoint:
			var parts []Coord
			for _, p := range g {
				if p[0] >= bound.minX && p[0] <= bound.maxX && p[1] >= bound.minY && p[1] <= bound.maxY {
					parts = append(parts, toTileLocal(bound, p[0], p[1]))
				}
			}
			if len(parts) == 0 {
				return nil, 0, nil
			}
			if len(parts) == 1 {
				return [][]Coord{parts}, Point, nil
			}
			out := make([][]Coord, len(parts))
			for i, p := range parts {
				out[i] = []Coord{p}
			}
			return out, MultiPoint, nil
		default:
			return nil, 0, fmt.Errorf("render: geometry kind point requires a Point/MultiPoint source, got %T", geom)
		}
	case KindLine:
		return clipLine(geom, bound)
	case KindPolygon:
		return clipPolygon(geom, bound)
	default:
		return nil, 0, fmt.Errorf("render: unknown geometry kind %d", kind)
	}
}

func representativePoint(geom orb.Geometry) ([2]float64, bool) {
	switch g := geom.(type) {
	case orb.Point:
		return [2]float64{g[0], g[1]}, true
	case orb.LineString:
		if len(g) == 0 {
			return [2]float64{}, false
		}
		mid := g[len(g)/2]
		return [2]float64{mid[0], mid[1]}, true
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return [2]float64{}, false
		}
		return ringCentroidMerc(g[0]), true
	case orb.MultiPolygon:
		if len(g) == 0 {
			return [2]float64{}, false
		}
		return representativePoint(g[0])
	default:
		return [2]float64{}, false
	}
}

func ringCentroidMerc(ring orb.Ring) [2]float64 {
	var sx, sy float64
	for _, p := range ring {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(ring))
	return [2]float64{sx / n, sy / n}
}

func lineStringToPairs(ls orb.LineString) [][2]float64 {
	out := make([][2]float64, len(ls))
	for i, p := range ls {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func clipLine(geom orb.Geometry, bound mercBound) ([][]Coord, GeometryType, error) {
	var lines []orb.LineString
	switch g := geom.(type) {
	case orb.LineString:
		lines = []orb.LineString{g}
	case orb.MultiLineString:
		lines = g
	default:
		return nil, 0, fmt.Errorf("render: geometry kind line requires a LineString/MultiLineString source, got %T", geom)
	}

	var parts [][]Coord
	for _, ls := range lines {
		for _, seg := range clipLineToBound(lineStringToPairs(ls), bound) {
			ring := make([]Coord, len(seg))
			for i, p := range seg {
				ring[i] = toTileLocal(bound, p[0], p[1])
			}
			parts = append(parts, ring)
		}
	}
	if len(parts) == 0 {
		return nil, 0, nil
	}
	if len(parts) == 1 {
		return parts, Line, nil
	}
	return parts, MultiLine, nil
}

func ringToPairs(r orb.Ring) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func clipPolygon(geom orb.Geometry, bound mercBound) ([][]Coord, GeometryType, error) {
	var polys []orb.Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	default:
		return nil, 0, fmt.Errorf("render: geometry kind polygon requires a Polygon/MultiPolygon source, got %T", geom)
	}

	var parts [][]Coord
	for _, poly := range polys {
		for _, ring := range poly {
			clipped := clipRingToBound(ringToPairs(ring), bound)
			if len(clipped) < 3 {
				continue
			}
			local := make([]Coord, len(clipped))
			for i, p := range clipped {
				local[i] = toTileLocal(bound, p[0], p[1])
			}
			parts = append(parts, local)
		}
	}
	if len(parts) == 0 {
		return nil, 0, nil
	}
	if len(parts) == 1 {
		return parts, Polygon, nil
	}
	return parts, MultiPolygon, nil
}

// simplifyParts simplifies each ring, drops parts that collapse below
// minSize, and substitutes a centroid fallback when keepCollapsed is set
// and every part collapsed.
func simplifyParts(parts [][]Coord, geomType GeometryType, tolerance, minSize float64, keepCollapsed bool) ([][]Coord, GeometryType) {
	return simplifyPartsWith(parts, geomType, tolerance, minSize, keepCollapsed, DouglasPeucker)
}

func simplifyPartsWith(parts [][]Coord, geomType GeometryType, tolerance, minSize float64, keepCollapsed bool, method SimplifyMethod) ([][]Coord, GeometryType) {
	if geomType == Point || geomType == MultiPoint {
		return parts, geomType
	}

	var kept [][]Coord
	for _, ring := range parts {
		var simplified []Coord
		if method == VisvalingamWhyatt {
			simplified = visvalingamWhyatt(ring, tolerance*tolerance)
		} else {
			simplified = douglasPeucker(ring, tolerance)
		}
		if geometryExtent(simplified) < minSize {
			continue
		}
		kept = append(kept, simplified)
	}

	if len(kept) == 0 {
		if !keepCollapsed || len(parts) == 0 {
			return nil, geomType
		}
		centroid := ringCentroid(parts[0])
		return [][]Coord{{centroid}}, Point
	}

	switch {
	case len(kept) == 1 && (geomType == MultiLine):
		return kept, Line
	case len(kept) == 1 && (geomType == MultiPolygon):
		return kept, Polygon
	default:
		return kept, geomType
	}
}
