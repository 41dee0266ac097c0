// Package encode turns a grouped tile's per-layer render.Feature slices
// into a compressed Mapbox Vector Tile, per SPEC_FULL.md §2
// ("TileEncoderPool"). Geometry has already been clipped, simplified, and
// projected into the tile-local 0..4096 grid during rendering
// (SPEC_FULL.md §4.2); this package's job is assembly and wire encoding
// only, kept cheap since it runs once per (tile, layer) after the
// external sort rather than once per source feature.
package encode

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"hash/fnv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/planetiler/planetiler-go/render"
	"github.com/planetiler/planetiler-go/tilegroup"
)

// gzipLevel is gzip's default compression level (6), a cheap tradeoff
// for already-small per-tile payloads. archive/pmtiles/directory.go
// compresses its own directories at gzip.BestCompression instead.
const gzipLevel = gzip.DefaultCompression

// TileWarnBytes is the encoded (pre-compression) size above which a tile
// is logged as unusually large (SPEC_FULL.md §4.5).
const TileWarnBytes = 500 * 1024

// Result is one encoded tile, ready for an archive.Writer.
type Result struct {
	TileID      uint32
	Data        []byte // gzip-compressed MVT protobuf
	RawBytes    int    // pre-compression size, for TileWarnBytes checks
	ContentHash uint64 // FNV-1a-64 of Data; valid only if computed
	HasHash     bool
	IsFill      bool // skipFilled was set and every non-empty layer is a single full-tile fill polygon
}

// KeyName resolves a profile's interned attribute key id back to its
// original string name (profile.KeyTable.Name), so encoded MVT properties
// carry readable keys instead of the pipeline's internal integers.
type KeyName func(keyID int) string

// EncodeTile assembles every non-empty layer in g into one MVT tile,
// gzip-compressed unless gzipData is false (SPEC_FULL.md §6
// "--tile-compression"). It always marshals full tile content, including
// tiles whose only feature is a full-tile polygon fill: dropping a run of
// identical fill tiles down to a single stored payload is the encoder
// pool's job (memoState, SPEC_FULL.md §4.5), not this function's — the
// first occurrence of a fill must reach the archive with real bytes, or
// there would be nothing for later repeats to dedup against. skipFilled
// only gates whether IsFill is reported at all, since a caller that never
// passes skipFilled has no use for the flag.
func EncodeTile(g tilegroup.Group, keyName KeyName, skipFilled, gzipData, computeHash bool) (Result, error) {
	var layers mvt.Layers
	allFilled := true

	for _, layer := range g.Layers {
		if len(layer.Features) == 0 {
			continue
		}
		if !isFillOnlyLayer(layer.Features) {
			allFilled = false
		}

		fc := geojson.NewFeatureCollection()
		for _, f := range layer.Features {
			geom, err := toOrbGeometry(f)
			if err != nil {
				return Result{}, fmt.Errorf("encode: tile %d layer %s: %w", g.TileID, layer.Name, err)
			}
			gf := geojson.NewFeature(geom)
			attrs, err := render.DecodeAttrs(f.Attrs)
			if err != nil {
				return Result{}, fmt.Errorf("encode: tile %d layer %s: decode attrs: %w", g.TileID, layer.Name, err)
			}
			for _, a := range attrs {
				gf.Properties[keyName(a.KeyID)] = attrValue(a)
			}
			if f.HasID {
				gf.ID = f.ID
			}
			fc.Append(gf)
		}

		l := mvt.NewLayer(layer.Name, fc)
		l.Extent = 4096
		layers = append(layers, l)
	}

	if len(layers) == 0 {
		return Result{TileID: g.TileID, IsFill: skipFilled && allFilled}, nil
	}

	raw, err := mvt.Marshal(layers)
	if err != nil {
		return Result{}, fmt.Errorf("encode: marshal tile %d: %w", g.TileID, err)
	}

	data := raw
	if gzipData {
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzipLevel)
		if err != nil {
			return Result{}, fmt.Errorf("encode: gzip writer: %w", err)
		}
		if _, err := w.Write(raw); err != nil {
			return Result{}, fmt.Errorf("encode: gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return Result{}, fmt.Errorf("encode: gzip close: %w", err)
		}
		data = buf.Bytes()
	}

	res := Result{TileID: g.TileID, Data: data, RawBytes: len(raw), IsFill: skipFilled && allFilled}
	// A fill tile's hash is needed to detect a repeated neighbor even when
	// the archive itself can't dedup: Pool.Run drops such a repeat entirely
	// for a non-deduplicating writer, and empties its bytes for a
	// deduplicating one (SPEC_FULL.md §4.5).
	if computeHash || res.IsFill {
		h := fnv.New64a()
		h.Write(res.Data)
		res.ContentHash = h.Sum64()
		res.HasHash = true
	}
	return res, nil
}

func isFillOnlyLayer(features []render.Feature) bool {
	return len(features) == 1 && features[0].GeomType == render.Polygon && features[0].ContainsOnlyFills
}

func attrValue(a render.Attr) interface{} {
	switch a.Type {
	case render.AttrString:
		return a.Str
	case render.AttrLong:
		return a.Long
	case render.AttrDouble:
		return a.Dbl
	case render.AttrBool:
		return a.Bool
	default:
		return nil
	}
}

// toOrbGeometry reconstructs an orb.Geometry directly in tile-local pixel
// coordinates (0..4096) from a Feature's packed rings. These coordinates
// are already clipped and simplified, so the geometry is handed to
// mvt.Marshal as-is rather than re-projected via Layer.ProjectToTile.
func toOrbGeometry(f render.Feature) (orb.Geometry, error) {
	parts, err := render.DecodeGeometry(f.GeomType, f.Geometry)
	if err != nil {
		return nil, err
	}
	switch f.GeomType {
	case render.Point:
		c := parts[0][0]
		return orb.Point{float64(c.X), float64(c.Y)}, nil
	case render.MultiPoint:
		mp := make(orb.MultiPoint, 0, len(parts))
		for _, part := range parts {
			mp = append(mp, orb.Point{float64(part[0].X), float64(part[0].Y)})
		}
		return mp, nil
	case render.Line:
		return coordsToLineString(parts[0]), nil
	case render.MultiLine:
		mls := make(orb.MultiLineString, len(parts))
		for i, part := range parts {
			mls[i] = coordsToLineString(part)
		}
		return mls, nil
	case render.Polygon:
		return orb.Polygon{coordsToRing(parts[0])}, nil
	case render.MultiPolygon:
		// Rings were emitted as one flat Polygon per outer+holes grouping
		// is not tracked at this layer; a single-part MultiPolygon is the
		// common case this pipeline produces (each covered tile's clipped
		// polygon, possibly with holes, flattened to rings by the renderer).
		poly := make(orb.Polygon, len(parts))
		for i, part := range parts {
			poly[i] = coordsToRing(part)
		}
		return orb.MultiPolygon{poly}, nil
	default:
		return nil, fmt.Errorf("encode: unknown geometry type %d", f.GeomType)
	}
}

func coordsToLineString(pts []render.Coord) orb.LineString {
	ls := make(orb.LineString, len(pts))
	for i, p := range pts {
		ls[i] = orb.Point{float64(p.X), float64(p.Y)}
	}
	return ls
}

func coordsToRing(pts []render.Coord) orb.Ring {
	ring := make(orb.Ring, len(pts))
	for i, p := range pts {
		ring[i] = orb.Point{float64(p.X), float64(p.Y)}
	}
	return ring
}
