package main

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/planetiler/planetiler-go/render"
)

// geojsonSource adapts one GeoJSON feature to profile.Source. Source-format
// parsing is out of scope per SPEC_FULL.md §1; this is the minimal bundled
// ingestion path so the CLI has something real to run end to end, the way
// the teacher ships small standalone example programs (examples/minimal.go)
// alongside its main conversion path rather than leaving the CLI inert.
type geojsonSource struct {
	geom  orb.Geometry
	tags  map[string]interface{}
	id    uint64
	hasID bool
}

func (s geojsonSource) Geometry() orb.Geometry       { return s.geom }
func (s geojsonSource) Tags() map[string]interface{} { return s.tags }
func (s geojsonSource) SourceLayer() string          { return "" }
func (s geojsonSource) ID() (uint64, bool)           { return s.id, s.hasID }

// loadGeoJSONSources reads a FeatureCollection from path and converts every
// feature to a geojsonSource. The whole file is parsed up front: streaming
// GeoJSON parsing is a source-format concern left out of scope.
func loadGeoJSONSources(path string) ([]geojsonSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse GeoJSON %s: %w", path, err)
	}

	out := make([]geojsonSource, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		s := geojsonSource{geom: f.Geometry, tags: f.Properties}
		if id, ok := f.ID.(float64); ok {
			s.id, s.hasID = uint64(id), true
		}
		out = append(out, s)
	}
	return out, nil
}

// geometryKind maps a GeoJSON geometry to the render.GeometryKind the
// bundled passthrough profile asks the emitter to produce.
func geometryKind(geom orb.Geometry) render.GeometryKind {
	switch geom.(type) {
	case orb.Point, orb.MultiPoint:
		return render.KindPoint
	case orb.LineString, orb.MultiLineString:
		return render.KindLine
	case orb.Polygon, orb.MultiPolygon:
		return render.KindPolygon
	default:
		return render.KindCentroid
	}
}
