package render

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/planetiler/planetiler-go/sortkey"
	"github.com/planetiler/planetiler-go/tileid"
)

// GeometryKind is the output shape the profile asked the emitter to
// produce for a source feature, per SPEC_FULL.md §6 FeatureEmitter.
type GeometryKind int

const (
	KindPoint GeometryKind = iota
	KindLine
	KindPolygon
	KindCentroid
	KindPointOnSurface
)

// LayerOptions is the per-output-layer render configuration a profile
// supplies for one source feature (SPEC_FULL.md §4.2).
type LayerOptions struct {
	Layer         string
	LayerID       uint8
	GeometryKind  GeometryKind
	MinZoom       int
	MaxZoom       int
	Attrs         []Attr
	BufferPixels  func(z int) float64
	MinPixelSize  func(z int) float64
	PixelTolerance func(z int) float64
	SimplifyWith  SimplifyMethod
	SortOrder     uint16
	FeatureOrder  uint8
	ID            uint64
	HasID         bool
	KeepCollapsed bool
}

func (o LayerOptions) bufferAt(z int) float64 {
	if o.BufferPixels == nil {
		return 4
	}
	return o.BufferPixels(z)
}

func (o LayerOptions) minPixelSizeAt(z int) float64 {
	if o.MinPixelSize == nil {
		if z == o.MaxZoom {
			return 256.0 / 4096.0
		}
		return 1
	}
	return o.MinPixelSize(z)
}

func (o LayerOptions) pixelToleranceAt(z int) float64 {
	if o.PixelTolerance == nil {
		return 1
	}
	return o.PixelTolerance(z)
}

// Emit is called once per produced Feature.
type Emit func(Feature) error

// Renderer implements SPEC_FULL.md §4.2's FeatureRenderer: it walks every
// zoom in a layer's requested range, computes covered tiles, clips and
// simplifies into the tile-local grid, and emits a render.Feature per
// covered (tile, layer).
type Renderer struct {
	order tileid.Order
}

// NewRenderer constructs a Renderer packing tile ids under the given
// archive order (tileid.TMS or tileid.Hilbert).
func NewRenderer(order tileid.Order) *Renderer { return &Renderer{order: order} }

// Render projects geom (in WGS84 lon/lat) across opts's zoom range and
// emits one render.Feature per covered tile via emit.
func (r *Renderer) Render(geom orb.Geometry, opts LayerOptions, emit Emit) error {
	if opts.MinZoom > opts.MaxZoom {
		return fmt.Errorf("render: minZoom %d > maxZoom %d", opts.MinZoom, opts.MaxZoom)
	}
	mercGeom := project.Geometry(geom, project.WGS84.ToMercator)

	covered, err := coveredTiles(geom, opts.MinZoom, opts.MaxZoom)
	if err != nil {
		return fmt.Errorf("render: tile cover: %w", err)
	}

	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		buffer := opts.bufferAt(z)
		minSize := opts.minPixelSizeAt(z) * tileExtent / 256.0
		tolerance := opts.pixelToleranceAt(z) * tileExtent / 256.0

		for _, tile := range covered[uint8(z)] {
			bound := tileMercBound(uint8(tile.Z), tile.X, tile.Y, buffer)
			parts, geomType, err := clipAndLocalize(mercGeom, opts.GeometryKind, bound)
			if err != nil {
				return err
			}
			if len(parts) == 0 {
				continue
			}

			parts, geomType = simplifyPartsWith(parts, geomType, tolerance, minSize, opts.KeepCollapsed, opts.SimplifyWith)
			if len(parts) == 0 {
				continue
			}

			tileID := r.order.ID(tileid.Coord{Z: uint8(tile.Z), X: tile.X, Y: tile.Y})
			key := sortkey.Pack(tileID, opts.LayerID, opts.SortOrder, opts.FeatureOrder)

			f := Feature{
				SortKey:           key,
				GeomType:          geomType,
				Geometry:          EncodeGeometry(geomType, parts),
				Attrs:             EncodeAttrs(opts.Attrs),
				ID:                opts.ID,
				HasID:             opts.HasID,
				ContainsOnlyFills: geomType == Polygon && len(parts) == 1 && isFullTileRing(parts[0]),
			}
			if err := emit(f); err != nil {
				return err
			}
		}
	}
	return nil
}
