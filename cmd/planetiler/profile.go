package main

import (
	"context"

	"github.com/planetiler/planetiler-go/profile"
)

// passthroughProfile emits every source feature into a single "features"
// layer across the configured zoom range, carrying every GeoJSON property
// through as an attribute unchanged. It exists to give the CLI a runnable
// default; a real deployment supplies its own Profile (out of scope per
// SPEC_FULL.md §1).
type passthroughProfile struct {
	profile.Base
	minZoom, maxZoom int
}

func (p *passthroughProfile) Name() string { return "geojson-passthrough" }

func (p *passthroughProfile) ProcessFeature(_ context.Context, src profile.Source, em profile.Emitter) error {
	em.SetLayer("features").
		SetGeometryKind(geometryKind(src.Geometry())).
		SetZoomRange(p.minZoom, p.maxZoom)
	for k, v := range src.Tags() {
		em.Attr(k, v)
	}
	if id, ok := src.ID(); ok {
		em.SetID(id)
	}
	return em.Emit(src.Geometry())
}
