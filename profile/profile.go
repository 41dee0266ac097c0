// Package profile defines the Profile contract SPEC_FULL.md §6 consumes:
// the user-supplied callback library deciding which features to emit and
// how to post-process a layer. The profile implementation itself is out
// of scope (SPEC_FULL.md §1) — this package only pins the interface the
// rest of the pipeline programs against.
package profile

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/planetiler/planetiler-go/render"
)

// Source is one opaque source feature handed to the profile.
type Source interface {
	// Geometry returns the feature's geometry in WGS84 lon/lat.
	Geometry() orb.Geometry
	// Tags returns the feature's string-keyed attribute map.
	Tags() map[string]interface{}
	// SourceLayer names the originating layer (e.g. an OSM PBF layer or a
	// shapefile name); empty if the source format has none.
	SourceLayer() string
	// ID returns the source feature's native id, if any.
	ID() (uint64, bool)
}

// Profile is the callback library a pipeline run is configured with.
type Profile interface {
	// ProcessFeature is invoked once per source feature that
	// CaresAboutSource allowed through; the profile emits zero or more
	// output-layer features via emitter.
	ProcessFeature(ctx context.Context, source Source, emitter Emitter) error

	// PostProcessLayerFeatures is invoked once per (tile, layer) with all
	// of that layer's features, already sorted by SortOrder then emission
	// order. It may add, remove or reorder features. A returned error is
	// treated as recoverable per SPEC_FULL.md §7: the caller logs it and
	// passes the original features through unchanged.
	PostProcessLayerFeatures(ctx context.Context, layer string, zoom int, features []render.Feature) ([]render.Feature, error)

	CaresAboutSource(name string) bool
	Name() string
	Description() string
	Attribution() string
	Version() string
	IsOverlay() bool
}

// Base provides no-op defaults so profile implementations need only
// override what they care about (the teacher's codebase favors small
// interfaces with embeddable defaults over mandatory boilerplate).
type Base struct{}

func (Base) PostProcessLayerFeatures(_ context.Context, _ string, _ int, features []render.Feature) ([]render.Feature, error) {
	return features, nil
}
func (Base) CaresAboutSource(string) bool { return true }
func (Base) Description() string          { return "" }
func (Base) Attribution() string          { return "" }
func (Base) Version() string              { return "1.0.0" }
func (Base) IsOverlay() bool              { return false }
