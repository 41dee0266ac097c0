// Package tilegroup consumes the external sorter's merged stream and
// regroups it into one Group per tile, itself partitioned into ordered
// per-layer feature slices ready for profile post-processing and tile
// encoding (SPEC_FULL.md §2, "FeatureGroup").
package tilegroup

import (
	"context"

	"go.uber.org/zap"

	"github.com/planetiler/planetiler-go/extsort"
	"github.com/planetiler/planetiler-go/profile"
	"github.com/planetiler/planetiler-go/render"
)

// Layer is one layer's ordered feature slice within a tile, already
// sorted by SortOrder then emission order by the upstream external sort.
type Layer struct {
	Name     string
	LayerID  uint8
	Features []render.Feature
}

// Group is every feature belonging to one tile, partitioned by layer in
// first-seen order.
type Group struct {
	TileID uint32
	Layers []Layer
}

// LayerNamer resolves a layer id back to its declared name for profile
// callbacks and archive metadata; the pipeline backs it with the layer
// registry its emitters fill in as layers are first emitted.
type LayerNamer func(layerID uint8) string

// Reader groups the external sorter's merged record stream into one
// Group per distinct TileID, in the order the sort produced (archive
// order, since TileID occupies the sort key's most significant bits).
type Reader struct {
	it     *extsort.MergeIter
	namer  LayerNamer
	pulled   render.Feature
	have     bool
	done     bool
	fetchErr error
}

// NewReader wraps it for tile-grouped iteration.
func NewReader(it *extsort.MergeIter, namer LayerNamer) *Reader {
	return &Reader{it: it, namer: namer}
}

// Next returns the next tile's Group, or (_, false) once the stream is
// exhausted. A non-nil Err() after Next returns false indicates an
// upstream read failure.
func (r *Reader) Next() (Group, bool) {
	if r.done {
		return Group{}, false
	}

	first, ok := r.fetch()
	if !ok {
		r.done = true
		return Group{}, false
	}

	tileID := first.TileID()
	layerOrder := []uint8{first.LayerID()}
	byLayer := map[uint8][]render.Feature{first.LayerID(): {first}}

	for {
		f, ok := r.fetch()
		if !ok {
			r.done = true
			break
		}
		if f.TileID() != tileID {
			r.unfetch(f)
			break
		}
		lid := f.LayerID()
		if _, seen := byLayer[lid]; !seen {
			layerOrder = append(layerOrder, lid)
		}
		byLayer[lid] = append(byLayer[lid], f)
	}

	layers := make([]Layer, len(layerOrder))
	for i, lid := range layerOrder {
		name := ""
		if r.namer != nil {
			name = r.namer(lid)
		}
		layers[i] = Layer{Name: name, LayerID: lid, Features: byLayer[lid]}
	}
	return Group{TileID: tileID, Layers: layers}, true
}

func (r *Reader) fetch() (render.Feature, bool) {
	if r.have {
		r.have = false
		return r.pulled, true
	}
	rec, ok := r.it.Next()
	if !ok {
		return render.Feature{}, false
	}
	f, err := render.DecodeFeature(rec.Key, rec.Payload)
	if err != nil {
		// A corrupted spill record is an internal invariant violation, not
		// a recoverable per-feature error; surface it as end of stream and
		// let Err() report it.
		r.fetchErr = err
		return render.Feature{}, false
	}
	return f, true
}

func (r *Reader) unfetch(f render.Feature) {
	r.pulled = f
	r.have = true
}

// Err reports the first failure encountered while reading, from either
// the underlying merge or feature decoding.
func (r *Reader) Err() error {
	if r.fetchErr != nil {
		return r.fetchErr
	}
	return r.it.Err()
}

// PostProcess runs prof.PostProcessLayerFeatures over every layer in g at
// the given zoom, replacing each layer's Features in place. A profile
// error is logged and treated as a no-op per SPEC_FULL.md §7 (recoverable
// error: caller passes the original features through unchanged).
func PostProcess(ctx context.Context, prof profile.Profile, zoom int, g Group, logger *zap.Logger) Group {
	for i, layer := range g.Layers {
		out, err := prof.PostProcessLayerFeatures(ctx, layer.Name, zoom, layer.Features)
		if err != nil {
			if logger != nil {
				logger.Warn("post-process layer failed, passing features through",
					zap.String("layer", layer.Name), zap.Int("zoom", zoom), zap.Error(err))
			}
			continue
		}
		g.Layers[i].Features = out
	}
	return g
}
