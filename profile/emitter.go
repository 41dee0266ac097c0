package profile

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/planetiler/planetiler-go/render"
)

// Emitter is the object a profile's ProcessFeature uses to describe each
// output-layer feature it wants rendered, per SPEC_FULL.md §6. The
// profile configures it synchronously and the pipeline buffers the
// resulting emissions for the current source feature (SPEC_FULL.md §9:
// "profile callback as coroutine of emissions" is replaced by this
// reference-passed object instead of a generator/coroutine).
type Emitter interface {
	SetLayer(name string) Emitter
	SetGeometryKind(kind render.GeometryKind) Emitter
	SetZoomRange(min, max int) Emitter
	SetBufferPixels(f func(zoom int) float64) Emitter
	SetMinPixelSize(f func(zoom int) float64) Emitter
	SetPixelTolerance(f func(zoom int) float64) Emitter
	SetLabelGridSize(f func(zoom int) float64) Emitter
	SetSortKey(order uint16) Emitter
	SetID(id uint64) Emitter
	Attr(key string, value interface{}) Emitter
	AttrWithMinZoom(key string, value interface{}, minZoom int) Emitter

	// Emit finalizes the currently configured layer feature and renders
	// it against geom, appending any produced render.Feature values to
	// the pipeline's per-source-feature buffer. Calling Emit clears the
	// attrs so the same Emitter can be reused across multiple Emit calls
	// for one source feature (e.g. a point layer and a label layer from
	// the same feature); layer, geometry kind, zoom range and the other
	// settings carry over to the next Emit unless set again.
	Emit(geom orb.Geometry) error
}

// KeyTable interns attribute keys into small integers, stable per layer
// within a tile, per SPEC_FULL.md §9 ("unbounded attribute dictionaries").
type KeyTable struct {
	mu     sync.Mutex
	byName map[string]int
	names  []string
}

// NewKeyTable constructs an empty interning table.
func NewKeyTable() *KeyTable {
	return &KeyTable{byName: make(map[string]int)}
}

// Intern returns the stable integer id for name, assigning a new one on
// first use.
func (t *KeyTable) Intern(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[name]; ok {
		return id
	}
	id := len(t.names)
	t.byName[name] = id
	t.names = append(t.names, name)
	return id
}

// Name returns the interned key's original string.
func (t *KeyTable) Name(id int) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.names) {
		return ""
	}
	return t.names[id]
}

type pendingAttr struct {
	key     string
	value   interface{}
	minZoom int
}

// emitter is the concrete Emitter implementation wired up by the
// pipeline's per-source-feature render step.
type emitter struct {
	renderer *render.Renderer
	keys     *KeyTable
	layerIDs *LayerRegistry

	sourceOrder uint8 // FeatureOrder tie-breaker, one per source feature
	emitIndex   uint8 // increments per Emit call within this source feature

	layer         string
	kind          render.GeometryKind
	minZoom       int
	maxZoom       int
	bufferPixels  func(int) float64
	minPixelSize  func(int) float64
	pixelTol      func(int) float64
	labelGrid     func(int) float64
	sortOrder     uint16
	id            uint64
	hasID         bool
	attrs         []pendingAttr
	keepCollapsed bool

	out *[]render.Feature
}

// NewEmitter constructs the pipeline's Emitter for one source feature.
// renderer does the actual zoom/tile walk; keys interns attribute names
// into the key table shared by the whole run; layerIDs maps layer names
// to their small integer id (assigned the first time a layer is emitted,
// stable across the whole run); out accumulates every render.Feature produced while
// this Emitter is in scope.
func NewEmitter(renderer *render.Renderer, keys *KeyTable, layerIDs *LayerRegistry, sourceOrder uint8, out *[]render.Feature) Emitter {
	return &emitter{renderer: renderer, keys: keys, layerIDs: layerIDs, sourceOrder: sourceOrder, out: out}
}

func (e *emitter) SetLayer(name string) Emitter                         { e.layer = name; return e }
func (e *emitter) SetGeometryKind(k render.GeometryKind) Emitter        { e.kind = k; return e }
func (e *emitter) SetZoomRange(min, max int) Emitter                    { e.minZoom, e.maxZoom = min, max; return e }
func (e *emitter) SetBufferPixels(f func(int) float64) Emitter         { e.bufferPixels = f; return e }
func (e *emitter) SetMinPixelSize(f func(int) float64) Emitter         { e.minPixelSize = f; return e }
func (e *emitter) SetPixelTolerance(f func(int) float64) Emitter       { e.pixelTol = f; return e }
func (e *emitter) SetLabelGridSize(f func(int) float64) Emitter        { e.labelGrid = f; return e }
func (e *emitter) SetSortKey(order uint16) Emitter                     { e.sortOrder = order; return e }
func (e *emitter) SetID(id uint64) Emitter                             { e.id, e.hasID = id, true; return e }

func (e *emitter) Attr(key string, value interface{}) Emitter {
	e.attrs = append(e.attrs, pendingAttr{key: key, value: value, minZoom: 0})
	return e
}

func (e *emitter) AttrWithMinZoom(key string, value interface{}, minZoom int) Emitter {
	e.attrs = append(e.attrs, pendingAttr{key: key, value: value, minZoom: minZoom})
	return e
}

func (e *emitter) Emit(geom orb.Geometry) error {
	layerID := e.layerIDs.ID(e.layer)

	opts := render.LayerOptions{
		Layer:          e.layer,
		LayerID:        layerID,
		GeometryKind:   e.kind,
		MinZoom:        e.minZoom,
		MaxZoom:        e.maxZoom,
		BufferPixels:   e.bufferPixels,
		MinPixelSize:   e.minPixelSize,
		PixelTolerance: e.pixelTol,
		SortOrder:      e.sortOrder,
		FeatureOrder:   e.sourceOrder,
		ID:             e.id,
		HasID:          e.hasID,
		KeepCollapsed:  e.keepCollapsed,
	}

	for z := e.minZoom; z <= e.maxZoom; z++ {
		// Rendering happens once for the whole zoom range below, so attrs
		// are not filtered per zoom: every attr whose minZoom <= maxZoom
		// is attached at every zoom of the range, including zooms below
		// its own minZoom. Attrs with minZoom > maxZoom are dropped.
		_ = z
		break
	}
	opts.Attrs = make([]render.Attr, 0, len(e.attrs))
	for _, a := range e.attrs {
		if a.minZoom > e.maxZoom {
			continue
		}
		opts.Attrs = append(opts.Attrs, toRenderAttr(e.keys.Intern(a.key), a.value))
	}

	err := e.renderer.Render(geom, opts, func(f render.Feature) error {
		*e.out = append(*e.out, f)
		return nil
	})
	e.emitIndex++
	e.attrs = nil
	return err
}

func toRenderAttr(keyID int, value interface{}) render.Attr {
	switch v := value.(type) {
	case string:
		return render.Attr{KeyID: keyID, Type: render.AttrString, Str: v}
	case bool:
		return render.Attr{KeyID: keyID, Type: render.AttrBool, Bool: v}
	case float64:
		return render.Attr{KeyID: keyID, Type: render.AttrDouble, Dbl: v}
	case float32:
		return render.Attr{KeyID: keyID, Type: render.AttrDouble, Dbl: float64(v)}
	case int:
		return render.Attr{KeyID: keyID, Type: render.AttrLong, Long: int64(v)}
	case int64:
		return render.Attr{KeyID: keyID, Type: render.AttrLong, Long: v}
	default:
		return render.Attr{KeyID: keyID, Type: render.AttrString, Str: ""}
	}
}
