package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/profile"
	"github.com/planetiler/planetiler-go/render"
	"github.com/planetiler/planetiler-go/tileid"
)

// fakeSource is a single in-memory point feature.
type fakeSource struct {
	geom orb.Geometry
	tags map[string]interface{}
}

func (s fakeSource) Geometry() orb.Geometry           { return s.geom }
func (s fakeSource) Tags() map[string]interface{}     { return s.tags }
func (s fakeSource) SourceLayer() string              { return "points" }
func (s fakeSource) ID() (uint64, bool)               { return 0, false }

// pointProfile emits every source feature into a single "places" layer
// spanning the whole configured zoom range, tagging through its "name".
type pointProfile struct {
	profile.Base
	minZoom, maxZoom int
}

func (p *pointProfile) Name() string        { return "test-points" }
func (p *pointProfile) ProcessFeature(_ context.Context, src profile.Source, em profile.Emitter) error {
	em.SetLayer("places").
		SetGeometryKind(render.KindPoint).
		SetZoomRange(p.minZoom, p.maxZoom)
	if name, ok := src.Tags()["name"]; ok {
		em.Attr("name", name)
	}
	return em.Emit(src.Geometry())
}

// uncaringProfile is pointProfile with every source rejected up front.
type uncaringProfile struct{ pointProfile }

func (p *uncaringProfile) CaresAboutSource(string) bool { return false }

// fakeWriter captures every written tile in order for assertions, without
// touching disk.
type fakeWriter struct {
	mu      sync.Mutex
	order   tileid.Order
	dedup   bool
	written []uint32
	minZoom int
	maxZoom int
	finished bool
}

func (w *fakeWriter) Order() tileid.Order { return w.order }
func (w *fakeWriter) Deduplicates() bool  { return w.dedup }
func (w *fakeWriter) Initialize(min, max int, _ map[string]string) error {
	w.minZoom, w.maxZoom = min, max
	return nil
}
func (w *fakeWriter) WriteTile(tileID uint32, _ []byte, _ uint64, _ bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, tileID)
	return nil
}
func (w *fakeWriter) Finish() error {
	w.finished = true
	return nil
}

func sourceIteratorOf(sources []fakeSource) SourceIterator {
	i := 0
	return func() (profile.Source, bool, error) {
		if i >= len(sources) {
			return nil, false, nil
		}
		s := sources[i]
		i++
		return s, true, nil
	}
}

func TestPipelineRunProducesTilesInOrder(t *testing.T) {
	w := &fakeWriter{order: tileid.Hilbert, dedup: true}
	prof := &pointProfile{minZoom: 0, maxZoom: 2}

	p := New(prof, w, Options{Threads: 2, MinZoom: 0, MaxZoom: 2, TmpDir: t.TempDir()})

	sources := []fakeSource{
		{geom: orb.Point{-122.42, 37.77}, tags: map[string]interface{}{"name": "A"}},
		{geom: orb.Point{2.35, 48.85}, tags: map[string]interface{}{"name": "B"}},
	}

	err := p.Run(context.Background(), sourceIteratorOf(sources))
	require.NoError(t, err)

	assert.Equal(t, StateDone, p.State())
	assert.True(t, w.finished)
	assert.NotEmpty(t, w.written)

	for i := 1; i < len(w.written); i++ {
		assert.Less(t, w.written[i-1], w.written[i], "tiles must be written in strictly increasing order")
	}

	snap := p.Stats().Snapshot()
	assert.Equal(t, int64(2), snap.SourceFeaturesRead)
	assert.Greater(t, snap.RenderedFeatures, int64(0))
	assert.Greater(t, snap.TilesWritten, int64(0))
}

func TestPipelineRunSkipsUncaredSources(t *testing.T) {
	w := &fakeWriter{order: tileid.TMS}
	prof := &uncaringProfile{pointProfile{minZoom: 0, maxZoom: 1}}

	p := New(prof, w, Options{Threads: 1, MinZoom: 0, MaxZoom: 1, TmpDir: t.TempDir()})

	called := 0
	next := func() (profile.Source, bool, error) {
		called++
		if called > 1 {
			return nil, false, nil
		}
		return fakeSource{geom: orb.Point{0, 0}}, true, nil
	}

	err := p.Run(context.Background(), next)
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State())
	assert.Empty(t, w.written)
}

func TestQueueCapacityScalesWithMemoryBudget(t *testing.T) {
	assert.Equal(t, 100, queueCapacity(0))
	assert.Greater(t, queueCapacity(200e9), 100)
}
