// Package pipeline wires sources, a profile, the renderer, external
// sorter, tile grouper, encoder pool, and archive writer into the single
// run described by SPEC_FULL.md §2. Source-format parsing is out of
// scope (contract-only): callers hand the pipeline a SourceIterator over
// already-parsed profile.Source values.
package pipeline

import (
	"context"
	"runtime"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planetiler/planetiler-go/archive"
	"github.com/planetiler/planetiler-go/encode"
	"github.com/planetiler/planetiler-go/extsort"
	"github.com/planetiler/planetiler-go/planerr"
	"github.com/planetiler/planetiler-go/profile"
	"github.com/planetiler/planetiler-go/render"
	"github.com/planetiler/planetiler-go/tilegroup"
)

// State is the pipeline's run phase, per SPEC_FULL.md §4.8.
type State int

const (
	StateInit State = iota
	StateReadSources
	StateSort
	StateEmitTiles
	StateFinish
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateReadSources:
		return "READ_SOURCES"
	case StateSort:
		return "SORT"
	case StateEmitTiles:
		return "EMIT_TILES"
	case StateFinish:
		return "FINISH"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// SourceIterator yields already-parsed source features, one at a time,
// safe to call concurrently from multiple reader workers only if the
// caller's implementation is itself safe for concurrent use; the default
// single-reader-goroutine wiring in Run never requires that.
type SourceIterator func() (profile.Source, bool, error)

// Options configures one pipeline run.
type Options struct {
	Threads         int
	MinZoom         int
	MaxZoom         int
	TmpDir          string
	MaxMemoryBytes  int64
	SkipFilledTiles bool
	DisableGzip     bool // SPEC_FULL.md §6 "--tile-compression=none"
	TileWarnBytes   int
	Logger          *zap.Logger
	ShowProgress    bool
}

func (o Options) threadCount() int {
	if o.Threads > 0 {
		return o.Threads
	}
	return runtime.NumCPU()
}

func (o Options) maxMemoryBytes() int64 {
	if o.MaxMemoryBytes > 0 {
		return o.MaxMemoryBytes
	}
	return 1 << 30 // 1 GiB default chunk budget
}

// queueCapacity implements SPEC_FULL.md §4.8's sizing rule: at least 100
// slots, scaled up for larger memory budgets so a fast sorter doesn't
// stall waiting on a tiny render-stage queue.
func queueCapacity(maxMemBytes int64) int {
	scaled := int(5000 * float64(maxMemBytes) / 100e9)
	if scaled < 100 {
		return 100
	}
	return scaled
}

// Pipeline runs one feature-to-tiles build.
type Pipeline struct {
	prof   profile.Profile
	writer archive.Writer
	opts   Options
	stats  *Stats
	state  State

	layerIDs *profile.LayerRegistry
	keys     *profile.KeyTable
}

// New constructs a Pipeline for prof, writing to writer under opts.
func New(prof profile.Profile, writer archive.Writer, opts Options) *Pipeline {
	return &Pipeline{prof: prof, writer: writer, opts: opts, stats: NewStats(), state: StateInit}
}

// Stats returns the run's counters handle; safe to read concurrently
// with Run for progress reporting.
func (p *Pipeline) Stats() *Stats { return p.stats }

// State reports the current run phase.
func (p *Pipeline) State() State { return p.state }

// Run executes the full pipeline: render every source feature from next,
// externally sort the results, group by tile, post-process, encode, and
// write to the configured archive.Writer. The first fatal error from any
// stage cancels every other stage and is returned; recoverable per-feature
// errors are logged and counted in Stats instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context, next SourceIterator) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer func() {
		if err != nil {
			cancel(err)
		} else {
			cancel(nil)
		}
	}()

	logger := p.opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := p.writer.Initialize(p.opts.MinZoom, p.opts.MaxZoom, map[string]string{
		"generator": "planetiler-go",
	}); err != nil {
		p.state = StateFailed
		return planerr.New(planerr.IO, "pipeline.Pipeline.Run", "archive not created", err)
	}

	order := p.writer.Order()
	renderer := render.NewRenderer(order)
	sorter := extsort.NewSorter(p.opts.TmpDir, p.opts.maxMemoryBytes())
	defer sorter.Close()

	p.state = StateReadSources
	if err := p.readAndRender(ctx, next, renderer, sorter, logger); err != nil {
		p.state = StateFailed
		return err
	}

	p.state = StateSort
	if err := sorter.Finish(); err != nil {
		p.state = StateFailed
		return planerr.New(planerr.IO, "pipeline.Pipeline.Run", "sort incomplete", err)
	}

	p.state = StateEmitTiles
	if err := p.emitTiles(ctx, sorter, logger); err != nil {
		p.state = StateFailed
		return err
	}

	p.state = StateFinish
	if err := p.writer.Finish(); err != nil {
		p.state = StateFailed
		return planerr.New(planerr.IO, "pipeline.Pipeline.Run", "archive not finalized", err)
	}

	p.state = StateDone
	return nil
}

// keyTable and layerIDs are populated as the profile emits layers for
// the first time; they're shared across the whole run so attribute keys
// and layer ids stay stable from render through to encode.
func (p *Pipeline) readAndRender(ctx context.Context, next SourceIterator, renderer *render.Renderer, sorter *extsort.Sorter, logger *zap.Logger) error {
	keys := profile.NewKeyTable()
	layerIDs := profile.NewLayerRegistry()
	p.layerIDs = layerIDs
	p.keys = keys

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.threadCount())

	var bar *progressbar.ProgressBar
	if p.opts.ShowProgress {
		bar = progressbar.Default(-1, "rendering features")
	}

	var featureOrder uint8
	for {
		select {
		case <-gctx.Done():
			return g.Wait()
		default:
		}

		src, ok, err := next()
		if err != nil {
			logger.Warn("source feature unreadable, skipping",
				zap.Error(planerr.New(planerr.Input, "pipeline.readAndRender", "feature skipped", err)))
			p.stats.addRecoverableError()
			continue
		}
		if !ok {
			break
		}
		if !p.prof.CaresAboutSource(src.SourceLayer()) {
			continue
		}

		order := featureOrder
		featureOrder++
		s := src

		g.Go(func() error {
			var out []render.Feature
			em := profile.NewEmitter(renderer, keys, layerIDs, order, &out)
			if err := p.prof.ProcessFeature(gctx, s, em); err != nil {
				logger.Warn("profile.ProcessFeature failed, skipping feature", zap.Error(err))
				p.stats.addRecoverableError()
				return nil
			}
			p.stats.addSourceFeature()
			p.stats.addRenderedFeatures(len(out))
			for _, f := range out {
				rec := extsort.Record{Key: uint64(f.SortKey), Payload: render.EncodeFeature(f)}
				if err := sorter.Append(rec); err != nil {
					return planerr.New(planerr.IO, "pipeline.readAndRender", "pipeline cancelled", err)
				}
				p.stats.addSpilledBytes(len(rec.Payload))
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
	}
	return g.Wait()
}

// statsSink decorates the archive's ordered sink, attributing each
// submitted result to the run's tile counters before forwarding the batch
// unchanged. A content hash seen twice in the same run is counted as
// deduplicated regardless of whether the underlying Writer actually
// folds it into a repeated reference.
type statsSink struct {
	inner    archive.Sink
	stats    *Stats
	seenHash map[uint64]struct{}
}

func (s *statsSink) Submit(batch []encode.Result) error {
	for _, r := range batch {
		if r.HasHash {
			if _, dup := s.seenHash[r.ContentHash]; dup {
				s.stats.addTileDeduplicated()
			} else {
				s.seenHash[r.ContentHash] = struct{}{}
			}
		}
		s.stats.addTileWritten()
	}
	return s.inner.Submit(batch)
}

func (p *Pipeline) emitTiles(ctx context.Context, sorter *extsort.Sorter, logger *zap.Logger) error {
	it, err := sorter.Iter()
	if err != nil {
		return planerr.New(planerr.IO, "pipeline.emitTiles", "no tiles written", err)
	}
	defer it.Close()

	namer := func(layerID uint8) string { return p.layerIDs.Name(layerID) }
	reader := tilegroup.NewReader(it, namer)

	sink := &statsSink{inner: archive.NewOrderedSink(p.writer), stats: p.stats, seenHash: make(map[uint64]struct{})}
	keyName := func(id int) string { return p.keys.Name(id) }

	pool := encode.NewPool(p.opts.threadCount(), keyName, p.opts.SkipFilledTiles, !p.opts.DisableGzip, p.writer.Deduplicates(), p.opts.TileWarnBytes, logger)

	order := p.writer.Order()
	var bar *progressbar.ProgressBar
	if p.opts.ShowProgress {
		bar = progressbar.Default(-1, "encoding tiles")
	}

	next := func() (tilegroup.Group, bool) {
		g, ok := reader.Next()
		if !ok {
			return g, false
		}
		zoom := int(order.Coord(g.TileID).Z)
		g = tilegroup.PostProcess(ctx, p.prof, zoom, g, logger)
		if bar != nil {
			_ = bar.Add(1)
		}
		return g, true
	}

	if err := pool.Run(ctx, next, sink); err != nil {
		return planerr.New(planerr.IO, "pipeline.emitTiles", "archive incomplete", err)
	}
	if err := reader.Err(); err != nil {
		return planerr.New(planerr.IO, "pipeline.emitTiles", "archive incomplete", err)
	}
	return nil
}
