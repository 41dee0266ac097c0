package encode

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planetiler/planetiler-go/tilegroup"
)

// Batching limits: a batch is closed once either threshold is hit,
// whichever comes first (SPEC_FULL.md §4.5).
const (
	MaxTilesPerBatch    = 1000
	MaxFeaturesPerBatch = 10_000
)

// Sink receives encoded tiles in submission order; typically an
// archive.OrderedSink.
type Sink interface {
	Submit(batch []Result) error
}

// Pool runs N encoder workers consuming tile Groups and producing
// Results, preserving archive order across the handoff to sink (SPEC_FULL.md
// §2, "TileEncoderPool(N) ⇉ WriterOrderedSink(1)").
type Pool struct {
	workers     int
	keyName     KeyName
	skipFilled  bool
	gzipData    bool
	computeHash bool
	warnBytes   int
	logger      *zap.Logger
}

// NewPool constructs an encoder pool with the given worker count. warnBytes
// of zero or less falls back to TileWarnBytes.
func NewPool(workers int, keyName KeyName, skipFilled, gzipData, computeHash bool, warnBytes int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if warnBytes <= 0 {
		warnBytes = TileWarnBytes
	}
	return &Pool{workers: workers, keyName: keyName, skipFilled: skipFilled, gzipData: gzipData, computeHash: computeHash, warnBytes: warnBytes, logger: logger}
}

// batch carries a contiguous run of groups plus its position in submission
// order, so out-of-order worker completion can still be resequenced by the
// sink.
type batch struct {
	seq    int
	groups []tilegroup.Group
}

// Run drains groups from next until it returns false, fans batches out
// across p.workers encoder goroutines, and submits completed batches to
// sink in the same order groups were read. Returns the first error from
// either encoding or the sink, after all in-flight work has drained.
func (p *Pool) Run(ctx context.Context, next func() (tilegroup.Group, bool), sink Sink) error {
	batches := make(chan batch, p.workers*2)
	results := make(chan struct {
		seq   int
		batch []Result
	}, p.workers*2)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		seq := 0
		var cur []tilegroup.Group
		features := 0
		flush := func() {
			if len(cur) == 0 {
				return
			}
			select {
			case batches <- batch{seq: seq, groups: cur}:
			case <-ctx.Done():
			}
			seq++
			cur = nil
			features = 0
		}
		for {
			grp, ok := next()
			if !ok {
				flush()
				return nil
			}
			cur = append(cur, grp)
			for _, l := range grp.Layers {
				features += len(l.Features)
			}
			if len(cur) >= MaxTilesPerBatch || features >= MaxFeaturesPerBatch {
				flush()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	})

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			var memo memoState
			for b := range batches {
				out := make([]Result, 0, len(b.groups))
				for _, grp := range b.groups {
					res, err := EncodeTile(grp, p.keyName, p.skipFilled, p.gzipData, p.computeHash)
					if err != nil {
						return fmt.Errorf("encode: worker: %w", err)
					}
					if p.logger != nil && res.RawBytes > p.warnBytes {
						p.logger.Warn("encoded tile exceeds warning size",
							zap.Uint32("tileId", res.TileID), zap.Int("bytes", res.RawBytes))
					}
					if memo.sameAsLast(res) {
						if res.IsFill && !p.computeHash {
							// A writer that cannot dedup gets no entry at
							// all for a repeated fill tile.
							continue
						}
						if res.IsFill {
							// A run of identical fill tiles larger than 1
							// stores zero bytes beyond the first
							// (SPEC_FULL.md §4.5): the content hash alone
							// lets a deduplicating archive.Writer resolve
							// this tile to the one it already stored.
							res.Data = nil
						} else {
							res = memo.last
							res.TileID = grp.TileID
						}
					} else {
						memo.remember(res)
					}
					out = append(out, res)
				}
				select {
				case results <- struct {
					seq   int
					batch []Result
				}{seq: b.seq, batch: out}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() {
		done <- resequenceAndSubmit(results, sink)
	}()

	groupErr := g.Wait()
	close(results)
	sinkErr := <-done

	if groupErr != nil {
		return groupErr
	}
	return sinkErr
}

// memoState tracks the last encoded tile a single worker produced, so an
// immediately-repeated identical tile (common for sparse rural fills at
// low zoom) is recognised by its content hash. The comparison runs on the
// already-encoded Result: every group is marshaled and compressed before
// the memo is consulted, so a repeat does not skip encoding. This is a
// per-worker check, not a cross-worker content hash join — that's the
// archive writer's dedup map.
type memoState struct {
	have bool
	last Result
	hash uint64
}

func (m *memoState) sameAsLast(candidate Result) bool {
	if !m.have || !candidate.HasHash || !m.last.HasHash {
		return false
	}
	return candidate.ContentHash == m.hash
}

func (m *memoState) remember(res Result) {
	m.have = true
	m.last = res
	if res.HasHash {
		m.hash = res.ContentHash
	}
}

// resequenceAndSubmit buffers out-of-order batch completions until the
// next expected sequence number is available, then submits in order.
func resequenceAndSubmit(results <-chan struct {
	seq   int
	batch []Result
}, sink Sink) error {
	pending := make(map[int][]Result)
	expect := 0
	for r := range results {
		pending[r.seq] = r.batch
		for {
			b, ok := pending[expect]
			if !ok {
				break
			}
			if err := sink.Submit(b); err != nil {
				// Keep receiving so workers blocked on results can finish
				// and Run can return; results closes once they have.
				for range results {
				}
				return fmt.Errorf("encode: sink submit: %w", err)
			}
			delete(pending, expect)
			expect++
		}
	}
	if len(pending) != 0 {
		return fmt.Errorf("encode: %d batches never became contiguous (missing seq %d)", len(pending), expect)
	}
	return nil
}
