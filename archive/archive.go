// Package archive defines the ArchiveWriter contract and the ordered,
// deduplicating sink that feeds it from the encoder pool, per SPEC_FULL.md
// §2 and §4.7. Concrete writers (pmtiles, sqlitearchive, perfile,
// streaming) live in subpackages.
package archive

import (
	"fmt"
	"sync"

	"github.com/planetiler/planetiler-go/encode"
	"github.com/planetiler/planetiler-go/tileid"
)

// Writer is a closed variant set of archive backends this module ships
// (SPEC_FULL.md §9: "a closed archive.Writer variant set chosen at
// Initialize" rather than an open plugin interface). Every call after
// Initialize is single-writer, single-goroutine: OrderedSink is
// responsible for calling WriteTile strictly in Order() and never
// concurrently.
type Writer interface {
	// Order is the tile ordering this writer requires tiles delivered in.
	Order() tileid.Order
	// Deduplicates reports whether this writer can resolve repeated
	// content to a previously written tile's offset (PMTiles and compact
	// sqlite writers can; flat sqlite, perfile and streaming writers
	// cannot).
	Deduplicates() bool
	// Initialize prepares the writer to accept tiles (opens files,
	// creates tables, etc).
	Initialize(minZoom, maxZoom int, metadata map[string]string) error
	// WriteTile writes one tile's compressed data. Called in strict
	// Order() sequence. If hasHash is true and Deduplicates() is true,
	// the writer may store a reference to a prior identical tile
	// instead of the bytes again.
	WriteTile(tileID uint32, data []byte, contentHash uint64, hasHash bool) error
	// Finish flushes and closes the archive, writing any trailing
	// directory/index structures.
	Finish() error
}

// Sink is the narrow interface encode.Pool submits ordered batches to.
type Sink interface {
	Submit(batch []encode.Result) error
}

// OrderedSink is the single consumer between the encoder pool and a
// Writer: it asserts strictly increasing tile ids and calls
// Writer.WriteTile once per tile in order (SPEC_FULL.md §2,
// "WriterOrderedSink"), forwarding each tile's content hash so the
// Writer itself can dedup.
type OrderedSink struct {
	w Writer

	mu        sync.Mutex
	lastTile  uint32
	haveLast  bool
	tileCount int
}

// NewOrderedSink wraps w. Content-hash dedup (SPEC_FULL.md §4.6's
// "map<contentHash, tileDataId>") lives in each concrete Writer instead
// of here (pmtiles.Writer.hashToOffset, sqlitearchive.Writer.byHash):
// only a Writer knows how its own on-disk record format expresses a
// pointer to previously-written data, so OrderedSink forwards every
// tile's hash and lets Writer.WriteTile make that call per res.HasHash.
func NewOrderedSink(w Writer) *OrderedSink {
	return &OrderedSink{w: w}
}

// Submit writes every result in batch, in order, asserting the archive's
// tile-order invariant holds across the whole run (not just within a
// batch).
func (s *OrderedSink) Submit(batch []encode.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range batch {
		if s.haveLast && res.TileID <= s.lastTile {
			return fmt.Errorf("archive: tile order violation: tile %d after %d", res.TileID, s.lastTile)
		}
		s.lastTile = res.TileID
		s.haveLast = true

		// res.Data may be nil here for a repeated fill tile the encoder
		// pool already matched against its immediate predecessor
		// (encode.memoState): the tile coordinate is still addressed, but
		// only the first occurrence of the run carried real bytes. A
		// deduplicating Writer resolves the rest from res.ContentHash
		// alone (pmtiles.Writer.hashToOffset, sqlitearchive.Writer.byHash).
		if err := s.w.WriteTile(res.TileID, res.Data, res.ContentHash, res.HasHash); err != nil {
			return fmt.Errorf("archive: write tile %d: %w", res.TileID, err)
		}
		s.tileCount++
	}
	return nil
}

// TileCount reports how many tiles have been written so far.
func (s *OrderedSink) TileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tileCount
}
