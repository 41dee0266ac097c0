package pipeline

import "sync/atomic"

// Stats is a thread-safe counters handle threaded through Pipeline
// construction (SPEC_FULL.md §9: "a Stats handle threaded through
// construction instead of globals" — replacing the kind of package-level
// counters the teacher's CLI commands print via fmt.Println directly).
type Stats struct {
	sourceFeaturesRead  atomic.Int64
	renderedFeatures    atomic.Int64
	spilledBytes        atomic.Int64
	tilesWritten        atomic.Int64
	tilesDeduplicated   atomic.Int64
	recoverableErrors   atomic.Int64
}

// NewStats returns a zeroed Stats handle.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) addSourceFeature()        { s.sourceFeaturesRead.Add(1) }
func (s *Stats) addRenderedFeatures(n int) { s.renderedFeatures.Add(int64(n)) }
func (s *Stats) addSpilledBytes(n int)     { s.spilledBytes.Add(int64(n)) }
func (s *Stats) addTileWritten()           { s.tilesWritten.Add(1) }
func (s *Stats) addTileDeduplicated()      { s.tilesDeduplicated.Add(1) }
func (s *Stats) addRecoverableError()      { s.recoverableErrors.Add(1) }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	SourceFeaturesRead int64
	RenderedFeatures   int64
	SpilledBytes       int64
	TilesWritten       int64
	TilesDeduplicated  int64
	RecoverableErrors  int64
}

// Snapshot takes a consistent-enough read of all counters for progress
// reporting; individual fields may be a few increments stale relative to
// each other under concurrent writers, which is fine for a progress line.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SourceFeaturesRead: s.sourceFeaturesRead.Load(),
		RenderedFeatures:   s.renderedFeatures.Load(),
		SpilledBytes:       s.spilledBytes.Load(),
		TilesWritten:       s.tilesWritten.Load(),
		TilesDeduplicated:  s.tilesDeduplicated.Load(),
		RecoverableErrors:  s.recoverableErrors.Load(),
	}
}
