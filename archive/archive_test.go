package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/encode"
	"github.com/planetiler/planetiler-go/tileid"
)

type fakeWriter struct {
	order        tileid.Order
	dedup        bool
	written      []uint32
	initMin      int
	initMax      int
}

func (f *fakeWriter) Order() tileid.Order      { return f.order }
func (f *fakeWriter) Deduplicates() bool       { return f.dedup }
func (f *fakeWriter) Initialize(min, max int, _ map[string]string) error {
	f.initMin, f.initMax = min, max
	return nil
}
func (f *fakeWriter) WriteTile(tileID uint32, _ []byte, _ uint64, _ bool) error {
	f.written = append(f.written, tileID)
	return nil
}
func (f *fakeWriter) Finish() error { return nil }

func TestOrderedSinkWritesInOrder(t *testing.T) {
	fw := &fakeWriter{order: tileid.TMS, dedup: true}
	sink := NewOrderedSink(fw)

	require.NoError(t, sink.Submit([]encode.Result{
		{TileID: 1, Data: []byte("a")},
		{TileID: 2, Data: []byte("b")},
	}))
	require.NoError(t, sink.Submit([]encode.Result{
		{TileID: 3, Data: []byte("c")},
	}))

	assert.Equal(t, []uint32{1, 2, 3}, fw.written)
	assert.Equal(t, 3, sink.TileCount())
}

func TestOrderedSinkRejectsOutOfOrder(t *testing.T) {
	fw := &fakeWriter{order: tileid.TMS}
	sink := NewOrderedSink(fw)

	require.NoError(t, sink.Submit([]encode.Result{{TileID: 5, Data: []byte("a")}}))
	err := sink.Submit([]encode.Result{{TileID: 5, Data: []byte("b")}})
	assert.Error(t, err)
}

// TestOrderedSinkWritesFillTilesWithoutData verifies SPEC_FULL.md §4.5/§4.6:
// a repeated fill tile still addresses a tile coordinate (the Writer
// resolves it to a previously written payload via ContentHash), it just
// carries no bytes of its own.
func TestOrderedSinkWritesFillTilesWithoutData(t *testing.T) {
	fw := &fakeWriter{order: tileid.TMS, dedup: true}
	sink := NewOrderedSink(fw)

	require.NoError(t, sink.Submit([]encode.Result{
		{TileID: 1, Data: []byte("real"), ContentHash: 42, HasHash: true, IsFill: true},
		{TileID: 2, IsFill: true, ContentHash: 42, HasHash: true},
	}))
	assert.Equal(t, []uint32{1, 2}, fw.written)
}
