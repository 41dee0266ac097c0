package sqlitearchive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/tileid"
)

func TestWriterRoundTripFlatSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := New(path, false)
	require.NoError(t, err)

	require.NoError(t, w.Initialize(0, 2, map[string]string{"generator": "test"}))
	assert.Equal(t, tileid.TMS, w.Order())
	assert.False(t, w.Deduplicates())

	id := tileid.TMS.ID(tileid.Coord{Z: 1, X: 0, Y: 0})
	require.NoError(t, w.WriteTile(id, []byte("tile-bytes"), 0, false))
	require.NoError(t, w.Finish())
}

func TestWriterDeduplicatesInCompactSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := New(path, true)
	require.NoError(t, err)

	require.NoError(t, w.Initialize(0, 2, map[string]string{"generator": "test"}))
	assert.True(t, w.Deduplicates())

	a := tileid.TMS.ID(tileid.Coord{Z: 1, X: 0, Y: 0})
	b := tileid.TMS.ID(tileid.Coord{Z: 1, X: 1, Y: 0})

	require.NoError(t, w.WriteTile(a, []byte("same"), 42, true))
	require.NoError(t, w.WriteTile(b, []byte("same"), 42, true))
	assert.Equal(t, int64(1), w.nextDataID)

	require.NoError(t, w.Finish())
}
