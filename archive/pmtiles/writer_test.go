package pmtiles

import (
	"bytes"
	"compress/gzip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/tileid"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pmtiles")
	w := New(path)
	require.NoError(t, w.Initialize(0, 2, map[string]string{"name": "test"}))

	tiles := []struct {
		z uint8
		x uint32
		y uint32
	}{
		{0, 0, 0},
		{1, 0, 0},
		{1, 1, 1},
	}
	var ids []uint64
	for _, tc := range tiles {
		id := tileid.Hilbert.ID(tileid.Coord{Z: tc.z, X: tc.x, Y: tc.y})
		ids = append(ids, uint64(id))
	}

	for i, id := range ids {
		data := gzipBytes(t, []byte{byte(i), byte(i + 1)})
		require.NoError(t, w.WriteTile(uint32(id), data, 0, false))
	}
	require.NoError(t, w.Finish())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.EqualValues(t, 3, r.Header.TileEntriesCount)
	assert.EqualValues(t, 0, r.Header.MinZoom)
	assert.EqualValues(t, 2, r.Header.MaxZoom)

	for i, id := range ids {
		got, ok, err := r.Tile(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte{byte(i), byte(i + 1)}, got)
	}
}

func TestWriterDeduplicatesIdenticalTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.pmtiles")
	w := New(path)
	require.NoError(t, w.Initialize(0, 1, nil))

	id0 := tileid.Hilbert.ID(tileid.Coord{Z: 0, X: 0, Y: 0})
	id1 := tileid.Hilbert.ID(tileid.Coord{Z: 1, X: 0, Y: 0})
	data := gzipBytes(t, []byte("same content"))

	require.NoError(t, w.WriteTile(uint32(id0), data, 42, true))
	require.NoError(t, w.WriteTile(uint32(id1), data, 42, true))
	require.NoError(t, w.Finish())

	assert.EqualValues(t, 1, len(w.hashToOffset))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, 1, r.Header.TileContentsCount)
	assert.EqualValues(t, 1, r.Header.TileEntriesCount)
}

func TestInspectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspect.pmtiles")
	w := New(path)
	require.NoError(t, w.Initialize(3, 3, nil))
	id := tileid.Hilbert.ID(tileid.Coord{Z: 3, X: 1, Y: 1})
	require.NoError(t, w.WriteTile(uint32(id), gzipBytes(t, []byte("x")), 0, false))
	require.NoError(t, w.Finish())

	info, err := InspectFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 3, info.MinZoom)
	assert.EqualValues(t, 3, info.MaxZoom)
	assert.EqualValues(t, 1, info.AddressedTilesCount)
}
