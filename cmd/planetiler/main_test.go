package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/archive/perfile"
	"github.com/planetiler/planetiler-go/archive/pmtiles"
	"github.com/planetiler/planetiler-go/archive/sqlitearchive"
	"github.com/planetiler/planetiler-go/archive/streaming"
)

func TestParseBoundsValid(t *testing.T) {
	b, err := parseBounds("-10,-5,10,5")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, -10.0, b.Min.X())
	assert.Equal(t, 5.0, b.Max.Y())
}

func TestParseBoundsEmptyMeansUnrestricted(t *testing.T) {
	b, err := parseBounds("")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestParseBoundsRejectsBadShape(t *testing.T) {
	_, err := parseBounds("1,2,3")
	assert.Error(t, err)
}

func TestWriterForPathSelectsByExtension(t *testing.T) {
	dir := t.TempDir()

	w, err := writerForPath(filepath.Join(dir, "out.pmtiles"), false)
	require.NoError(t, err)
	assert.IsType(t, &pmtiles.Writer{}, w)

	w, err = writerForPath(filepath.Join(dir, "out.mbtiles"), false)
	require.NoError(t, err)
	assert.IsType(t, &sqlitearchive.Writer{}, w)

	w, err = writerForPath(filepath.Join(dir, "out.json"), false)
	require.NoError(t, err)
	assert.IsType(t, &streaming.Writer{}, w)

	w, err = writerForPath(filepath.Join(dir, "tiles")+"/", false)
	require.NoError(t, err)
	assert.IsType(t, &perfile.Writer{}, w)
}

func TestResolveOutputLocalPath(t *testing.T) {
	dir := t.TempDir()
	out, err := resolveOutput(filepath.Join(dir, "out.pmtiles"), dir, false)
	require.NoError(t, err)
	assert.Nil(t, out.upload)
	assert.IsType(t, &pmtiles.Writer{}, out.writer)
}

func TestLoadGeoJSONSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.geojson")
	geojsonDoc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","id":1,"properties":{"name":"a"},"geometry":{"type":"Point","coordinates":[1,2]}},
		{"type":"Feature","properties":{},"geometry":null}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(geojsonDoc), 0o644))

	sources, err := loadGeoJSONSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	id, ok := sources[0].ID()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), id)
}
