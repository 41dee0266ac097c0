package streaming

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/tileid"
)

func TestWriterJSONArray(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, JSON, tileid.TMS)

	require.NoError(t, w.Initialize(0, 1, nil))
	id := tileid.TMS.ID(tileid.Coord{Z: 1, X: 0, Y: 0})
	require.NoError(t, w.WriteTile(id, []byte("abc"), 0, false))
	id2 := tileid.TMS.ID(tileid.Coord{Z: 1, X: 1, Y: 1})
	require.NoError(t, w.WriteTile(id2, []byte("def"), 0, false))
	require.NoError(t, w.Finish())

	var records []record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	assert.Len(t, records, 2)
	assert.Equal(t, uint8(1), records[0].Z)
}

func TestWriterCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf, CSV, tileid.TMS)

	require.NoError(t, w.Initialize(0, 0, nil))
	id := tileid.TMS.ID(tileid.Coord{Z: 0, X: 0, Y: 0})
	require.NoError(t, w.WriteTile(id, []byte("z"), 0, false))
	require.NoError(t, w.Finish())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "z,x,y,data", lines[0])
}
