package perfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetiler/planetiler-go/tileid"
)

func TestWriterWritesExpectedPath(t *testing.T) {
	root := t.TempDir()
	w := New(root)

	require.NoError(t, w.Initialize(0, 3, nil))
	assert.False(t, w.Deduplicates())
	assert.Equal(t, tileid.TMS, w.Order())

	id := tileid.TMS.ID(tileid.Coord{Z: 3, X: 5, Y: 2})
	require.NoError(t, w.WriteTile(id, []byte("hello"), 0, false))
	require.NoError(t, w.Finish())

	path := filepath.Join(root, "3", "5", "2.pbf")
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}
