// Package perfile writes each tile to its own gzip-compressed file under
// a {z}/{x}/{y}.pbf directory tree, per SPEC_FULL.md §4.7's third shipped
// archive.Writer. Grounded on the teacher's tile-per-path directory walk
// in extract.go, which already reasons about archives as a zoom/x/y
// filesystem hierarchy one level up from a single binary blob.
package perfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/planetiler/planetiler-go/tileid"
)

// Writer writes one file per tile. It never deduplicates — every tile
// path is written independently regardless of content. It reports TMS
// order and decodes every tile id with tileid.TMS, so ids packed under
// another order are not supported. File names use the XYZ row (y counted
// from the north, not the flipped TMS row), as {z}/{x}/{y}.pbf consumers
// expect.
type Writer struct {
	root string
}

// New returns a Writer that creates root (and its parents) on Initialize.
func New(root string) *Writer {
	return &Writer{root: root}
}

func (w *Writer) Order() tileid.Order { return tileid.TMS }
func (w *Writer) Deduplicates() bool  { return false }

func (w *Writer) Initialize(_, _ int, _ map[string]string) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("perfile: create root %s: %w", w.root, err)
	}
	return nil
}

func (w *Writer) WriteTile(tileID uint32, data []byte, _ uint64, _ bool) error {
	c := tileid.TMS.Coord(tileID)
	dir := filepath.Join(w.root, fmt.Sprintf("%d", c.Z), fmt.Sprintf("%d", c.X))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("perfile: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.pbf", c.Y))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("perfile: write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) Finish() error { return nil }
