// Package streaming writes tiles as records to an io.Writer in JSON,
// CSV, or TSV form, per SPEC_FULL.md §4.7's fourth shipped archive.Writer
// (spec §6 "Streaming archive"). Each record carries the tile's z/x/y
// coordinates and its gzip-compressed payload, base64-encoded for the
// text formats.
//
// This is stdlib-only (encoding/json, encoding/csv): no retrieved example
// repo or dependency targets "stream tile records as delimited text", so
// there is no third-party concern to ground this package on beyond the
// record shape itself (see DESIGN.md).
package streaming

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/planetiler/planetiler-go/tileid"
)

// Format selects the record encoding.
type Format int

const (
	JSON Format = iota
	CSV
	TSV
)

// record is one tile's JSON representation.
type record struct {
	Z    uint8  `json:"z"`
	X    uint32 `json:"x"`
	Y    uint32 `json:"y"`
	Data string `json:"data"` // base64-encoded gzip-compressed MVT
}

// Writer streams tile records to out as they're written; it never
// deduplicates, since a streaming sink has no random-access index to
// resolve a repeat to.
type Writer struct {
	out    io.Writer
	format Format
	order  tileid.Order

	csvw       *csv.Writer
	wroteFirst bool
}

// New returns a Writer in format writing to out, ordering tiles per
// order (callers typically pass tileid.TMS for human-facing output).
func New(out io.Writer, format Format, order tileid.Order) *Writer {
	return &Writer{out: out, format: format, order: order}
}

func (w *Writer) Order() tileid.Order { return w.order }
func (w *Writer) Deduplicates() bool  { return false }

func (w *Writer) Initialize(_, _ int, _ map[string]string) error {
	switch w.format {
	case CSV:
		w.csvw = csv.NewWriter(w.out)
		return w.csvw.Write([]string{"z", "x", "y", "data"})
	case TSV:
		w.csvw = csv.NewWriter(w.out)
		w.csvw.Comma = '\t'
		return w.csvw.Write([]string{"z", "x", "y", "data"})
	case JSON:
		_, err := io.WriteString(w.out, "[")
		return err
	default:
		return fmt.Errorf("streaming: unknown format %d", w.format)
	}
}

func (w *Writer) WriteTile(tileID uint32, data []byte, _ uint64, _ bool) error {
	c := w.order.Coord(tileID)
	encoded := base64.StdEncoding.EncodeToString(data)

	switch w.format {
	case CSV, TSV:
		return w.csvw.Write([]string{
			fmt.Sprintf("%d", c.Z),
			fmt.Sprintf("%d", c.X),
			fmt.Sprintf("%d", c.Y),
			encoded,
		})
	case JSON:
		if w.wroteFirst {
			if _, err := io.WriteString(w.out, ","); err != nil {
				return err
			}
		}
		w.wroteFirst = true
		rec := record{Z: c.Z, X: c.X, Y: c.Y, Data: encoded}
		enc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("streaming: marshal tile %s: %w", c, err)
		}
		_, err = w.out.Write(enc)
		return err
	default:
		return fmt.Errorf("streaming: unknown format %d", w.format)
	}
}

func (w *Writer) Finish() error {
	var err error
	switch w.format {
	case CSV, TSV:
		w.csvw.Flush()
		err = w.csvw.Error()
	case JSON:
		_, err = io.WriteString(w.out, "]")
	default:
		err = fmt.Errorf("streaming: unknown format %d", w.format)
	}
	if closer, ok := w.out.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
