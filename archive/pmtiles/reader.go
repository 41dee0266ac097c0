package pmtiles

// Reader and Inspect are adapted from the teacher's show.go/server.go,
// narrowed from a bucket-backed HTTP server to a local-file,
// verification-only reader: SPEC_FULL.md scopes random-access tile reads
// out ("reads are only for verification"), so there is no bucket
// abstraction, caching, or range-request machinery here — just enough to
// let a test open the archive it just wrote and confirm a tile
// round-trips; the pipeline and CLI do not call it.

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// Reader opens a local PMTiles v3 file for read-only verification.
type Reader struct {
	f      *os.File
	Header HeaderV3
	root   []EntryV3
}

// Open reads path's header and root directory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: open %s: %w", path, err)
	}

	headerBuf := make([]byte, HeaderV3LenBytes)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		f.Close()
		return nil, fmt.Errorf("pmtiles: read header: %w", err)
	}
	header, err := DeserializeHeader(headerBuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	rootBuf := make([]byte, header.RootLength)
	if _, err := f.ReadAt(rootBuf, int64(header.RootOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("pmtiles: read root directory: %w", err)
	}
	root, err := DeserializeEntries(bytes.NewBuffer(rootBuf), header.InternalCompression)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Reader{f: f, Header: header, root: root}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// Tile fetches and decompresses the content of the tile with Hilbert id
// id, returning (nil, false, nil) if the archive has no entry for it.
func (r *Reader) Tile(id uint64) ([]byte, bool, error) {
	entry, ok, err := r.findEntry(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	raw := make([]byte, entry.Length)
	if _, err := r.f.ReadAt(raw, int64(r.Header.TileDataOffset+entry.Offset)); err != nil {
		return nil, false, fmt.Errorf("pmtiles: read tile data: %w", err)
	}

	if r.Header.TileCompression != Gzip {
		return raw, true, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, false, fmt.Errorf("pmtiles: open tile gzip: %w", err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, false, fmt.Errorf("pmtiles: decompress tile: %w", err)
	}
	return data, true, nil
}

func (r *Reader) findEntry(id uint64) (EntryV3, bool, error) {
	entry, ok := findTile(r.root, id)
	if !ok {
		return EntryV3{}, false, nil
	}
	if entry.RunLength > 0 {
		return entry, true, nil
	}
	// entry points at a leaf directory; entry.Offset/Length describe it
	// within the leaf-directory region, not the tile-data region.
	leafBuf := make([]byte, entry.Length)
	if _, err := r.f.ReadAt(leafBuf, int64(r.Header.LeafDirectoryOffset+entry.Offset)); err != nil {
		return EntryV3{}, false, fmt.Errorf("pmtiles: read leaf directory: %w", err)
	}
	leaf, err := DeserializeEntries(bytes.NewBuffer(leafBuf), r.Header.InternalCompression)
	if err != nil {
		return EntryV3{}, false, err
	}
	leafEntry, ok := findTile(leaf, id)
	return leafEntry, ok, nil
}

// Inspect reports summary statistics about an archive, adapted from the
// teacher's Show (non-tile-dump branch); it is called from tests, not
// from an HTTP status endpoint or the CLI.
type Inspect struct {
	SpecVersion         uint8
	MinZoom, MaxZoom    uint8
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
}

// InspectFile opens path just long enough to summarize its header.
func InspectFile(path string) (Inspect, error) {
	r, err := Open(path)
	if err != nil {
		return Inspect{}, err
	}
	defer r.Close()
	h := r.Header
	return Inspect{
		SpecVersion:         h.SpecVersion,
		MinZoom:             h.MinZoom,
		MaxZoom:             h.MaxZoom,
		AddressedTilesCount: h.AddressedTilesCount,
		TileEntriesCount:    h.TileEntriesCount,
		TileContentsCount:   h.TileContentsCount,
		Clustered:           h.Clustered,
	}, nil
}
