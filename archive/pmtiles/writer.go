// Package pmtiles adapts the teacher's PMTiles v3 binary format
// (directory.go / tile_id.go / writer.go) into an archive.Writer that
// consumes the pipeline's encoded tile stream instead of a converter's
// read-then-rewrite path (SPEC_FULL.md §4.7).
package pmtiles

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/planetiler/planetiler-go/tileid"
)

// targetRootLenBytes bounds the root directory so a reader can fetch it
// in one request; mirrors the teacher's writer.go constant.
const targetRootLenBytes = 16384

// Writer implements archive.Writer, building a PMTiles v3 archive at
// path. Tiles must arrive via WriteTile in strictly increasing Hilbert
// tile-id order (archive.OrderedSink guarantees this).
type Writer struct {
	path string
	f    *os.File

	entries  []EntryV3
	tileData bytes.Buffer
	offset   uint64

	hashToOffset map[uint64]uint64 // contentHash -> tileData offset, for dedup
	minZoom      int
	maxZoom      int
	metadata     map[string]string
}

// New constructs a Writer that will create path on Initialize.
func New(path string) *Writer {
	return &Writer{path: path, hashToOffset: make(map[uint64]uint64)}
}

func (w *Writer) Order() tileid.Order { return tileid.Hilbert }

func (w *Writer) Deduplicates() bool { return true }

func (w *Writer) Initialize(minZoom, maxZoom int, metadata map[string]string) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("pmtiles: create %s: %w", w.path, err)
	}
	w.f = f
	w.minZoom = minZoom
	w.maxZoom = maxZoom
	w.metadata = metadata
	return nil
}

func (w *Writer) WriteTile(tileID uint32, data []byte, contentHash uint64, hasHash bool) error {
	id := uint64(tileID)

	if hasHash {
		if off, dup := w.hashToOffset[contentHash]; dup {
			w.appendEntry(id, off, w.lengthAtOffset(off))
			return nil
		}
	}

	off := w.offset
	length := uint32(len(data))
	if _, err := w.tileData.Write(data); err != nil {
		return fmt.Errorf("pmtiles: buffer tile %d: %w", tileID, err)
	}
	w.offset += uint64(length)

	if hasHash {
		w.hashToOffset[contentHash] = off
	}
	w.appendEntry(id, off, length)
	return nil
}

// lengthAtOffset recovers a previously written tile's length from the
// last entry that used that offset; dedup only ever references an
// offset this writer itself produced, so the lookup always succeeds.
func (w *Writer) lengthAtOffset(off uint64) uint32 {
	for i := len(w.entries) - 1; i >= 0; i-- {
		if w.entries[i].Offset == off {
			return w.entries[i].Length
		}
	}
	return 0
}

func (w *Writer) appendEntry(tileID, offset uint64, length uint32) {
	n := len(w.entries)
	if n > 0 && w.entries[n-1].Offset == offset && w.entries[n-1].TileID+uint64(w.entries[n-1].RunLength) == tileID {
		w.entries[n-1].RunLength++
		return
	}
	w.entries = append(w.entries, EntryV3{TileID: tileID, Offset: offset, Length: length, RunLength: 1})
}

func (w *Writer) Finish() error {
	defer w.f.Close()

	sort.Slice(w.entries, func(i, j int) bool { return w.entries[i].TileID < w.entries[j].TileID })

	metadataMap := make(map[string]interface{}, len(w.metadata))
	for k, v := range w.metadata {
		metadataMap[k] = v
	}
	metadataBytes, err := SerializeMetadata(metadataMap, Gzip)
	if err != nil {
		return fmt.Errorf("pmtiles: serialize metadata: %w", err)
	}

	rootBytes, leafBytes, _ := optimizeDirectories(w.entries, targetRootLenBytes, Gzip)

	headerSize := uint64(HeaderV3LenBytes)
	rootOffset := headerSize
	rootLen := uint64(len(rootBytes))
	leafOffset := rootOffset + rootLen
	leafLen := uint64(len(leafBytes))
	metadataOffset := leafOffset + leafLen
	metadataLen := uint64(len(metadataBytes))
	tileDataOffset := metadataOffset + metadataLen
	tileDataLen := uint64(w.tileData.Len())

	contentsCount := uint64(len(w.hashToOffset))
	if contentsCount == 0 {
		contentsCount = uint64(len(w.entries))
	}

	var addressed uint64
	for _, e := range w.entries {
		addressed += uint64(e.RunLength)
	}

	header := HeaderV3{
		SpecVersion:         3,
		RootOffset:          rootOffset,
		RootLength:          rootLen,
		MetadataOffset:      metadataOffset,
		MetadataLength:      metadataLen,
		LeafDirectoryOffset: leafOffset,
		LeafDirectoryLength: leafLen,
		TileDataOffset:      tileDataOffset,
		TileDataLength:      tileDataLen,
		AddressedTilesCount: addressed,
		TileEntriesCount:    uint64(len(w.entries)),
		TileContentsCount:   contentsCount,
		Clustered:           true,
		InternalCompression: Gzip,
		TileCompression:     Gzip,
		TileType:            Mvt,
		MinZoom:             uint8(w.minZoom),
		MaxZoom:             uint8(w.maxZoom),
	}

	headerBytes := SerializeHeader(header)

	for _, chunk := range [][]byte{headerBytes, rootBytes, leafBytes, metadataBytes} {
		if _, err := w.f.Write(chunk); err != nil {
			return fmt.Errorf("pmtiles: write archive: %w", err)
		}
	}
	if _, err := w.tileData.WriteTo(w.f); err != nil {
		return fmt.Errorf("pmtiles: write tile data: %w", err)
	}
	return nil
}
