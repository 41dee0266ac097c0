package pmtiles

// Directory and header (de)serialization, adapted from the teacher's
// pmtiles/directory.go. Only the pieces this module's writer and
// verification reader need survive: the v2-legacy and HTTP-server-facing
// helpers (HeaderJson, tileTypeToString, headerContentType, ...) are
// dropped per SPEC_FULL.md's "HTTP tile server out of scope" note.

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Compression is the compression algorithm applied to individual tiles.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
	Brotli             Compression = 3
	Zstd               Compression = 4
)

// TileType is the format of individual tile contents in the archive.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
	Png             TileType = 2
	Jpeg            TileType = 3
	Webp            TileType = 4
	Avif            TileType = 5
)

// HeaderV3LenBytes is the fixed-size binary header length.
const HeaderV3LenBytes = 127

// HeaderV3 is the binary header for PMTiles spec version 3.
type HeaderV3 struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// EntryV3 is one directory entry.
type EntryV3 struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

type nopWriteCloser struct {
	*bytes.Buffer
}

func (w *nopWriteCloser) Close() error { return nil }

// SerializeMetadata encodes metadata as (optionally gzip-compressed) JSON.
func SerializeMetadata(metadata map[string]interface{}, compression Compression) ([]byte, error) {
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	switch compression {
	case NoCompression:
		return jsonBytes, nil
	case Gzip:
		var b bytes.Buffer
		w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		w.Write(jsonBytes)
		w.Close()
		return b.Bytes(), nil
	default:
		return nil, errors.New("pmtiles: metadata compression not supported")
	}
}

// DeserializeMetadata is the inverse of SerializeMetadata.
func DeserializeMetadata(reader io.Reader, compression Compression) (map[string]interface{}, error) {
	var jsonBytes []byte
	var err error
	switch compression {
	case NoCompression:
		jsonBytes, err = io.ReadAll(reader)
	case Gzip:
		var gzipReader *gzip.Reader
		gzipReader, err = gzip.NewReader(reader)
		if err == nil {
			jsonBytes, err = io.ReadAll(gzipReader)
			gzipReader.Close()
		}
	default:
		return nil, errors.New("pmtiles: metadata compression not supported")
	}
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// SerializeEntries packs entries as varint-delta tile ids, run lengths,
// byte lengths, and offsets (delta-from-contiguous, 0 meaning "right
// after the previous entry"), optionally gzip-wrapped.
func SerializeEntries(entries []EntryV3, compression Compression) []byte {
	var b bytes.Buffer
	var w io.WriteCloser

	tmp := make([]byte, binary.MaxVarintLen64)
	switch compression {
	case NoCompression:
		w = &nopWriteCloser{&b}
	case Gzip:
		w, _ = gzip.NewWriterLevel(&b, gzip.BestCompression)
	default:
		panic("pmtiles: entries compression not supported")
	}

	n := binary.PutUvarint(tmp, uint64(len(entries)))
	w.Write(tmp[:n])

	lastID := uint64(0)
	for _, entry := range entries {
		n = binary.PutUvarint(tmp, entry.TileID-lastID)
		w.Write(tmp[:n])
		lastID = entry.TileID
	}
	for _, entry := range entries {
		n = binary.PutUvarint(tmp, uint64(entry.RunLength))
		w.Write(tmp[:n])
	}
	for _, entry := range entries {
		n = binary.PutUvarint(tmp, uint64(entry.Length))
		w.Write(tmp[:n])
	}
	for i, entry := range entries {
		if i > 0 && entry.Offset == entries[i-1].Offset+uint64(entries[i-1].Length) {
			n = binary.PutUvarint(tmp, 0)
		} else {
			n = binary.PutUvarint(tmp, entry.Offset+1) // +1 so 0 means "contiguous"
		}
		w.Write(tmp[:n])
	}
	w.Close()
	return b.Bytes()
}

// DeserializeEntries is the inverse of SerializeEntries.
func DeserializeEntries(data *bytes.Buffer, compression Compression) ([]EntryV3, error) {
	entries := make([]EntryV3, 0)

	var reader io.Reader
	switch compression {
	case NoCompression:
		reader = data
	case Gzip:
		gz, err := gzip.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: open gzip directory: %w", err)
		}
		reader = gz
	default:
		return nil, errors.New("pmtiles: entries compression not supported")
	}
	byteReader := bufio.NewReader(reader)

	numEntries, err := binary.ReadUvarint(byteReader)
	if err != nil {
		return nil, fmt.Errorf("pmtiles: read entry count: %w", err)
	}

	lastID := uint64(0)
	for i := uint64(0); i < numEntries; i++ {
		delta, err := binary.ReadUvarint(byteReader)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read tile id: %w", err)
		}
		lastID += delta
		entries = append(entries, EntryV3{TileID: lastID})
	}
	for i := uint64(0); i < numEntries; i++ {
		rl, err := binary.ReadUvarint(byteReader)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read run length: %w", err)
		}
		entries[i].RunLength = uint32(rl)
	}
	for i := uint64(0); i < numEntries; i++ {
		l, err := binary.ReadUvarint(byteReader)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read length: %w", err)
		}
		entries[i].Length = uint32(l)
	}
	for i := uint64(0); i < numEntries; i++ {
		off, err := binary.ReadUvarint(byteReader)
		if err != nil {
			return nil, fmt.Errorf("pmtiles: read offset: %w", err)
		}
		if i > 0 && off == 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = off - 1
		}
	}
	return entries, nil
}

// findTile binary-searches entries for tileID, accounting for run-length
// compressed ranges.
func findTile(entries []EntryV3, tileID uint64) (EntryV3, bool) {
	m, n := 0, len(entries)-1
	for m <= n {
		k := (n + m) >> 1
		cmp := int64(tileID) - int64(entries[k].TileID)
		switch {
		case cmp > 0:
			m = k + 1
		case cmp < 0:
			n = k - 1
		default:
			return entries[k], true
		}
	}
	if n >= 0 {
		if entries[n].RunLength == 0 {
			return entries[n], true
		}
		if tileID-entries[n].TileID < uint64(entries[n].RunLength) {
			return entries[n], true
		}
	}
	return EntryV3{}, false
}

// SerializeHeader packs h into the fixed 127-byte binary layout.
func SerializeHeader(h HeaderV3) []byte {
	b := make([]byte, HeaderV3LenBytes)
	copy(b[0:7], "PMTiles")
	b[7] = 3
	binary.LittleEndian.PutUint64(b[8:16], h.RootOffset)
	binary.LittleEndian.PutUint64(b[16:24], h.RootLength)
	binary.LittleEndian.PutUint64(b[24:32], h.MetadataOffset)
	binary.LittleEndian.PutUint64(b[32:40], h.MetadataLength)
	binary.LittleEndian.PutUint64(b[40:48], h.LeafDirectoryOffset)
	binary.LittleEndian.PutUint64(b[48:56], h.LeafDirectoryLength)
	binary.LittleEndian.PutUint64(b[56:64], h.TileDataOffset)
	binary.LittleEndian.PutUint64(b[64:72], h.TileDataLength)
	binary.LittleEndian.PutUint64(b[72:80], h.AddressedTilesCount)
	binary.LittleEndian.PutUint64(b[80:88], h.TileEntriesCount)
	binary.LittleEndian.PutUint64(b[88:96], h.TileContentsCount)
	if h.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	binary.LittleEndian.PutUint32(b[102:106], uint32(h.MinLonE7))
	binary.LittleEndian.PutUint32(b[106:110], uint32(h.MinLatE7))
	binary.LittleEndian.PutUint32(b[110:114], uint32(h.MaxLonE7))
	binary.LittleEndian.PutUint32(b[114:118], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	binary.LittleEndian.PutUint32(b[119:123], uint32(h.CenterLonE7))
	binary.LittleEndian.PutUint32(b[123:127], uint32(h.CenterLatE7))
	return b
}

// DeserializeHeader is the inverse of SerializeHeader.
func DeserializeHeader(d []byte) (HeaderV3, error) {
	var h HeaderV3
	if len(d) < HeaderV3LenBytes {
		return h, fmt.Errorf("pmtiles: header too short (%d bytes)", len(d))
	}
	if string(d[0:7]) != "PMTiles" {
		return h, fmt.Errorf("pmtiles: missing magic number, not a PMTiles archive")
	}
	specVersion := d[7]
	if specVersion > 3 {
		return h, fmt.Errorf("pmtiles: archive is spec version %d, this module supports version 3", specVersion)
	}

	h.SpecVersion = specVersion
	h.RootOffset = binary.LittleEndian.Uint64(d[8:16])
	h.RootLength = binary.LittleEndian.Uint64(d[16:24])
	h.MetadataOffset = binary.LittleEndian.Uint64(d[24:32])
	h.MetadataLength = binary.LittleEndian.Uint64(d[32:40])
	h.LeafDirectoryOffset = binary.LittleEndian.Uint64(d[40:48])
	h.LeafDirectoryLength = binary.LittleEndian.Uint64(d[48:56])
	h.TileDataOffset = binary.LittleEndian.Uint64(d[56:64])
	h.TileDataLength = binary.LittleEndian.Uint64(d[64:72])
	h.AddressedTilesCount = binary.LittleEndian.Uint64(d[72:80])
	h.TileEntriesCount = binary.LittleEndian.Uint64(d[80:88])
	h.TileContentsCount = binary.LittleEndian.Uint64(d[88:96])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(binary.LittleEndian.Uint32(d[102:106]))
	h.MinLatE7 = int32(binary.LittleEndian.Uint32(d[106:110]))
	h.MaxLonE7 = int32(binary.LittleEndian.Uint32(d[110:114]))
	h.MaxLatE7 = int32(binary.LittleEndian.Uint32(d[114:118]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(binary.LittleEndian.Uint32(d[119:123]))
	h.CenterLatE7 = int32(binary.LittleEndian.Uint32(d[123:127]))
	return h, nil
}

// buildRootsLeaves splits entries into a two-level directory: a leaf
// directory per leafSize-entry chunk, and a root directory of pointers
// to each leaf.
func buildRootsLeaves(entries []EntryV3, leafSize int, compression Compression) ([]byte, []byte, int) {
	var rootEntries []EntryV3
	var leavesBytes []byte
	numLeaves := 0

	for idx := 0; idx < len(entries); idx += leafSize {
		numLeaves++
		end := idx + leafSize
		if end > len(entries) {
			end = len(entries)
		}
		serialized := SerializeEntries(entries[idx:end], compression)
		rootEntries = append(rootEntries, EntryV3{
			TileID: entries[idx].TileID,
			Offset: uint64(len(leavesBytes)),
			Length: uint32(len(serialized)),
		})
		leavesBytes = append(leavesBytes, serialized...)
	}

	rootBytes := SerializeEntries(rootEntries, compression)
	return rootBytes, leavesBytes, numLeaves
}

// optimizeDirectories picks the smallest directory layout whose root fits
// within targetRootLen: flat if it already fits, otherwise a two-level
// root+leaves split with the leaf size grown until the root does fit.
func optimizeDirectories(entries []EntryV3, targetRootLen int, compression Compression) ([]byte, []byte, int) {
	if len(entries) < 16384 {
		flat := SerializeEntries(entries, compression)
		if len(flat) <= targetRootLen {
			return flat, nil, 0
		}
	}

	leafSize := float32(len(entries)) / 3500
	if leafSize < 4096 {
		leafSize = 4096
	}
	for {
		rootBytes, leavesBytes, numLeaves := buildRootsLeaves(entries, int(leafSize), compression)
		if len(rootBytes) <= targetRootLen {
			return rootBytes, leavesBytes, numLeaves
		}
		leafSize *= 1.2
	}
}

// IterateEntries walks every addressed tile entry in header's directory
// tree, fetching leaf directories on demand via fetch.
func IterateEntries(header HeaderV3, fetch func(offset, length uint64) ([]byte, error), operation func(EntryV3)) error {
	var walk func(offset, length uint64) error
	walk = func(offset, length uint64) error {
		data, err := fetch(offset, length)
		if err != nil {
			return err
		}
		entries, err := DeserializeEntries(bytes.NewBuffer(data), header.InternalCompression)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.RunLength > 0 {
				operation(e)
			} else if err := walk(header.LeafDirectoryOffset+e.Offset, uint64(e.Length)); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(header.RootOffset, header.RootLength)
}
