// Package render turns one source feature plus profile output into zero or
// more RenderedFeatures — compact, tile-local, sort-key-tagged spill
// records ready for the external sorter (SPEC_FULL.md §4.2).
package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/planetiler/planetiler-go/sortkey"
)

// GeometryType enumerates the geometry shapes a Feature may carry.
type GeometryType uint8

const (
	Point GeometryType = iota
	Line
	Polygon
	MultiPoint
	MultiLine
	MultiPolygon
)

// AttrValueType tags the wire type of an encoded attribute value.
type AttrValueType uint8

const (
	AttrString AttrValueType = iota
	AttrLong
	AttrDouble
	AttrBool
)

// Attr is one decoded (keyId, valueType, value) tuple.
type Attr struct {
	KeyID int
	Type  AttrValueType
	Str   string
	Long  int64
	Dbl   float64
	Bool  bool
}

// Feature is the on-disk spill record: a packed sort key plus an encoded,
// tile-local geometry and attribute sequence. It is the unit the external
// sorter moves and the tile encoder consumes.
type Feature struct {
	SortKey           sortkey.Key
	GeomType          GeometryType
	Geometry          []byte // packed zigzag-varint delta coordinate sequence
	Attrs             []byte // varint-length-prefixed (keyId, type, value) tuples
	ID                uint64
	HasID             bool
	ContainsOnlyFills bool // a polygon whose clipped ring is exactly the tile boundary
}

// TileID is a convenience accessor over the packed sort key.
func (f Feature) TileID() uint32 { return f.SortKey.TileID() }

// LayerID is a convenience accessor over the packed sort key.
func (f Feature) LayerID() uint8 { return f.SortKey.LayerID() }

// Coord is a tile-local integer coordinate in the 0..4096 grid (may exceed
// the range by the configured buffer).
type Coord struct {
	X, Y int32
}

// EncodeRing packs a closed ring (or open line) of tile-local coordinates
// as zigzag-varint deltas from the previous point, starting from (0,0).
func EncodeRing(points []Coord) []byte {
	var buf bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, uint64(len(points)))
	buf.Write(tmp[:n])

	var px, py int32
	for _, p := range points {
		dx, dy := int64(p.X-px), int64(p.Y-py)
		n = binary.PutVarint(tmp, dx)
		buf.Write(tmp[:n])
		n = binary.PutVarint(tmp, dy)
		buf.Write(tmp[:n])
		px, py = p.X, p.Y
	}
	return buf.Bytes()
}

// DecodeRing is the inverse of EncodeRing.
func DecodeRing(b []byte) ([]Coord, error) {
	r := bytes.NewReader(b)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("render: decode ring count: %w", err)
	}
	points := make([]Coord, 0, count)
	var px, py int32
	for i := uint64(0); i < count; i++ {
		dx, err := binary.ReadVarint(r)
		if err != nil {
			return nil, fmt.Errorf("render: decode ring dx: %w", err)
		}
		dy, err := binary.ReadVarint(r)
		if err != nil {
			return nil, fmt.Errorf("render: decode ring dy: %w", err)
		}
		px += int32(dx)
		py += int32(dy)
		points = append(points, Coord{X: px, Y: py})
	}
	return points, nil
}

// EncodeGeometry packs a geometry made of one or more rings/lines/points
// according to the feature's GeometryType. For single-part types exactly
// one ring is expected; for multi-part types a leading uvarint part-count
// precedes the concatenated per-part EncodeRing blobs, each itself
// length-prefixed.
func EncodeGeometry(t GeometryType, parts [][]Coord) []byte {
	switch t {
	case Point, Line, Polygon:
		if len(parts) != 1 {
			panic(fmt.Sprintf("render: geometry type %d requires exactly one part, got %d", t, len(parts)))
		}
		return EncodeRing(parts[0])
	default:
		var buf bytes.Buffer
		tmp := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(tmp, uint64(len(parts)))
		buf.Write(tmp[:n])
		for _, part := range parts {
			encoded := EncodeRing(part)
			n = binary.PutUvarint(tmp, uint64(len(encoded)))
			buf.Write(tmp[:n])
			buf.Write(encoded)
		}
		return buf.Bytes()
	}
}

// DecodeGeometry is the inverse of EncodeGeometry.
func DecodeGeometry(t GeometryType, b []byte) ([][]Coord, error) {
	switch t {
	case Point, Line, Polygon:
		ring, err := DecodeRing(b)
		if err != nil {
			return nil, err
		}
		return [][]Coord{ring}, nil
	default:
		r := bytes.NewReader(b)
		numParts, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("render: decode part count: %w", err)
		}
		parts := make([][]Coord, 0, numParts)
		for i := uint64(0); i < numParts; i++ {
			length, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("render: decode part length: %w", err)
			}
			chunk := make([]byte, length)
			if _, err := r.Read(chunk); err != nil {
				return nil, fmt.Errorf("render: read part: %w", err)
			}
			ring, err := DecodeRing(chunk)
			if err != nil {
				return nil, err
			}
			parts = append(parts, ring)
		}
		return parts, nil
	}
}

// EncodeAttrs packs an ordered attribute sequence, length-prefixed overall.
func EncodeAttrs(attrs []Attr) []byte {
	var body bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)
	for _, a := range attrs {
		n := binary.PutUvarint(tmp, uint64(a.KeyID))
		body.Write(tmp[:n])
		body.WriteByte(byte(a.Type))
		switch a.Type {
		case AttrString:
			n = binary.PutUvarint(tmp, uint64(len(a.Str)))
			body.Write(tmp[:n])
			body.WriteString(a.Str)
		case AttrLong:
			n = binary.PutVarint(tmp, a.Long)
			body.Write(tmp[:n])
		case AttrDouble:
			var bits [8]byte
			binary.LittleEndian.PutUint64(bits[:], math.Float64bits(a.Dbl))
			body.Write(bits[:])
		case AttrBool:
			if a.Bool {
				body.WriteByte(1)
			} else {
				body.WriteByte(0)
			}
		}
	}

	var out bytes.Buffer
	n := binary.PutUvarint(tmp, uint64(len(attrs)))
	out.Write(tmp[:n])
	out.Write(body.Bytes())
	return out.Bytes()
}

// DecodeAttrs is the inverse of EncodeAttrs.
func DecodeAttrs(b []byte) ([]Attr, error) {
	r := bytes.NewReader(b)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("render: decode attr count: %w", err)
	}
	attrs := make([]Attr, 0, count)
	for i := uint64(0); i < count; i++ {
		keyID, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("render: decode attr key: %w", err)
		}
		typeByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("render: decode attr type: %w", err)
		}
		a := Attr{KeyID: int(keyID), Type: AttrValueType(typeByte)}
		switch a.Type {
		case AttrString:
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("render: decode attr string length: %w", err)
			}
			buf := make([]byte, n)
			if _, err := r.Read(buf); err != nil {
				return nil, fmt.Errorf("render: read attr string: %w", err)
			}
			a.Str = string(buf)
		case AttrLong:
			v, err := binary.ReadVarint(r)
			if err != nil {
				return nil, fmt.Errorf("render: decode attr long: %w", err)
			}
			a.Long = v
		case AttrDouble:
			var bits [8]byte
			if _, err := r.Read(bits[:]); err != nil {
				return nil, fmt.Errorf("render: read attr double: %w", err)
			}
			a.Dbl = math.Float64frombits(binary.LittleEndian.Uint64(bits[:]))
		case AttrBool:
			v, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("render: decode attr bool: %w", err)
			}
			a.Bool = v != 0
		default:
			return nil, fmt.Errorf("render: unknown attr value type %d", a.Type)
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}
