package render

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/planetiler/planetiler-go/sortkey"
)

// EncodeFeature serializes f's non-sort-key fields into the payload blob
// the external sorter spills and merges; f.SortKey travels separately as
// the sorter's Record.Key (SPEC_FULL.md §4.3).
func EncodeFeature(f Feature) []byte {
	var buf bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)

	buf.WriteByte(byte(f.GeomType))

	flags := byte(0)
	if f.HasID {
		flags |= 1
	}
	if f.ContainsOnlyFills {
		flags |= 2
	}
	buf.WriteByte(flags)

	n := binary.PutUvarint(tmp, f.ID)
	buf.Write(tmp[:n])

	n = binary.PutUvarint(tmp, uint64(len(f.Geometry)))
	buf.Write(tmp[:n])
	buf.Write(f.Geometry)

	n = binary.PutUvarint(tmp, uint64(len(f.Attrs)))
	buf.Write(tmp[:n])
	buf.Write(f.Attrs)

	return buf.Bytes()
}

// DecodeFeature is the inverse of EncodeFeature; sortKey is reattached
// from the sorter's Record.Key since it never entered the payload.
func DecodeFeature(sortKeyBits uint64, payload []byte) (Feature, error) {
	r := bytes.NewReader(payload)

	geomTypeByte, err := r.ReadByte()
	if err != nil {
		return Feature{}, fmt.Errorf("render: decode feature geom type: %w", err)
	}
	flags, err := r.ReadByte()
	if err != nil {
		return Feature{}, fmt.Errorf("render: decode feature flags: %w", err)
	}
	id, err := binary.ReadUvarint(r)
	if err != nil {
		return Feature{}, fmt.Errorf("render: decode feature id: %w", err)
	}

	geomLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Feature{}, fmt.Errorf("render: decode feature geometry length: %w", err)
	}
	geometry := make([]byte, geomLen)
	if _, err := r.Read(geometry); err != nil {
		return Feature{}, fmt.Errorf("render: read feature geometry: %w", err)
	}

	attrsLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Feature{}, fmt.Errorf("render: decode feature attrs length: %w", err)
	}
	attrs := make([]byte, attrsLen)
	if _, err := r.Read(attrs); err != nil {
		return Feature{}, fmt.Errorf("render: read feature attrs: %w", err)
	}

	return Feature{
		SortKey:           sortkey.Key(sortKeyBits),
		GeomType:          GeometryType(geomTypeByte),
		Geometry:          geometry,
		Attrs:             attrs,
		ID:                id,
		HasID:             flags&1 != 0,
		ContainsOnlyFills: flags&2 != 0,
	}, nil
}
