package tilegroup

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes a layer's encoded contents well enough to cheaply
// tell whether two tiles' same-named layer are byte-identical before
// paying for a full MVT re-encode. The tile-id bits of each sort key are
// left out, since they differ between any two tiles. encode.Pool does not
// call it; its per-worker memo compares content hashes of encoded tiles.
func Fingerprint(layer Layer) uint64 {
	h := xxhash.New()
	var tmp [8]byte
	for _, f := range layer.Features {
		binary.LittleEndian.PutUint64(tmp[:], uint64(f.SortKey)&(1<<32-1))
		h.Write(tmp[:])
		h.Write([]byte{byte(f.GeomType)})
		h.Write(f.Geometry)
		h.Write(f.Attrs)
	}
	return h.Sum64()
}

// HasSameContents reports whether a and b fingerprint identically. A
// matching fingerprint does not prove byte-identical content (hash
// collisions are possible) but false positives are rare enough, and the
// cost of a wasted encode on a false positive is cheap enough, that
// callers treat this as an optimization, not a correctness guarantee.
func HasSameContents(a, b Layer) bool {
	return Fingerprint(a) == Fingerprint(b)
}
