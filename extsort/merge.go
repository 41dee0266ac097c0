package extsort

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const mergeFanout = 4

type chunkReader struct {
	file   *os.File
	reader *bufio.Reader
	header [12]byte
	offset int64 // file offset of the next record's header
}

func openChunkReader(path string) (*chunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extsort: open chunk %s: %w", path, err)
	}
	return &chunkReader{file: f, reader: bufio.NewReaderSize(f, chunkReaderBufferBytes)}, nil
}

// next reads the next record, returning io.EOF when the chunk is exhausted.
func (c *chunkReader) next() (Record, error) {
	if _, err := io.ReadFull(c.reader, c.header[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("extsort: corrupted chunk header at offset %d: %w", c.offset, err)
	}
	key := binary.BigEndian.Uint64(c.header[0:8])
	length := binary.BigEndian.Uint32(c.header[8:12])
	payload := make([]byte, length)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		return Record{}, fmt.Errorf("extsort: truncated chunk payload at offset %d (expected %d bytes): %w", c.offset+12, length, err)
	}
	c.offset += 12 + int64(length)
	return Record{Key: key, Payload: payload}, nil
}

func (c *chunkReader) close() error {
	return c.file.Close()
}

// heapEntry is one live chunk's current head record.
type heapEntry struct {
	key        uint64
	record     Record
	chunkIndex int
}

// quadHeap is a 4-ary min-heap over heapEntry, indexed by key. A 4-ary
// heap does fewer comparisons per level than a binary heap for the large
// fan-ins a tile merge produces (SPEC_FULL.md §4.3).
type quadHeap struct {
	entries []heapEntry
}

func (h *quadHeap) Len() int { return len(h.entries) }

// less orders heapEntry values by key first and, for equal keys, by
// chunkIndex: chunks are spilled in the order their records were
// appended (Append is single-threaded and a chunk only closes once full),
// so the lowest chunkIndex among equal keys always holds the
// earliest-inserted record. Breaking ties this way keeps the merged
// stream stable, matching the stable in-chunk sort in spillChunk.
func less(a, b heapEntry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.chunkIndex < b.chunkIndex
}

func (h *quadHeap) push(e heapEntry) {
	h.entries = append(h.entries, e)
	h.siftUp(len(h.entries) - 1)
}

func (h *quadHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / mergeFanout
		if !less(h.entries[i], h.entries[parent]) {
			return
		}
		h.entries[i], h.entries[parent] = h.entries[parent], h.entries[i]
		i = parent
	}
}

func (h *quadHeap) siftDown(i int) {
	n := len(h.entries)
	for {
		first := mergeFanout*i + 1
		if first >= n {
			return
		}
		smallest := first
		for c := first + 1; c < n && c < first+mergeFanout; c++ {
			if less(h.entries[c], h.entries[smallest]) {
				smallest = c
			}
		}
		if !less(h.entries[smallest], h.entries[i]) {
			return
		}
		h.entries[i], h.entries[smallest] = h.entries[smallest], h.entries[i]
		i = smallest
	}
}

// pop removes and returns the minimum entry.
func (h *quadHeap) pop() heapEntry {
	n := len(h.entries)
	min := h.entries[0]
	h.entries[0] = h.entries[n-1]
	h.entries = h.entries[:n-1]
	if len(h.entries) > 0 {
		h.siftDown(0)
	}
	return min
}

// MergeIter streams Records in non-decreasing key order across all
// spilled chunks. Single-consumer: calling Next concurrently is not
// supported.
type MergeIter struct {
	readers []*chunkReader
	heap    quadHeap
	err     error
}

// Iter returns a MergeIter over every chunk spilled so far. Finish must
// have been called first.
func (s *Sorter) Iter() (*MergeIter, error) {
	s.mu.Lock()
	if !s.finished {
		s.mu.Unlock()
		return nil, fmt.Errorf("extsort: Iter called before Finish")
	}
	paths := append([]string(nil), s.chunkPaths...)
	s.mu.Unlock()

	it := &MergeIter{}
	for idx, p := range paths {
		cr, err := openChunkReader(p)
		if err != nil {
			it.Close()
			return nil, err
		}
		it.readers = append(it.readers, cr)

		rec, err := cr.next()
		if err == io.EOF {
			continue
		}
		if err != nil {
			it.Close()
			return nil, err
		}
		it.heap.push(heapEntry{key: rec.Key, record: rec, chunkIndex: idx})
	}
	return it, nil
}

// Next advances the merge and returns the next record in sort order, or
// (_, false) when every chunk is exhausted. A non-nil Err() result after
// Next returns false indicates a read failure rather than natural end of
// stream.
func (it *MergeIter) Next() (Record, bool) {
	if it.heap.Len() == 0 {
		return Record{}, false
	}
	top := it.heap.pop()

	reader := it.readers[top.chunkIndex]
	next, err := reader.next()
	if err == nil {
		it.heap.push(heapEntry{key: next.Key, record: next, chunkIndex: top.chunkIndex})
	} else if err != io.EOF {
		it.err = err
	}

	return top.record, true
}

// Err reports the first read failure encountered during iteration, if any.
func (it *MergeIter) Err() error { return it.err }

// Close releases every chunk file handle held by the iterator.
func (it *MergeIter) Close() error {
	var firstErr error
	for _, r := range it.readers {
		if err := r.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
