// Package wire implements the on-disk log's binary codec: the 24-byte
// header, the four per-map bucket-record sections, and the recursively
// nested checkpoint-tree encoding, bit-exact per spec.md §4.5. Framing
// style (fixed-width header fields via encoding/binary, two-phase
// write-then-rewrite for crash safety) follows the teacher's
// client.go frame reader/writer.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/PieterBenjamin/Checkpoint/internal/cptree"
	"github.com/PieterBenjamin/Checkpoint/internal/hashmap"
	"github.com/PieterBenjamin/Checkpoint/internal/list"
	"github.com/PieterBenjamin/Checkpoint/internal/store"
)

// Magic is the header value that marks a successfully flushed log file.
// The HeaderSize-byte header is zeroed during the write's first phase as a
// deliberate invalid-header sentinel (magic = 0): a crash between the two
// phases leaves a file that Load rejects with ErrCorrupt on the next run,
// so it is never parsed as a valid log.
const (
	Magic      uint32 = 0x0CAFE00D
	HeaderSize        = 24
)

// ErrCorrupt is returned by Load when the file exists but its header
// magic does not match Magic. spec.md §6 leaves the choice between
// treating this as "no prior state" and aborting up to the
// implementation; this package aborts (the strict policy — see
// DESIGN.md).
var ErrCorrupt = errors.New("checkpoint: log file is corrupt (bad magic)")

var byteOrder = binary.LittleEndian

// Write flushes l to path using the two-phase protocol: a zeroed header,
// then the four map sections, then the header rewritten with a valid
// magic and the total byte count as checksum.
func Write(path string, l *store.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: create log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return fmt.Errorf("checkpoint: write header sentinel: %w", err)
	}

	sec1 := buildStringSection(l.M1, HeaderSize)
	sec2 := buildStringSection(l.M2, HeaderSize+len(sec1))
	sec3 := buildStringSection(l.M3, HeaderSize+len(sec1)+len(sec2))
	sec4 := buildTreeSection(l.M4, HeaderSize+len(sec1)+len(sec2)+len(sec3))

	for _, sec := range [][]byte{sec1, sec2, sec3, sec4} {
		if _, err := f.Write(sec); err != nil {
			return fmt.Errorf("checkpoint: write log section: %w", err)
		}
	}

	total := HeaderSize + len(sec1) + len(sec2) + len(sec3) + len(sec4)
	var hdr [HeaderSize]byte
	byteOrder.PutUint32(hdr[0:4], Magic)
	byteOrder.PutUint32(hdr[4:8], uint32(total))
	byteOrder.PutUint32(hdr[8:12], uint32(len(sec1)))
	byteOrder.PutUint32(hdr[12:16], uint32(len(sec2)))
	byteOrder.PutUint32(hdr[16:20], uint32(len(sec3)))
	byteOrder.PutUint32(hdr[20:24], uint32(len(sec4)))
	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("checkpoint: rewrite header: %w", err)
	}
	return f.Sync()
}

// Load reads path into a fresh *store.Log using files for snapshot I/O
// and logger for diagnostics. A missing file is not an error: it
// produces an empty log, per spec.md §4.5's "fresh repository" case.
func Load(path, workDir string, files store.FileOps, logger *slog.Logger) (*store.Log, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store.New(workDir, files, logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read log file: %w", err)
	}
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: file shorter than header", ErrCorrupt)
	}

	magic := byteOrder.Uint32(buf[0:4])
	if magic != Magic {
		return nil, ErrCorrupt
	}
	sizeM1 := int(byteOrder.Uint32(buf[8:12]))
	sizeM2 := int(byteOrder.Uint32(buf[12:16]))
	sizeM3 := int(byteOrder.Uint32(buf[16:20]))

	startM1 := HeaderSize
	startM2 := startM1 + sizeM1
	startM3 := startM2 + sizeM2
	startM4 := startM3 + sizeM3

	m1, err := decodeStringSection(buf, startM1)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode M1: %w", err)
	}
	m2, err := decodeStringSection(buf, startM2)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode M2: %w", err)
	}
	m3, err := decodeStringSection(buf, startM3)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode M3: %w", err)
	}
	m4, err := decodeTreeSection(buf, startM4)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: decode M4: %w", err)
	}

	l := store.New(workDir, files, logger)
	for _, e := range m1 {
		l.M1.Insert(e.key, e.val)
	}
	for _, e := range m2 {
		l.M2.Insert(e.key, e.val)
	}
	for _, e := range m3 {
		l.M3.Insert(e.key, e.val)
	}
	for _, e := range m4 {
		l.M4.Insert(e.key, e.val)
	}
	return l, nil
}

type stringEntry struct {
	key uint64
	val string
}

type treeEntry struct {
	key uint64
	val *cptree.Node
}

// buildStringSection encodes a string-valued map (M1, M2, M3) into a
// section: [num_buckets u32][BucketRec×n][concatenated buckets]. One
// bucket record is written per live entry (the table's internal bucket
// array width is an implementation detail that does not survive the
// wire format).
func buildStringSection(m *hashmap.Map[string], sectionStart int) []byte {
	var keys []uint64
	var blobs [][]byte
	m.Iterate(func(k uint64, v string) bool {
		keys = append(keys, k)
		blobs = append(blobs, encodeStringBucket(k, v))
		return true
	})

	numBuckets := len(blobs)
	recArraySize := 8 * numBuckets
	bucketsStart := sectionStart + 4 + recArraySize

	out := make([]byte, 0, 4+recArraySize+sumLens(blobs))
	out = appendU32(out, uint32(numBuckets))

	pos := bucketsStart
	for _, b := range blobs {
		out = appendU32(out, uint32(len(b)))
		out = appendU32(out, uint32(pos))
		pos += len(b)
	}
	for _, b := range blobs {
		out = append(out, b...)
	}
	return out
}

// encodeStringBucket writes [key u64][len u32][bytes], no terminator.
func encodeStringBucket(key uint64, val string) []byte {
	out := make([]byte, 0, 12+len(val))
	out = appendU64(out, key)
	out = appendU32(out, uint32(len(val)))
	out = append(out, val...)
	return out
}

func decodeStringSection(buf []byte, sectionStart int) ([]stringEntry, error) {
	if sectionStart+4 > len(buf) {
		return nil, fmt.Errorf("section header out of range at %d", sectionStart)
	}
	numBuckets := int(byteOrder.Uint32(buf[sectionStart : sectionStart+4]))
	recArrayStart := sectionStart + 4
	entries := make([]stringEntry, 0, numBuckets)
	for i := 0; i < numBuckets; i++ {
		recOff := recArrayStart + i*8
		if recOff+8 > len(buf) {
			return nil, fmt.Errorf("bucket record %d out of range", i)
		}
		bucketSize := int(byteOrder.Uint32(buf[recOff : recOff+4]))
		bucketPos := int(byteOrder.Uint32(buf[recOff+4 : recOff+8]))
		if bucketPos < 0 || bucketPos+bucketSize > len(buf) {
			return nil, fmt.Errorf("bucket %d at %d/%d out of range", i, bucketPos, bucketSize)
		}
		blob := buf[bucketPos : bucketPos+bucketSize]
		if len(blob) < 12 {
			return nil, fmt.Errorf("bucket %d too short for header", i)
		}
		key := byteOrder.Uint64(blob[0:8])
		strLen := int(byteOrder.Uint32(blob[8:12]))
		if 12+strLen > len(blob) {
			return nil, fmt.Errorf("bucket %d string length out of range", i)
		}
		val := string(blob[12 : 12+strLen])
		entries = append(entries, stringEntry{key: key, val: val})
	}
	return entries, nil
}

// buildTreeSection mirrors buildStringSection for M4: each bucket is
// [key u64] followed by the root FileTreeNode's recursive encoding.
func buildTreeSection(m *hashmap.Map[*cptree.Node], sectionStart int) []byte {
	var blobs [][]byte
	m.Iterate(func(k uint64, root *cptree.Node) bool {
		nodeBlob := encodeTreeNode(root)
		bucket := make([]byte, 0, 8+len(nodeBlob))
		bucket = appendU64(bucket, k)
		bucket = append(bucket, nodeBlob...)
		blobs = append(blobs, bucket)
		return true
	})

	numBuckets := len(blobs)
	recArraySize := 8 * numBuckets
	bucketsStart := sectionStart + 4 + recArraySize

	out := make([]byte, 0, 4+recArraySize+sumLens(blobs))
	out = appendU32(out, uint32(numBuckets))
	pos := bucketsStart
	for _, b := range blobs {
		out = appendU32(out, uint32(len(b)))
		out = appendU32(out, uint32(pos))
		pos += len(b)
	}
	for _, b := range blobs {
		out = append(out, b...)
	}
	return out
}

// encodeTreeNode recursively encodes a FileTreeNode:
// [name_length u32][num_children u32][name bytes + NUL]
// [children_offsets u32×n, relative to the start of this array]
// [children FileTreeNodes, in the same order as the offsets].
func encodeTreeNode(n *cptree.Node) []byte {
	nameBytes := append([]byte(n.Name), 0)

	var childBlobs [][]byte
	for c, ok := n.Children.CursorFrom(list.Head); ok; ok = c.Advance() {
		childBlobs = append(childBlobs, encodeTreeNode(c.Value()))
	}
	numChildren := len(childBlobs)

	out := make([]byte, 0, 8+len(nameBytes)+4*numChildren+sumLens(childBlobs))
	out = appendU32(out, uint32(len(nameBytes)))
	out = appendU32(out, uint32(numChildren))
	out = append(out, nameBytes...)

	if numChildren > 0 {
		offsetsSize := 4 * numChildren
		pos := offsetsSize
		for _, cb := range childBlobs {
			out = appendU32(out, uint32(pos))
			pos += len(cb)
		}
		for _, cb := range childBlobs {
			out = append(out, cb...)
		}
	}
	return out
}

// decodeTreeNode is the inverse of encodeTreeNode. data starts exactly
// at the node's FileTreeHeader. Children are attached via InsertChild in
// reverse encoded order, since InsertChild prepends: this restores the
// exact child order (and the parent back-link) the encoder saw.
func decodeTreeNode(data []byte) (*cptree.Node, error) {
	if len(data) < 8 {
		return nil, errors.New("tree node header out of range")
	}
	nameLen := int(byteOrder.Uint32(data[0:4]))
	numChildren := int(byteOrder.Uint32(data[4:8]))
	nameStart := 8
	if nameStart+nameLen > len(data) || nameLen == 0 {
		return nil, errors.New("tree node name out of range")
	}
	name := string(data[nameStart : nameStart+nameLen-1]) // strip trailing NUL
	node := cptree.NewNode(name, nil)

	if numChildren == 0 {
		return node, nil
	}

	offsetsStart := nameStart + nameLen
	offsetsSize := 4 * numChildren
	if offsetsStart+offsetsSize > len(data) {
		return nil, errors.New("tree node child offsets out of range")
	}
	children := make([]*cptree.Node, numChildren)
	for i := 0; i < numChildren; i++ {
		offVal := int(byteOrder.Uint32(data[offsetsStart+i*4 : offsetsStart+i*4+4]))
		childStart := offsetsStart + offVal
		if childStart < 0 || childStart > len(data) {
			return nil, fmt.Errorf("tree node child %d offset out of range", i)
		}
		child, err := decodeTreeNode(data[childStart:])
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	for i := numChildren - 1; i >= 0; i-- {
		node.InsertChild(children[i])
	}
	return node, nil
}

func decodeTreeSection(buf []byte, sectionStart int) ([]treeEntry, error) {
	if sectionStart+4 > len(buf) {
		return nil, fmt.Errorf("section header out of range at %d", sectionStart)
	}
	numBuckets := int(byteOrder.Uint32(buf[sectionStart : sectionStart+4]))
	recArrayStart := sectionStart + 4
	entries := make([]treeEntry, 0, numBuckets)
	for i := 0; i < numBuckets; i++ {
		recOff := recArrayStart + i*8
		if recOff+8 > len(buf) {
			return nil, fmt.Errorf("bucket record %d out of range", i)
		}
		bucketSize := int(byteOrder.Uint32(buf[recOff : recOff+4]))
		bucketPos := int(byteOrder.Uint32(buf[recOff+4 : recOff+8]))
		if bucketPos < 0 || bucketPos+bucketSize > len(buf) {
			return nil, fmt.Errorf("bucket %d at %d/%d out of range", i, bucketPos, bucketSize)
		}
		blob := buf[bucketPos : bucketPos+bucketSize]
		if len(blob) < 8 {
			return nil, fmt.Errorf("bucket %d too short for key", i)
		}
		key := byteOrder.Uint64(blob[0:8])
		root, err := decodeTreeNode(blob[8:])
		if err != nil {
			return nil, fmt.Errorf("bucket %d: %w", i, err)
		}
		entries = append(entries, treeEntry{key: key, val: root})
	}
	return entries, nil
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	byteOrder.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	byteOrder.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func sumLens(bs [][]byte) int {
	n := 0
	for _, b := range bs {
		n += len(b)
	}
	return n
}
