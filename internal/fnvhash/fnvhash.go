// Package fnvhash computes the 64-bit FNV-1a keys used throughout the
// engine to identify source files and checkpoint names.
package fnvhash

import "hash/fnv"

// HashBytes hashes an arbitrary byte buffer into a 64-bit key, matching
// the source's HashFunc (FNV-1a, offset basis 0xcbf29ce484222325).
func HashBytes(buf []byte) uint64 {
	h := fnv.New64a()
	h.Write(buf)
	return h.Sum64()
}

// HashString is a convenience wrapper over HashBytes for string identities
// (source paths and checkpoint names).
func HashString(s string) uint64 {
	return HashBytes([]byte(s))
}
