// Package hashmap implements a dynamic, open-hashed map from a 64-bit key
// (an fnvhash.HashBytes/HashString result) to an arbitrary value, with
// FIFO bucket-chain insertion order within each bucket. It is the sole
// container the engine's four indexes (M1..M4) are built from.
package hashmap

import "github.com/PieterBenjamin/Checkpoint/internal/list"

// loadFactor and growthFactor mirror the source's ResizeHashtable: grow
// once size >= loadFactor*bucketCount, to bucketCount*growthFactor buckets.
const (
	loadFactor   = 3
	growthFactor = 9
)

type entry[V any] struct {
	key uint64
	val V
}

// Map is a bucketed hash map keyed by uint64.
type Map[V any] struct {
	buckets []*list.List[entry[V]]
	size    int
}

// New returns a map with the given initial bucket count. bucketCount must
// be > 0.
func New[V any](bucketCount int) *Map[V] {
	if bucketCount <= 0 {
		panic("hashmap: bucketCount must be > 0")
	}
	m := &Map[V]{buckets: make([]*list.List[entry[V]], bucketCount)}
	for i := range m.buckets {
		m.buckets[i] = list.New[entry[V]]()
	}
	return m
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int {
	return m.size
}

func (m *Map[V]) bucketFor(key uint64) *list.List[entry[V]] {
	return m.buckets[key%uint64(len(m.buckets))]
}

// Insert inserts key/value, replacing any existing value for key. Reports
// whether an existing entry was replaced, and if so returns the prior
// value via old. Mirrors the source's InsertHashTable, which calls
// ResizeHashtable unconditionally before every insert: the load-factor
// check runs on every call here too, not just on a distinguished path.
func (m *Map[V]) Insert(key uint64, val V) (old V, replaced bool) {
	m.maybeGrow()
	chain := m.bucketFor(key)
	for c, ok := chain.CursorFrom(list.Head); ok; ok = c.Advance() {
		if c.Value().key == key {
			old = c.Value().val
			c.SetValue(entry[V]{key: key, val: val})
			return old, true
		}
		if !c.HasNext() {
			break
		}
	}
	chain.PushHead(entry[V]{key: key, val: val})
	m.size++
	return old, false
}

// Lookup returns a copy of the value stored for key, if present. The map
// retains ownership of any referenced memory.
func (m *Map[V]) Lookup(key uint64) (val V, found bool) {
	chain := m.bucketFor(key)
	for c, ok := chain.CursorFrom(list.Head); ok; ok = c.Advance() {
		if c.Value().key == key {
			return c.Value().val, true
		}
		if !c.HasNext() {
			break
		}
	}
	return val, false
}

// Remove removes and returns the value stored for key, transferring
// ownership to the caller.
func (m *Map[V]) Remove(key uint64) (val V, found bool) {
	chain := m.bucketFor(key)
	c, ok := chain.CursorFrom(list.Head)
	for ok {
		if c.Value().key == key {
			val = c.Value().val
			c.Delete()
			m.size--
			return val, true
		}
		ok = c.Advance()
	}
	return val, false
}

// Keys returns every key currently in the map, in bucket-ascending,
// chain order — the same order Iterate visits entries in.
func (m *Map[V]) Keys() []uint64 {
	keys := make([]uint64, 0, m.size)
	m.Iterate(func(k uint64, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Iterate visits every entry exactly once, bucket-index ascending and
// chain order within a bucket, until fn returns false.
func (m *Map[V]) Iterate(fn func(key uint64, val V) bool) {
	for _, chain := range m.buckets {
		c, ok := chain.CursorFrom(list.Head)
		for ok {
			e := c.Value()
			if !fn(e.key, e.val) {
				return
			}
			ok = c.Advance()
		}
	}
}

// Cursor walks every live entry in a Map, bucket-index ascending and
// chain order within a bucket — the same traversal order as Iterate —
// but as an explicit cursor so a caller can delete the current entry
// mid-walk. Mirrors the source's iter_begin/iter_valid/iter_current/
// iter_advance/iter_delete family.
type Cursor[V any] struct {
	m         *Map[V]
	bucketIdx int
	inner     *list.Cursor[entry[V]]
}

// Begin returns a cursor positioned at the map's first live entry
// (iter_begin). Call Valid before Current/Delete.
func (m *Map[V]) Begin() *Cursor[V] {
	c := &Cursor[V]{m: m, bucketIdx: 0}
	c.seekBucket()
	return c
}

func (c *Cursor[V]) seekBucket() {
	for c.bucketIdx < len(c.m.buckets) {
		if inner, ok := c.m.buckets[c.bucketIdx].CursorFrom(list.Head); ok {
			c.inner = inner
			return
		}
		c.bucketIdx++
	}
	c.inner = nil
}

// Valid reports whether Current/Delete may be called (iter_valid).
func (c *Cursor[V]) Valid() bool {
	return c.inner != nil
}

// Current returns the entry the cursor is positioned at (iter_current).
func (c *Cursor[V]) Current() (key uint64, val V) {
	e := c.inner.Value()
	return e.key, e.val
}

// Advance moves the cursor to the next live entry, returning Valid()'s
// new value (iter_advance).
func (c *Cursor[V]) Advance() bool {
	if c.inner == nil {
		return false
	}
	if c.inner.Advance() {
		return true
	}
	c.bucketIdx++
	c.seekBucket()
	return c.inner != nil
}

// Delete removes the entry the cursor is positioned at, advances the
// cursor past it, and returns the removed entry (iter_delete: "returns
// the current entry and advances").
func (c *Cursor[V]) Delete() (key uint64, val V) {
	e := c.inner.Value()
	key, val = e.key, e.val

	wasLastInChain := !c.inner.HasNext()
	c.inner.Delete()
	c.m.size--

	if wasLastInChain {
		c.bucketIdx++
		c.seekBucket()
	}
	return key, val
}

// maybeGrow resizes the map to bucketCount*growthFactor buckets once the
// load factor is exceeded, reinserting every live entry. Mirrors
// ResizeHashtable's "load factor > 3" / "num_buckets * 9" policy exactly.
func (m *Map[V]) maybeGrow() {
	if m.size < loadFactor*len(m.buckets) {
		return
	}
	grown := New[V](len(m.buckets) * growthFactor)
	m.Iterate(func(k uint64, v V) bool {
		grown.insertNoGrow(k, v)
		return true
	})
	m.buckets = grown.buckets
}

func (m *Map[V]) insertNoGrow(key uint64, val V) {
	chain := m.bucketFor(key)
	chain.PushHead(entry[V]{key: key, val: val})
	m.size++
}
