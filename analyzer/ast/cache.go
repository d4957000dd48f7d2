package ast

import (
	"maps"
	"sync"
)

// cachedFields is the expansion result for one type key.
type cachedFields struct {
	fields []FieldInfo
	doc    string
	height int // levels of named types the tree spans, including its root
}

// fieldCache memoizes expanded field trees for the duration of one run.
// Keys are full type strings including type arguments, so Page[int] and
// Page[string] never collide. Entries are immutable once written and hold
// only complete trees: nothing in them was cut by a cycle or the depth cap.
type fieldCache struct {
	mu    sync.RWMutex
	cache map[string]cachedFields
}

func newFieldCache() *fieldCache {
	return &fieldCache{
		cache: make(map[string]cachedFields, 256),
	}
}

func (fc *fieldCache) get(key string) (cachedFields, bool) {
	fc.mu.RLock()
	v, ok := fc.cache[key]
	fc.mu.RUnlock()
	return v, ok
}

// set stores the expansion of key and returns the stored entry. Concurrent
// expansions of the same type may race to set it; the first write wins.
func (fc *fieldCache) set(key string, v cachedFields) cachedFields {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if existing, exists := fc.cache[key]; exists {
		return existing
	}
	fc.cache[key] = v
	return v
}

func (fc *fieldCache) len() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.cache)
}

// seenSet records the type keys on the current expansion path.
type seenSet map[string]struct{}

func (s seenSet) has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s seenSet) mark(key string)   { s[key] = struct{}{} }
func (s seenSet) unmark(key string) { delete(s, key) }

// seenSetPool recycles seen sets across the many expansions of a run.
// A set returned by acquire belongs to the caller until release and must not
// be shared with another concurrently running expansion.
type seenSetPool struct {
	pool sync.Pool
}

func newSeenSetPool() *seenSetPool {
	return &seenSetPool{
		pool: sync.Pool{
			New: func() any {
				return make(seenSet, 16)
			},
		},
	}
}

// acquire returns an empty set.
func (p *seenSetPool) acquire() seenSet {
	s := p.pool.Get().(seenSet)
	clear(s)
	return s
}

// branch returns a pooled copy of src for an independent recursion branch.
func (p *seenSetPool) branch(src seenSet) seenSet {
	s := p.acquire()
	maps.Copy(s, src)
	return s
}

func (p *seenSetPool) release(s seenSet) {
	p.pool.Put(s)
}
