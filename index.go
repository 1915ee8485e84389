package proseql

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// UniqueConstraint names one or more fields whose combined value must be
// unique across live entities in a collection. A single-field list is a
// plain unique field; a longer list is a compound constraint.
type UniqueConstraint struct {
	Name   string
	Fields []string
}

func (c UniqueConstraint) defaultName() string {
	if c.Name != "" {
		return c.Name
	}
	return strings.Join(c.Fields, "+")
}

// encodeTuple canonically encodes a constraint's field values so that the
// string "1" and the number 1 never collide (§4.2), using each value's
// dynamic type alongside its JSON encoding. Returns ok=false if any slot is
// nil or absent — per spec.md's resolved Open Question, both null and
// missing values are excluded from uniqueness entirely.
func encodeTuple(values []any) (key string, ok bool) {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			return "", false
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		parts[i] = fmt.Sprintf("%T\x1e%s", v, b)
	}
	return strings.Join(parts, "\x1f"), true
}

// uniqueIndex maintains one constraint's canonical-tuple -> holder-id map.
type uniqueIndex struct {
	mu         sync.RWMutex
	constraint UniqueConstraint
	byKey      map[string]string
}

func newUniqueIndex(c UniqueConstraint) *uniqueIndex {
	return &uniqueIndex{constraint: c, byKey: make(map[string]string)}
}

func (ix *uniqueIndex) tupleOf(e M) []any {
	vals := make([]any, len(ix.constraint.Fields))
	for i, f := range ix.constraint.Fields {
		vals[i] = e[f]
	}
	return vals
}

// probe returns the id currently holding e's tuple, if any.
func (ix *uniqueIndex) probe(e M) (holder string, found bool) {
	key, ok := encodeTuple(ix.tupleOf(e))
	if !ok {
		return "", false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, found := ix.byKey[key]
	return id, found
}

func (ix *uniqueIndex) observeInsert(e M) {
	key, ok := encodeTuple(ix.tupleOf(e))
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byKey[key] = e.ID()
}

func (ix *uniqueIndex) observeDelete(e M) {
	key, ok := encodeTuple(ix.tupleOf(e))
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.byKey, key)
}

func (ix *uniqueIndex) observeReplace(old, new M) {
	ix.observeDelete(old)
	ix.observeInsert(new)
}

// hashIndex is an optional, observation-only acceleration structure over a
// single field's equality lookups (C6's "optional per-collection hash
// indexes"). It never changes query results, only the source stage's cost.
type hashIndex struct {
	mu      sync.RWMutex
	field   string
	byValue map[string]map[string]struct{}
	// probeCache memoizes recent equality-probe results so repeated
	// identical queries against a large collection don't re-walk byValue's
	// bucket every time; it is purely a speed optimization and is
	// invalidated on every observeInsert/observeDelete/observeReplace that
	// touches its field.
	probeCache *lru.Cache[string, []string]
}

func newHashIndex(field string) *hashIndex {
	cache, _ := lru.New[string, []string](256)
	return &hashIndex{field: field, byValue: make(map[string]map[string]struct{}), probeCache: cache}
}

func (ix *hashIndex) encodedValue(e M) (string, bool) {
	return encodeTuple([]any{e[ix.field]})
}

func (ix *hashIndex) observeInsert(e M) {
	key, ok := ix.encodedValue(e)
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	set, ok := ix.byValue[key]
	if !ok {
		set = make(map[string]struct{})
		ix.byValue[key] = set
	}
	set[e.ID()] = struct{}{}
	ix.probeCache.Remove(key)
}

func (ix *hashIndex) observeDelete(e M) {
	key, ok := ix.encodedValue(e)
	if !ok {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if set, ok := ix.byValue[key]; ok {
		delete(set, e.ID())
		if len(set) == 0 {
			delete(ix.byValue, key)
		}
	}
	ix.probeCache.Remove(key)
}

func (ix *hashIndex) observeReplace(old, new M) {
	ix.observeDelete(old)
	ix.observeInsert(new)
}

// lookup returns the ids of every entity whose field currently equals
// value, using the probe cache when warm.
func (ix *hashIndex) lookup(value any) ([]string, bool) {
	key, ok := encodeTuple([]any{value})
	if !ok {
		return nil, false
	}
	if cached, ok := ix.probeCache.Get(key); ok {
		return cached, true
	}
	ix.mu.RLock()
	set, ok := ix.byValue[key]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	ix.mu.RUnlock()
	if !ok {
		return nil, false
	}
	ix.probeCache.Add(key, ids)
	return ids, true
}

// indexManager aggregates a collection's unique constraints and optional
// acceleration indexes. It is a read-path accelerator only: the mutation
// pipeline's authoritative uniqueness checks always scan the commit-time
// state cell snapshot directly (see validate.go), so a lagging index can
// never admit a constraint violation — it can only make lookups slower
// until it catches up, which observeInsert/observeDelete/observeReplace
// keep from happening since they run inside the same commit step.
type indexManager struct {
	uniques []*uniqueIndex
	hashes  map[string]*hashIndex
}

func newIndexManager(constraints []UniqueConstraint, hashFields []string) *indexManager {
	im := &indexManager{hashes: make(map[string]*hashIndex)}
	for _, c := range constraints {
		im.uniques = append(im.uniques, newUniqueIndex(c))
	}
	for _, f := range hashFields {
		im.hashes[f] = newHashIndex(f)
	}
	return im
}

func (im *indexManager) observeInsert(e M) {
	for _, ix := range im.uniques {
		ix.observeInsert(e)
	}
	for _, ix := range im.hashes {
		ix.observeInsert(e)
	}
}

func (im *indexManager) observeDelete(e M) {
	for _, ix := range im.uniques {
		ix.observeDelete(e)
	}
	for _, ix := range im.hashes {
		ix.observeDelete(e)
	}
}

func (im *indexManager) observeReplace(old, new M) {
	for _, ix := range im.uniques {
		ix.observeReplace(old, new)
	}
	for _, ix := range im.hashes {
		ix.observeReplace(old, new)
	}
}

// hashLookup exposes a field's accelerated equality lookup to the query
// pipeline's source stage.
func (im *indexManager) hashLookup(field string, value any) ([]string, bool) {
	ix, ok := im.hashes[field]
	if !ok {
		return nil, false
	}
	return ix.lookup(value)
}
