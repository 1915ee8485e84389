package proseql

import "sort"

// SortKey is one (field, direction) pair in a multi-key sort (§4.8 step 3).
type SortKey struct {
	Field string
	Desc  bool
}

// sortEntities stably sorts entities by keys, tie-breaking by id ascending
// as the final key when keys is non-empty. With no sort keys at all (§4.8
// step 1), the sort is a no-op: entities must already be in the query
// source's insertion order, and the stable sort leaves ties — which is
// every pair, since there are no keys to compare — in that original order.
func sortEntities(entities []M, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		for _, k := range keys {
			c, ok := compareValues(a[k.Field], b[k.Field])
			if !ok {
				continue
			}
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.ID() < b.ID()
	})
}

// paginateOffset applies offset then limit as stream-drop / stream-take
// (§4.8 step 4, offset/limit form). limit <= 0 means no limit.
func paginateOffset(entities []M, offset, limit int) []M {
	if offset > 0 {
		if offset >= len(entities) {
			return nil
		}
		entities = entities[offset:]
	}
	if limit > 0 && limit < len(entities) {
		entities = entities[:limit]
	}
	return entities
}

// PageInfo describes a cursor-paginated page (§4.8 step 4, cursor form).
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// paginateCursor returns the page of entities (already sorted by keyField
// then id) strictly after after (or before before), up to limit, peeking
// one extra element to compute PageInfo.
func paginateCursor(entities []M, keyField string, after, before *cursorValue, limit int) ([]M, PageInfo) {
	start := 0
	hasPrev := false
	if after != nil {
		for i, e := range entities {
			if cursorBeyond(e, keyField, *after) {
				start = i
				hasPrev = true
				goto found
			}
		}
		start = len(entities)
	found:
	}

	window := entities[start:]
	if before != nil {
		cut := len(window)
		for i, e := range window {
			if !cursorBefore(e, keyField, *before) {
				cut = i
				break
			}
		}
		window = window[:cut]
	}

	hasNext := false
	if limit > 0 && limit < len(window) {
		hasNext = true
		window = window[:limit]
	}

	info := PageInfo{HasPreviousPage: hasPrev, HasNextPage: hasNext}
	if len(window) > 0 {
		info.StartCursor = encodeCursor(window[0], keyField)
		info.EndCursor = encodeCursor(window[len(window)-1], keyField)
	}
	return window, info
}

func cursorBeyond(e M, keyField string, c cursorValue) bool {
	cmp, ok := compareValues(e[keyField], c.Key)
	if ok && cmp != 0 {
		return cmp > 0
	}
	return e.ID() > c.ID
}

func cursorBefore(e M, keyField string, c cursorValue) bool {
	cmp, ok := compareValues(e[keyField], c.Key)
	if ok && cmp != 0 {
		return cmp < 0
	}
	return e.ID() < c.ID
}
