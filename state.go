package proseql

import "sync/atomic"

// cell holds a collection's authoritative id->entity map as an atomically
// swapped, immutable snapshot (C5), plus the insertion order those ids were
// first seen in — the source order query.go's source() reads, kept when a
// query supplies no sort keys (§4.8 step 1). Reads never block: snapshot,
// get and insertionOrder load a pointer with no lock. Writes are serialized
// by the owning Collection's commit lock (see collection.go's commit
// method) — cell itself only guarantees that whatever map and order are
// installed are published atomically and in full, never partially.
type cell struct {
	v     atomic.Pointer[map[string]M]
	order atomic.Pointer[[]string]
}

func newCell() *cell {
	c := &cell{}
	empty := map[string]M{}
	c.v.Store(&empty)
	emptyOrder := []string{}
	c.order.Store(&emptyOrder)
	return c
}

// snapshot returns the current id->entity map. The returned map must be
// treated as read-only by callers; cloneEntityMap produces a writable copy.
func (c *cell) snapshot() map[string]M {
	return *c.v.Load()
}

// get returns a single entity by id from the current snapshot.
func (c *cell) get(id string) (M, bool) {
	m := c.snapshot()
	e, ok := m[id]
	return e, ok
}

// insertionOrder returns every id currently present in the snapshot, in the
// order each was first inserted (ids removed since are dropped; ids never
// reordered by updates).
func (c *cell) insertionOrder() []string {
	order := *c.order.Load()
	snap := c.snapshot()
	out := make([]string, 0, len(order))
	for _, id := range order {
		if _, ok := snap[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// store atomically installs next as the current snapshot. Ids already
// tracked keep their existing position; ids in next that are new to the
// cell are appended to the order in the order insertedIDs lists them. Used
// by collection.go's commit, which already knows exactly which ids were
// newly put in this mutation.
func (c *cell) store(next map[string]M, insertedIDs []string) {
	prevOrder := *c.order.Load()
	nextOrder := make([]string, 0, len(next))
	seen := make(map[string]bool, len(prevOrder))
	for _, id := range prevOrder {
		if _, ok := next[id]; ok {
			nextOrder = append(nextOrder, id)
			seen[id] = true
		}
	}
	for _, id := range insertedIDs {
		if !seen[id] {
			if _, ok := next[id]; ok {
				nextOrder = append(nextOrder, id)
				seen[id] = true
			}
		}
	}
	c.v.Store(&next)
	c.order.Store(&nextOrder)
}

// replace wholesale-replaces both the snapshot and its order, used when
// loading a collection from disk (persistence.go): there is no prior
// in-process order to preserve, so order is whatever the loader supplies.
func (c *cell) replace(next map[string]M, order []string) {
	o := append([]string{}, order...)
	c.v.Store(&next)
	c.order.Store(&o)
}
