package proseql

// DeleteOptions configures delete/deleteMany (§4.4 delete/deleteMany).
type DeleteOptions struct {
	Soft  bool
	Limit int // deleteMany only; 0 means no limit
}

// deleteBase removes (or soft-deletes) a single entity with no cascade
// fan-out. The cascade engine (cascade.go) does not use it: after its own
// restrict/cascade/set_null pass it deletes through deleteManyBase.
func (c *Collection) deleteBase(id string, soft bool) (M, error) {
	if soft && !c.cfg.Schema.SoftDelete {
		return nil, &OperationError{Collection: c.cfg.Name, Reason: "soft delete requested on a schema without a deletedAt field"}
	}

	if soft {
		if current, ok := c.get(id); ok {
			if _, already := current.DeletedAt(); already {
				// Open Question 2: re-deleting an already soft-deleted
				// entity preserves both deletedAt and updatedAt.
				return current, nil
			}
		}
	}

	res, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		current, ok := snap[id]
		if !ok {
			return nil, &NotFoundError{Collection: c.cfg.Name, ID: id}
		}

		if soft {
			next := current.clone()
			next[FieldDeletedAt] = nowISO(c.clock)
			next[FieldUpdatedAt] = next[FieldDeletedAt]
			return &commitResult{
				puts:   []M{next},
				events: []ChangeEvent{{Collection: c.cfg.Name, Op: ChangeUpdate, ID: id, Before: current, After: next}},
			}, nil
		}

		return &commitResult{
			deletes: []string{id},
			events:  []ChangeEvent{{Collection: c.cfg.Name, Op: ChangeDelete, ID: id, Before: current}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if soft {
		return res.puts[0], nil
	}
	return res.events[0].Before, nil
}

// deleteManyBase applies deleteBase's semantics to every entity predicate
// matches, up to limit, as one atomic commit.
func (c *Collection) deleteManyBase(predicate func(M) bool, soft bool, limit int) ([]M, error) {
	if soft && !c.cfg.Schema.SoftDelete {
		return nil, &OperationError{Collection: c.cfg.Name, Reason: "soft delete requested on a schema without a deletedAt field"}
	}

	var result []M
	_, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		var matchIDs []string
		for id, e := range snap {
			if predicate(e) {
				matchIDs = append(matchIDs, id)
				if limit > 0 && len(matchIDs) >= limit {
					break
				}
			}
		}

		var puts []M
		var deletes []string
		var events []ChangeEvent

		for _, id := range matchIDs {
			current := snap[id]
			if soft {
				if _, already := current.DeletedAt(); already {
					// Open Question 2: already soft-deleted — no-op, no
					// event, entity unchanged.
					result = append(result, current)
					continue
				}
				next := current.clone()
				next[FieldDeletedAt] = nowISO(c.clock)
				next[FieldUpdatedAt] = next[FieldDeletedAt]
				puts = append(puts, next)
				events = append(events, ChangeEvent{Collection: c.cfg.Name, Op: ChangeUpdate, ID: id, Before: current, After: next})
				result = append(result, next)
			} else {
				deletes = append(deletes, id)
				events = append(events, ChangeEvent{Collection: c.cfg.Name, Op: ChangeDelete, ID: id, Before: current})
				result = append(result, current)
			}
		}

		return &commitResult{puts: puts, deletes: deletes, events: events}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes (or soft-deletes) the entity identified by id, subject to
// the cascade engine's referential-integrity guard (cascade.go).
func (c *Collection) Delete(id string, opts DeleteOptions) (M, error) {
	if _, ok := c.get(id); !ok {
		return nil, &NotFoundError{Collection: c.cfg.Name, ID: id}
	}
	out, err := c.db.deleteWithRelationships(c, []string{id}, opts)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// DeleteMany removes (or soft-deletes) every entity predicate matches, up
// to opts.Limit, subject to the cascade engine's guard.
func (c *Collection) DeleteMany(predicate func(M) bool, opts DeleteOptions) ([]M, error) {
	snap := c.snapshot()
	var ids []string
	for id, e := range snap {
		if predicate(e) {
			ids = append(ids, id)
			if opts.Limit > 0 && len(ids) >= opts.Limit {
				break
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return c.db.deleteWithRelationships(c, ids, opts)
}
