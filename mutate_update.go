package proseql

// Update applies updates (a mix of direct values and update operators, see
// operators.go) to the entity identified by id (§4.4 update).
func (c *Collection) Update(id string, updates M) (M, error) {
	if err := checkImmutableFields(c.cfg.Name, c.cfg.Schema, updates); err != nil {
		return nil, err
	}

	res, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		current, ok := snap[id]
		if !ok {
			return nil, &NotFoundError{Collection: c.cfg.Name, ID: id}
		}

		next, changed, err := applyUpdate(current, updates)
		if err != nil {
			return nil, err
		}
		next[FieldUpdatedAt] = nowISO(c.clock)

		decoded, err := c.cfg.Schema.Decode(c.cfg.Name, next)
		if err != nil {
			return nil, err
		}

		if uniqueFieldsChanged(c.cfg.Unique, changed) {
			if err := checkUniqueAgainst(c.cfg.Name, c.cfg.Unique, snap, id, decoded); err != nil {
				return nil, err
			}
		}
		if fkFieldsChanged(c.cfg.Relationships, changed) {
			if err := checkForeignKeys(c.cfg.Name, c.cfg.Relationships, decoded, c.db); err != nil {
				return nil, err
			}
		}

		return &commitResult{
			puts:   []M{decoded},
			events: []ChangeEvent{{Collection: c.cfg.Name, Op: ChangeUpdate, ID: id, Before: current, After: decoded}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.puts[0], nil
}

// UpdateManyOptions bounds how many matches updateMany touches.
type UpdateManyOptions struct {
	Limit int // 0: no limit
}

// UpdateMany applies updates to every entity snap satisfies predicate for,
// committed atomically as one replace (§4.4 updateMany): all matches
// succeed together, or none are applied.
func (c *Collection) UpdateMany(predicate func(M) bool, updates M, opts UpdateManyOptions) ([]M, error) {
	if err := checkImmutableFields(c.cfg.Name, c.cfg.Schema, updates); err != nil {
		return nil, err
	}

	res, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		var matchIDs []string
		for id, e := range snap {
			if predicate(e) {
				matchIDs = append(matchIDs, id)
				if opts.Limit > 0 && len(matchIDs) >= opts.Limit {
					break
				}
			}
		}

		puts := make([]M, 0, len(matchIDs))
		var events []ChangeEvent
		combined := cloneEntityMap(snap)

		for _, id := range matchIDs {
			current := snap[id]
			next, changed, err := applyUpdate(current, updates)
			if err != nil {
				return nil, err
			}
			next[FieldUpdatedAt] = nowISO(c.clock)

			decoded, err := c.cfg.Schema.Decode(c.cfg.Name, next)
			if err != nil {
				return nil, err
			}
			if uniqueFieldsChanged(c.cfg.Unique, changed) {
				if err := checkUniqueAgainst(c.cfg.Name, c.cfg.Unique, combined, id, decoded); err != nil {
					return nil, err
				}
			}
			if fkFieldsChanged(c.cfg.Relationships, changed) {
				if err := checkForeignKeys(c.cfg.Name, c.cfg.Relationships, decoded, c.db); err != nil {
					return nil, err
				}
			}

			combined[id] = decoded
			puts = append(puts, decoded)
			events = append(events, ChangeEvent{Collection: c.cfg.Name, Op: ChangeUpdate, ID: id, Before: current, After: decoded})
		}

		return &commitResult{puts: puts, events: events}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.puts, nil
}
