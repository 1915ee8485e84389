package proseql

// stampNew fills a create candidate's id/createdAt/updatedAt when absent
// (§4.4 create: "id is optional..., createdAt/updatedAt optional").
func (c *Collection) stampNew(candidate M) M {
	out := candidate.clone()
	if id, _ := out[FieldID].(string); id == "" {
		out[FieldID] = newID()
	}
	now := nowISO(c.clock)
	if v, present := out[FieldCreatedAt]; !present || v == nil {
		out[FieldCreatedAt] = now
	}
	if v, present := out[FieldUpdatedAt]; !present || v == nil {
		out[FieldUpdatedAt] = now
	}
	return out
}

// Create inserts candidate as a new entity. Relationship directive fields
// ($connect/$create/$connectOrCreate) are handled by cascade.go's
// createWithRelationships, which resolves them and then delegates the
// final, directive-free candidate to createBase.
func (c *Collection) Create(candidate M) (M, error) {
	return c.db.createWithRelationships(c, candidate)
}

// createBase performs the plain insert contract (§4.4 create), with no
// relationship-directive handling: fill defaults -> schema-decode ->
// unique-check -> FK-check -> atomic insert -> publish created.
func (c *Collection) createBase(candidate M) (M, error) {
	stamped := c.stampNew(candidate)

	decoded, err := c.cfg.Schema.Decode(c.cfg.Name, stamped)
	if err != nil {
		return nil, err
	}

	res, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		id := decoded.ID()
		if _, exists := snap[id]; exists {
			return nil, &DuplicateKeyError{Collection: c.cfg.Name, ID: id}
		}
		if err := checkUniqueAgainst(c.cfg.Name, c.cfg.Unique, snap, "", decoded); err != nil {
			return nil, err
		}
		if err := checkForeignKeys(c.cfg.Name, c.cfg.Relationships, decoded, c.db); err != nil {
			return nil, err
		}
		return &commitResult{
			puts:   []M{decoded},
			events: []ChangeEvent{{Collection: c.cfg.Name, Op: ChangeInsert, ID: id, After: decoded}},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.puts[0], nil
}

// CreateManyOptions configures createMany (§4.4 createMany).
type CreateManyOptions struct {
	SkipDuplicates        bool
	ValidateRelationships bool
}

// CreateMany inserts every candidate as one atomic commit by default
// (all-or-nothing): each candidate is validated against the others in the
// batch and against current state before any write occurs. With
// SkipDuplicates, candidates that collide on id or a unique constraint
// (against the batch or current state) are silently dropped instead of
// failing the whole call.
func (c *Collection) CreateMany(candidates []M, opts CreateManyOptions) (created []M, skipped []M, err error) {
	stamped := make([]M, len(candidates))
	for i, cand := range candidates {
		s := c.stampNew(cand)
		decoded, derr := c.cfg.Schema.Decode(c.cfg.Name, s)
		if derr != nil {
			if opts.SkipDuplicates {
				skipped = append(skipped, s)
				continue
			}
			return nil, nil, derr
		}
		stamped[i] = decoded
	}

	res, err := c.commit(func(snap map[string]M) (*commitResult, error) {
		accepted := make(map[string]M, len(stamped))
		var events []ChangeEvent
		for _, decoded := range stamped {
			if decoded == nil {
				continue // already dropped above as a schema failure
			}
			id := decoded.ID()
			if id == "" {
				continue
			}
			if _, exists := snap[id]; exists {
				if opts.SkipDuplicates {
					skipped = append(skipped, decoded)
					continue
				}
				return nil, &DuplicateKeyError{Collection: c.cfg.Name, ID: id}
			}
			if _, already := accepted[id]; already {
				if opts.SkipDuplicates {
					skipped = append(skipped, decoded)
					continue
				}
				return nil, &DuplicateKeyError{Collection: c.cfg.Name, ID: id}
			}

			// pairwise check: against current live state plus the batch's
			// own already-accepted prefix (DESIGN.md Open Question 3).
			combined := cloneEntityMap(snap)
			for aid, ae := range accepted {
				combined[aid] = ae
			}
			if err := checkUniqueAgainst(c.cfg.Name, c.cfg.Unique, combined, "", decoded); err != nil {
				if opts.SkipDuplicates {
					skipped = append(skipped, decoded)
					continue
				}
				return nil, err
			}
			if opts.ValidateRelationships {
				if err := checkForeignKeys(c.cfg.Name, c.cfg.Relationships, decoded, c.db); err != nil {
					if opts.SkipDuplicates {
						skipped = append(skipped, decoded)
						continue
					}
					return nil, err
				}
			}

			accepted[id] = decoded
			events = append(events, ChangeEvent{Collection: c.cfg.Name, Op: ChangeInsert, ID: id, After: decoded})
		}

		puts := make([]M, 0, len(accepted))
		for _, e := range accepted {
			puts = append(puts, e)
		}
		return &commitResult{puts: puts, events: events}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return res.puts, skipped, nil
}
