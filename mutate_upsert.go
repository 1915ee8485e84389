package proseql

// UpsertResult reports whether upsert/upsertMany created a new entity or
// updated an existing one (§4.4 upsert).
type UpsertResult struct {
	Entity  M
	Created bool
}

// UpsertItem is one element of an upsertMany batch.
type UpsertItem struct {
	Where  M
	Update M
	Create M
}

// coveredUniqueKey validates that where fully addresses a declared unique
// key: either the bare id, or every field of one declared unique
// constraint. where may carry additional fields beyond the constraint —
// those act as extra, non-unique filter predicates (§4.4) — but a
// constraint whose fields are not a subset of where's keys leaves upsert
// without a key it can use to find at most one match, and is rejected.
func coveredUniqueKey(collection string, where M, unique []UniqueConstraint) error {
	if len(where) == 1 {
		if _, ok := where[FieldID]; ok {
			return nil
		}
	}
	for _, c := range unique {
		match := true
		for _, f := range c.Fields {
			if _, present := where[f]; !present {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &ValidationError{
		Collection: collection,
		Issues:     []FieldIssue{{Field: "where", Message: "where does not fully address a declared unique key"}},
	}
}

func findUpsertMatch(c *Collection, where M) (M, bool) {
	if id, ok := where[FieldID].(string); ok && len(where) == 1 {
		e, found := c.get(id)
		if !found {
			return nil, false
		}
		if _, soft := e.DeletedAt(); soft {
			return nil, false
		}
		return e, true
	}
	return findByWhere(c, where)
}

// Upsert applies update to the entity where addresses if one exists,
// otherwise inserts a new entity built from create merged with where's
// constraint values (§4.4 upsert).
func (c *Collection) Upsert(where M, update M, create M) (UpsertResult, error) {
	if err := coveredUniqueKey(c.cfg.Name, where, c.cfg.Unique); err != nil {
		return UpsertResult{}, err
	}

	if existing, found := findUpsertMatch(c, where); found {
		updated, err := c.Update(existing.ID(), update)
		if err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Entity: updated, Created: false}, nil
	}

	candidate := create.clone()
	for k, v := range where {
		candidate[k] = v
	}
	created, err := c.Create(candidate)
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Entity: created, Created: true}, nil
}

// UpsertMany validates every item's where clause up front — the first
// invalid where fails the whole batch before any write occurs — then
// applies each upsert in order.
func (c *Collection) UpsertMany(items []UpsertItem) ([]UpsertResult, error) {
	for _, item := range items {
		if err := coveredUniqueKey(c.cfg.Name, item.Where, c.cfg.Unique); err != nil {
			return nil, err
		}
	}

	results := make([]UpsertResult, 0, len(items))
	for _, item := range items {
		res, err := c.Upsert(item.Where, item.Update, item.Create)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}
