package proseql

// checkImmutableFields returns a *ValidationError if updates mentions any
// field the schema (or the baseline id/createdAt) marks immutable (§4.3).
func checkImmutableFields(collection string, schema *Schema, updates M) error {
	immutable := schema.ImmutableFields()
	var issues []FieldIssue
	for field := range updates {
		if immutable[field] {
			issues = append(issues, FieldIssue{Field: field, Message: "field is immutable"})
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Collection: collection, Issues: issues}
	}
	return nil
}

// checkUniqueAgainst validates candidate against every declared unique
// constraint by scanning current directly (not the indexManager, which is
// only a read-path accelerator) — so this function is safe to call both as
// an optimistic pre-check and as the authoritative commit-time re-check
// against a fresh snapshot (§5's "commit re-runs unique-constraint...checks
// against the commit-time snapshot"). selfID is the candidate's own id
// (excluded from the self-conflict scan); pass "" for creates.
func checkUniqueAgainst(collection string, constraints []UniqueConstraint, current map[string]M, selfID string, candidate M) error {
	for _, c := range constraints {
		vals := make([]any, len(c.Fields))
		for i, f := range c.Fields {
			vals[i] = candidate[f]
		}
		key, ok := encodeTuple(vals)
		if !ok {
			continue // null/absent slot: constraint does not apply
		}
		for id, e := range current {
			if id == selfID {
				continue
			}
			otherVals := make([]any, len(c.Fields))
			for i, f := range c.Fields {
				otherVals[i] = e[f]
			}
			otherKey, otherOK := encodeTuple(otherVals)
			if otherOK && otherKey == key {
				return &UniqueConstraintError{
					Collection: collection,
					Fields:     c.Fields,
					Values:     vals,
					HolderID:   id,
				}
			}
		}
	}
	return nil
}

// uniqueFieldsChanged reports whether any field participating in any
// declared unique constraint is among the changed fields — used by
// update() to decide whether the (more expensive) unique re-check is
// needed at all (§4.4 update: "unique-check only if an indexed field
// changed").
func uniqueFieldsChanged(constraints []UniqueConstraint, changed map[string]bool) bool {
	for _, c := range constraints {
		for _, f := range c.Fields {
			if changed[f] {
				return true
			}
		}
	}
	return false
}

// fkFieldsChanged reports whether any ref relationship's FK field is among
// the changed fields.
func fkFieldsChanged(rels []Relationship, changed map[string]bool) bool {
	for _, rel := range rels {
		if rel.Kind == RelRef && changed[rel.Field] {
			return true
		}
	}
	return false
}

// fkResolver looks up a peer collection's entity by id, used by
// checkForeignKeys without coupling validate.go to the Database type.
type fkResolver interface {
	peerExists(targetCollection, id string) (exists bool, knownCollection bool)
}

// checkForeignKeys validates every declared ref relationship whose FK
// field is non-null against its target collection (§4.3).
func checkForeignKeys(collection string, rels []Relationship, candidate M, resolver fkResolver) error {
	for _, rel := range rels {
		if rel.Kind != RelRef {
			continue
		}
		v, present := candidate[rel.Field]
		if !present || v == nil {
			continue
		}
		id, ok := v.(string)
		if !ok {
			return &ForeignKeyError{Collection: collection, Field: rel.Field, Value: v, TargetCollection: rel.Target}
		}
		exists, known := resolver.peerExists(rel.Target, id)
		if !known {
			return &ForeignKeyError{Collection: collection, Field: rel.Field, Value: v, TargetCollection: rel.Target}
		}
		if !exists {
			return &ForeignKeyError{Collection: collection, Field: rel.Field, Value: id, TargetCollection: rel.Target}
		}
	}
	return nil
}
