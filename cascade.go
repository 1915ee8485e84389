package proseql

import "fmt"

// parseDirective recognizes a relationship directive value: a map with
// exactly one $-prefixed key ($connect, $create, $connectOrCreate).
func parseDirective(raw any) (op string, arg any, ok bool) {
	call, isOp := asOperator(raw)
	if !isOp {
		return "", nil, false
	}
	switch call.name {
	case "$connect", "$create", "$connectOrCreate":
		return call.name, call.arg, true
	default:
		return "", nil, false
	}
}

// entityMatchesAll reports whether e holds exactly the field/value pairs in
// where — the linear-scan probe createWithRelationships'
// $connectOrCreate/$connect selectors and upsert's where clause use to find
// an existing peer.
func entityMatchesAll(e M, where M) bool {
	for field, want := range where {
		if !valuesEqual(e[field], want) {
			return false
		}
	}
	return true
}

// findByWhere linearly scans col's live snapshot for the first entity
// matching every field in where.
func findByWhere(col *Collection, where M) (M, bool) {
	for _, e := range col.snapshot() {
		if _, soft := e.DeletedAt(); soft {
			continue
		}
		if entityMatchesAll(e, where) {
			return e, true
		}
	}
	return nil, false
}

// resolveSelector turns a $connect/$connectOrCreate selector into a target
// id: an {"id": "..."} shorthand resolves directly; any other shape is
// treated as a where-clause probed against the target collection.
func resolveSelector(targetCol *Collection, rel Relationship, selector M) (string, error) {
	if id, ok := selector[FieldID].(string); ok && len(selector) == 1 {
		if exists, _ := targetCol.peerExists(id); !exists {
			return "", &ForeignKeyError{Collection: targetCol.cfg.Name, Field: rel.Field, Value: id, TargetCollection: rel.Target}
		}
		return id, nil
	}
	e, found := findByWhere(targetCol, selector)
	if !found {
		return "", &ForeignKeyError{Collection: targetCol.cfg.Name, Field: rel.Field, Value: selector, TargetCollection: rel.Target}
	}
	return e.ID(), nil
}

// findBackRefField returns the field name on targetCol's config that holds
// the ref FK pointing back at collection named parentName — used to
// populate an inverse relationship's child/peer during $create/$connect.
func findBackRefField(targetCol *Collection, parentName string) string {
	for _, rel := range targetCol.cfg.Relationships {
		if rel.Kind == RelRef && rel.Target == parentName {
			return rel.Field
		}
	}
	return ""
}

// createWithRelationships implements §4.6: create accepts $connect/$create/
// $connectOrCreate directives per declared relationship, keyed by the
// relationship's Name in the candidate map (removed before the plain
// createBase insert runs).
func (db *Database) createWithRelationships(col *Collection, candidate M) (M, error) {
	timer := newMetricsTimer()
	defer timer.observe(metricsCascadeDuration.WithLabelValues(col.cfg.Name, "create"))

	candidate = candidate.clone()

	// Step 1: generate the parent's id up front so inverse children can
	// point to it.
	if id, _ := candidate[FieldID].(string); id == "" {
		candidate[FieldID] = newID()
	}
	parentID := candidate[FieldID].(string)

	relByName := make(map[string]Relationship, len(col.cfg.Relationships))
	for _, rel := range col.cfg.Relationships {
		relByName[rel.Name] = rel
	}

	type pendingInverseConnect struct {
		targetCol *Collection
		backField string
		peerID    string
	}
	var inverseConnects []pendingInverseConnect

	directives := make(map[string]any)
	for name := range relByName {
		if v, present := candidate[name]; present {
			directives[name] = v
			delete(candidate, name)
		}
	}

	resolve := func(name string) (Relationship, any, bool, error) {
		rel, known := relByName[name]
		if !known {
			return Relationship{}, nil, false, &OperationError{Collection: col.cfg.Name, Reason: fmt.Sprintf("unknown relationship %q", name)}
		}
		op, arg, ok := parseDirective(directives[name])
		return rel, arg, ok && op != "", nil
	}
	directiveOp := func(name string) string {
		op, _, _ := parseDirective(directives[name])
		return op
	}

	// Step 2: process every $create.
	for name := range directives {
		if directiveOp(name) != "$create" {
			continue
		}
		rel, arg, ok, err := resolve(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		targetCol, err := db.Collection(rel.Target)
		if err != nil {
			return nil, err
		}
		childData, _ := arg.(M)
		childData = childData.clone()

		if rel.Kind == RelInverse {
			// The parent does not exist yet, so the child's back-reference
			// is written in step 7, once the parent is inserted.
			created, err := targetCol.createBase(childData)
			if err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
			if back := findBackRefField(targetCol, col.cfg.Name); back != "" {
				inverseConnects = append(inverseConnects, pendingInverseConnect{targetCol: targetCol, backField: back, peerID: created.ID()})
			}
		} else {
			created, err := targetCol.createBase(childData)
			if err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
			candidate[rel.Field] = created.ID()
		}
	}

	// Step 3: process every $connectOrCreate.
	for name := range directives {
		if directiveOp(name) != "$connectOrCreate" {
			continue
		}
		rel, arg, ok, err := resolve(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		targetCol, err := db.Collection(rel.Target)
		if err != nil {
			return nil, err
		}
		spec, _ := arg.(M)
		where, _ := spec["where"].(M)
		createData, _ := spec["create"].(M)

		var peerID string
		if existing, found := findByWhere(targetCol, where); found {
			peerID = existing.ID()
		} else {
			merged := createData.clone()
			for k, v := range where {
				merged[k] = v
			}
			created, err := targetCol.createBase(merged)
			if err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
			peerID = created.ID()
		}

		if rel.Kind == RelRef {
			candidate[rel.Field] = peerID
		} else {
			if back := findBackRefField(targetCol, col.cfg.Name); back != "" {
				inverseConnects = append(inverseConnects, pendingInverseConnect{targetCol: targetCol, backField: back, peerID: peerID})
			}
		}
	}

	// Step 4: process every $connect.
	for name := range directives {
		if directiveOp(name) != "$connect" {
			continue
		}
		rel, arg, ok, err := resolve(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		targetCol, err := db.Collection(rel.Target)
		if err != nil {
			return nil, err
		}
		selector, _ := arg.(M)
		peerID, err := resolveSelector(targetCol, rel, selector)
		if err != nil {
			return nil, err
		}
		if rel.Kind == RelRef {
			candidate[rel.Field] = peerID
		} else {
			if back := findBackRefField(targetCol, col.cfg.Name); back != "" {
				inverseConnects = append(inverseConnects, pendingInverseConnect{targetCol: targetCol, backField: back, peerID: peerID})
			}
		}
	}

	// Steps 5-6: the parent's ref FK fields are already set in candidate;
	// createBase validates and inserts it.
	parent, err := col.createBase(candidate)
	if err != nil {
		return nil, err
	}

	// Step 7: for inverse relationships connected, write the parent's id
	// into each connected peer's back-reference field.
	for _, ic := range inverseConnects {
		if _, err := ic.targetCol.Update(ic.peerID, M{ic.backField: parentID}); err != nil {
			return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
		}
	}

	return parent, nil
}

// idSetPredicate returns a predicate matching any entity whose id is in ids.
func idSetPredicate(ids []string) func(M) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(e M) bool { return set[e.ID()] }
}

// fieldInSetPredicate returns a predicate matching any entity whose field
// equals one of ids (used to find dependents referencing a deleted batch).
func fieldInSetPredicate(field string, ids []string) func(M) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(e M) bool {
		v, _ := e[field].(string)
		return v != "" && set[v]
	}
}

// deleteWithRelationships implements §4.7: per-relationship cascade option
// evaluation (restrict/cascade/cascade_soft/set_null/preserve) against
// every dependent collection, then the target ids' own delete/soft-delete.
func (db *Database) deleteWithRelationships(col *Collection, ids []string, opts DeleteOptions) ([]M, error) {
	timer := newMetricsTimer()
	defer timer.observe(metricsCascadeDuration.WithLabelValues(col.cfg.Name, "delete"))

	dependents := db.dependentsOf(col.cfg.Name)

	// Restrict pass: evaluated and combined across the whole batch before
	// any writes occur (§4.7's fail-fast-across-the-batch rule).
	var issues []FieldIssue
	for _, dep := range dependents {
		if dep.rel.OnDelete != CascadeRestrict {
			continue
		}
		count := 0
		for _, e := range dep.owner.snapshot() {
			if _, soft := e.DeletedAt(); soft {
				continue
			}
			v, _ := e[dep.rel.Field].(string)
			for _, id := range ids {
				if v == id {
					count++
					break
				}
			}
		}
		if count > 0 {
			issues = append(issues, FieldIssue{
				Field:   dep.rel.Name,
				Message: fmt.Sprintf("%d live reference(s) in %q via %q", count, dep.owner.cfg.Name, dep.rel.Field),
			})
		}
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Collection: col.cfg.Name, Issues: issues}
	}

	// Non-restrict passes: cascade / cascade_soft / set_null / preserve.
	for _, dep := range dependents {
		switch dep.rel.OnDelete {
		case CascadeRestrict, CascadePreserve:
			continue
		case CascadeDelete:
			var peerIDs []string
			for _, e := range dep.owner.snapshot() {
				if v, _ := e[dep.rel.Field].(string); v != "" && containsString(ids, v) {
					peerIDs = append(peerIDs, e.ID())
				}
			}
			if len(peerIDs) == 0 {
				continue
			}
			if _, err := db.deleteWithRelationships(dep.owner, peerIDs, DeleteOptions{}); err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
		case CascadeSoft:
			if !dep.owner.cfg.Schema.SoftDelete {
				continue
			}
			var peerIDs []string
			for _, e := range dep.owner.snapshot() {
				if v, _ := e[dep.rel.Field].(string); v != "" && containsString(ids, v) {
					peerIDs = append(peerIDs, e.ID())
				}
			}
			if len(peerIDs) == 0 {
				continue
			}
			if _, err := db.deleteWithRelationships(dep.owner, peerIDs, DeleteOptions{Soft: true}); err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
		case CascadeSetNull:
			if _, err := dep.owner.UpdateMany(fieldInSetPredicate(dep.rel.Field, ids), M{dep.rel.Field: nil}, UpdateManyOptions{}); err != nil {
				return nil, &TransactionError{Collection: col.cfg.Name, Cause: err}
			}
		}
	}

	return col.deleteManyBase(idSetPredicate(ids), opts.Soft, 0)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
