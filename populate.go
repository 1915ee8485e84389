package proseql

const maxPopulateDepth = 5

// PopulateSpec names one relationship to resolve, with an optional nested
// tree for walking further (§4.8 step 5).
type PopulateSpec struct {
	Relationship string
	Nested       []PopulateSpec
	Strict       bool // true: missing peer surfaces DanglingReferenceError; false: stripped
}

func relationshipByName(rels []Relationship, name string) (Relationship, bool) {
	for _, r := range rels {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}

// populateEntity resolves every spec against e, returning a copy of e with
// each relationship's Name key set to the resolved peer (a single M for
// ref, a []M for inverse). Recursion stops at maxPopulateDepth.
func populateEntity(db *Database, col *Collection, e M, specs []PopulateSpec, depth int) (M, error) {
	if len(specs) == 0 || depth > maxPopulateDepth {
		return e, nil
	}

	out := e.clone()
	for _, spec := range specs {
		rel, known := relationshipByName(col.cfg.Relationships, spec.Relationship)
		if !known {
			continue
		}
		targetCol, err := db.Collection(rel.Target)
		if err != nil {
			return nil, err
		}

		switch rel.Kind {
		case RelRef:
			id, _ := e[rel.Field].(string)
			if id == "" {
				continue
			}
			peer, ok := targetCol.get(id)
			if ok {
				if _, soft := peer.DeletedAt(); soft {
					ok = false
				}
			}
			if !ok {
				if spec.Strict {
					return nil, &DanglingReferenceError{Collection: col.cfg.Name, Field: rel.Field, ID: id}
				}
				continue
			}
			if len(spec.Nested) > 0 {
				peer, err = populateEntity(db, targetCol, peer, spec.Nested, depth+1)
				if err != nil {
					return nil, err
				}
			}
			out[rel.Name] = peer

		case RelInverse:
			backField := rel.Field
			if backField == "" {
				backField = findBackRefField(targetCol, col.cfg.Name)
			}
			if backField == "" {
				continue
			}
			var peers []M
			for _, peer := range targetCol.snapshot() {
				if _, soft := peer.DeletedAt(); soft {
					continue
				}
				if v, _ := peer[backField].(string); v == e.ID() {
					peers = append(peers, peer)
				}
			}
			if len(spec.Nested) > 0 {
				for i, peer := range peers {
					p, err := populateEntity(db, targetCol, peer, spec.Nested, depth+1)
					if err != nil {
						return nil, err
					}
					peers[i] = p
				}
			}
			out[rel.Name] = peers
		}
	}
	return out, nil
}
