package proseql

import "reflect"

// M is the dynamic, document-style representation of an entity: a mapping
// from string keys to arbitrary values. Every entity carries a required
// "id" and the two reserved timestamps "createdAt"/"updatedAt"; an
// optional "deletedAt" marks soft-deleted state when the collection's
// schema declares it.
type M map[string]any

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeletedAt = "deletedAt"
)

// ID returns the entity's id, or "" if absent or not a string.
func (e M) ID() string {
	s, _ := e[FieldID].(string)
	return s
}

// DeletedAt returns the entity's deletedAt value and whether it is set to a
// non-nil value.
func (e M) DeletedAt() (any, bool) {
	v, ok := e[FieldDeletedAt]
	return v, ok && v != nil
}

// clone makes a shallow copy of the entity map. Entities are treated as
// immutable once committed: every mutation builds a new M rather than
// mutating one already visible to readers, so a shallow copy is sufficient
// — nested values are replaced wholesale by update operators, never
// mutated in place (see operators.go).
func (e M) clone() M {
	if e == nil {
		return M{}
	}
	next := make(M, len(e))
	for k, v := range e {
		next[k] = v
	}
	return next
}

// cloneEntityMap copies the top-level id->entity map so callers installing
// a new collection snapshot never alias the map a concurrent reader holds.
func cloneEntityMap(m map[string]M) map[string]M {
	next := make(map[string]M, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

// valuesEqual compares two field values for the purpose of deciding whether
// an update actually changed a field (used to build applyUpdate's changed
// set; updatedAt is set on every update regardless).
func valuesEqual(a, b any) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}
