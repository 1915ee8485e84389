package proseql

import "encoding/json"

// Typed wraps a Collection with a generic, struct-shaped view over the
// underlying M documents: callers that know their entity's Go shape up
// front get typed Create/Update/Get results instead of raw maps, while
// storage, validation, and the change bus still operate on M underneath
// (§4.9).
type Typed[T any] struct {
	col *Collection
}

// BindTyped attaches a generic struct view to col. T's JSON field tags
// determine how it round-trips through M — the same json tags a
// collection's Schema would use to validate field names.
func BindTyped[T any](col *Collection) *Typed[T] {
	return &Typed[T]{col: col}
}

func toEntity[T any](v T) (M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m M
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromEntity[T any](e M) (T, error) {
	var out T
	data, err := json.Marshal(e)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

func fromEntities[T any](entities []M) ([]T, error) {
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		v, err := fromEntity[T](e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Get fetches an entity by id and decodes it into T.
func (t *Typed[T]) Get(id string) (T, bool, error) {
	var zero T
	e, ok := t.col.get(id)
	if !ok {
		return zero, false, nil
	}
	v, err := fromEntity[T](e)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Create encodes v to M and inserts it, returning the stored value decoded
// back into T (picking up server-assigned id/timestamps).
func (t *Typed[T]) Create(v T) (T, error) {
	var zero T
	candidate, err := toEntity(v)
	if err != nil {
		return zero, err
	}
	created, err := t.col.Create(candidate)
	if err != nil {
		return zero, err
	}
	return fromEntity[T](created)
}

// Update applies a raw update document (direct values or operators, see
// operators.go) and returns the result decoded into T.
func (t *Typed[T]) Update(id string, updates M) (T, error) {
	var zero T
	updated, err := t.col.Update(id, updates)
	if err != nil {
		return zero, err
	}
	return fromEntity[T](updated)
}

// Delete removes the entity identified by id and returns it decoded into T.
func (t *Typed[T]) Delete(id string, opts DeleteOptions) (T, error) {
	var zero T
	deleted, err := t.col.Delete(id, opts)
	if err != nil {
		return zero, err
	}
	return fromEntity[T](deleted)
}

// All decodes every live entity in the collection into T, in no particular
// order — callers needing sorting/filtering/pagination should use Query
// against the underlying Collection instead.
func (t *Typed[T]) All() ([]T, error) {
	snap := t.col.snapshot()
	entities := make([]M, 0, len(snap))
	for _, e := range snap {
		if _, soft := e.DeletedAt(); soft {
			continue
		}
		entities = append(entities, e)
	}
	return fromEntities[T](entities)
}
