package proseql

// applyUpdate applies a partial update expression — a mix of direct
// replacement values and $-prefixed operator objects — to a copy of the
// current entity (§4.5). It returns the new entity plus the set of field
// names whose value actually changed. Update and UpdateMany set updatedAt
// on every successful update whatever this set holds.
func applyUpdate(current M, updates M) (M, map[string]bool, error) {
	next := current.clone()
	changed := make(map[string]bool, len(updates))

	for field, raw := range updates {
		newVal, err := applyFieldUpdate(current[field], raw)
		if err != nil {
			return nil, nil, err
		}
		if !valuesEqual(current[field], newVal) {
			changed[field] = true
		}
		next[field] = newVal
	}
	return next, changed, nil
}

// operatorCall is a single $-prefixed operator object: {"$name": arg}.
type operatorCall struct {
	name string
	arg  any
}

// asOperator recognizes an update value shaped like an operator object: a
// map with exactly one key, and that key begins with "$". Anything else —
// including a plain mapping with no $-prefixed keys — is a direct
// assignment (§4.5: "nested-object replace, not deep merge").
func asOperator(raw any) (operatorCall, bool) {
	m, ok := raw.(M)
	if !ok {
		if mm, ok2 := raw.(map[string]any); ok2 {
			m = M(mm)
			ok = true
		}
	}
	if !ok || len(m) != 1 {
		return operatorCall{}, false
	}
	for k, v := range m {
		if len(k) > 0 && k[0] == '$' {
			return operatorCall{name: k, arg: v}, true
		}
	}
	return operatorCall{}, false
}

type fieldKind int

const (
	kindOther fieldKind = iota
	kindNumber
	kindString
	kindSeq
	kindBool
)

func kindOf(v any) fieldKind {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return kindNumber
	case string:
		return kindString
	case []any:
		return kindSeq
	case bool:
		return kindBool
	default:
		return kindOther
	}
}

// applyFieldUpdate resolves a single field's update value against its
// current value. $set is universal; every other operator is dispatched by
// the *current* value's runtime kind, per §4.5. An operator unrecognized
// for the current kind is a no-op — the field keeps its current value.
func applyFieldUpdate(cur any, raw any) (any, error) {
	op, isOp := asOperator(raw)
	if !isOp {
		return raw, nil
	}
	if op.name == "$set" {
		return op.arg, nil
	}

	switch kindOf(cur) {
	case kindNumber:
		return applyNumberOp(cur, op)
	case kindString:
		return applyStringOp(cur, op)
	case kindSeq:
		return applySeqOp(cur, op)
	case kindBool:
		return applyBoolOp(cur, op)
	default:
		// cur has no established kind yet (field absent/nil): infer one
		// from the operator name so e.g. $increment on an unset numeric
		// counter still behaves sensibly.
		switch op.name {
		case "$increment", "$decrement", "$multiply":
			return applyNumberOp(float64(0), op)
		case "$append", "$prepend":
			return applySeqOp([]any{}, op)
		case "$toggle":
			return applyBoolOp(false, op)
		default:
			return cur, nil
		}
	}
}

func applyNumberOp(cur any, op operatorCall) (any, error) {
	curN, _ := toFloat64(cur)
	argN, ok := toFloat64(op.arg)
	switch op.name {
	case "$increment":
		if !ok {
			return cur, nil
		}
		return curN + argN, nil
	case "$decrement":
		if !ok {
			return cur, nil
		}
		return curN - argN, nil
	case "$multiply":
		if !ok {
			return cur, nil
		}
		return curN * argN, nil
	default:
		return cur, nil
	}
}

func applyStringOp(cur any, op operatorCall) (any, error) {
	curS, _ := cur.(string)
	argS, ok := op.arg.(string)
	switch op.name {
	case "$append":
		if !ok {
			return cur, nil
		}
		return curS + argS, nil
	case "$prepend":
		if !ok {
			return cur, nil
		}
		return argS + curS, nil
	default:
		return cur, nil
	}
}

func applySeqOp(cur any, op operatorCall) (any, error) {
	curSeq, _ := cur.([]any)
	switch op.name {
	case "$append":
		return append(append([]any{}, curSeq...), toSlice(op.arg)...), nil
	case "$prepend":
		return append(append([]any{}, toSlice(op.arg)...), curSeq...), nil
	case "$remove":
		return removeFromSeq(curSeq, op.arg), nil
	default:
		return cur, nil
	}
}

func applyBoolOp(cur any, op operatorCall) (any, error) {
	curB, _ := cur.(bool)
	switch op.name {
	case "$toggle":
		return !curB, nil
	default:
		return cur, nil
	}
}

// toSlice normalizes a $append/$prepend argument that may be a bare value
// or an already-a-slice value into a slice to splice in.
func toSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return []any{v}
}

// removeFromSeq drops every element equal to value, or for which predicate
// (a func(any) bool) returns true.
func removeFromSeq(seq []any, criterion any) []any {
	pred, isPredicate := criterion.(func(any) bool)
	out := make([]any, 0, len(seq))
	for _, el := range seq {
		if isPredicate {
			if pred(el) {
				continue
			}
		} else if valuesEqual(el, criterion) {
			continue
		}
		out = append(out, el)
	}
	return out
}
