package proseql

import "strings"

// Where is a filter tree: plain keys are field conditions (implicitly
// $and'ed together when there is more than one), plus the three
// combinators $and/$or/$not (§4.8 step 2).
type Where M

// evalWhere evaluates w against e. lookup, when non-nil, resolves field
// access; a nil lookup (which is what query.go and Collection.Subscribe
// pass) falls back to plain top-level field access on e.
func evalWhere(w Where, e M, lookup func(M, string) (any, bool)) bool {
	if lookup == nil {
		lookup = func(m M, f string) (any, bool) { v, ok := m[f]; return v, ok }
	}
	if len(w) == 0 {
		return true // §4.8: $and over an empty list is vacuous truth
	}

	for key, val := range w {
		switch key {
		case "$and":
			clauses, _ := val.([]any)
			for _, c := range clauses {
				cw, _ := c.(M)
				if !evalWhere(Where(cw), e, lookup) {
					return false
				}
			}
		case "$or":
			clauses, _ := val.([]any)
			if len(clauses) == 0 {
				return false // §4.8: $or over an empty list is false
			}
			matched := false
			for _, c := range clauses {
				cw, _ := c.(M)
				if evalWhere(Where(cw), e, lookup) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$not":
			sub, ok := val.(M)
			if !ok {
				return false // §4.8: $not of a non-object is false
			}
			if evalWhere(Where(sub), e, lookup) {
				return false
			}
		default:
			fv, present := lookup(e, key)
			if !evalFieldCondition(val, fv, present) {
				return false
			}
		}
	}
	return true
}

// evalFieldCondition evaluates one field's condition: either a direct
// equality value, or an operator object ({"$gt": 5}, possibly with several
// operator keys meaning their conjunction).
func evalFieldCondition(cond any, fv any, present bool) bool {
	m, isOperatorShaped := asFieldOperatorMap(cond)
	if !isOperatorShaped {
		return present && valuesEqual(fv, cond)
	}
	for op, arg := range m {
		if !evalFieldOperator(op, arg, fv, present) {
			return false
		}
	}
	return true
}

func asFieldOperatorMap(cond any) (M, bool) {
	m, ok := cond.(M)
	if !ok {
		if mm, ok2 := cond.(map[string]any); ok2 {
			m, ok = M(mm), true
		}
	}
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func evalFieldOperator(op string, arg any, fv any, present bool) bool {
	switch op {
	case "$eq":
		return present && valuesEqual(fv, arg)
	case "$ne":
		return !present || !valuesEqual(fv, arg)
	case "$gt":
		c, ok := compareValues(fv, arg)
		return present && ok && c > 0
	case "$gte":
		c, ok := compareValues(fv, arg)
		return present && ok && c >= 0
	case "$lt":
		c, ok := compareValues(fv, arg)
		return present && ok && c < 0
	case "$lte":
		c, ok := compareValues(fv, arg)
		return present && ok && c <= 0
	case "$in":
		list, _ := arg.([]any)
		for _, v := range list {
			if present && valuesEqual(fv, v) {
				return true
			}
		}
		return false
	case "$nin":
		list, _ := arg.([]any)
		for _, v := range list {
			if present && valuesEqual(fv, v) {
				return false
			}
		}
		return true
	case "$startsWith":
		s, sok := fv.(string)
		prefix, pok := arg.(string)
		return present && sok && pok && strings.HasPrefix(s, prefix)
	case "$endsWith":
		s, sok := fv.(string)
		suffix, pok := arg.(string)
		return present && sok && pok && strings.HasSuffix(s, suffix)
	case "$contains":
		if s, ok := fv.(string); ok {
			sub, ok2 := arg.(string)
			return ok2 && strings.Contains(s, sub)
		}
		return present && seqContains(fv, arg)
	case "$search":
		s, sok := fv.(string)
		needle, nok := arg.(string)
		return present && sok && nok && strings.Contains(strings.ToLower(s), strings.ToLower(needle))
	case "$all":
		want, _ := arg.([]any)
		for _, w := range want {
			if !seqContains(fv, w) {
				return false
			}
		}
		return true
	case "$size":
		n, ok := toFloat64(arg)
		return present && ok && float64(seqLen(fv)) == n
	default:
		return true // unrecognized operator: no-op, never excludes (mirrors $set-style universality in operators.go)
	}
}

func seqContains(fv any, want any) bool {
	items := toSlice(fv)
	for _, v := range items {
		if valuesEqual(v, want) {
			return true
		}
	}
	return false
}

func seqLen(fv any) int {
	switch v := fv.(type) {
	case string:
		return len([]rune(v))
	default:
		return len(toSlice(fv))
	}
}

// compareValues orders two field values for $gt/$gte/$lt/$lte: numerically
// if both coerce to float64, lexicographically if both are strings.
func compareValues(a, b any) (int, bool) {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}
