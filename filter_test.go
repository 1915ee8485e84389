package proseql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalWhereEmptyIsVacuousTruth(t *testing.T) {
	assert.True(t, evalWhere(Where{}, M{"name": "Ada"}, nil))
}

func TestEvalWhereImplicitAnd(t *testing.T) {
	w := Where{"name": "Ada", "age": M{"$gte": float64(30)}}
	assert.True(t, evalWhere(w, M{"name": "Ada", "age": float64(42)}, nil))
	assert.False(t, evalWhere(w, M{"name": "Ada", "age": float64(10)}, nil))
}

func TestEvalWhereOrEmptyListIsFalse(t *testing.T) {
	w := Where{"$or": []any{}}
	assert.False(t, evalWhere(w, M{"name": "Ada"}, nil))
}

func TestEvalWhereOrMatchesAny(t *testing.T) {
	w := Where{"$or": []any{
		M{"name": "Ada"},
		M{"name": "Grace"},
	}}
	assert.True(t, evalWhere(w, M{"name": "Grace"}, nil))
	assert.False(t, evalWhere(w, M{"name": "Linus"}, nil))
}

func TestEvalWhereNotOfNonObjectIsFalse(t *testing.T) {
	w := Where{"$not": "oops"}
	assert.False(t, evalWhere(w, M{"name": "Ada"}, nil))
}

func TestEvalWhereNotNegates(t *testing.T) {
	w := Where{"$not": M{"name": "Ada"}}
	assert.False(t, evalWhere(w, M{"name": "Ada"}, nil))
	assert.True(t, evalWhere(w, M{"name": "Grace"}, nil))
}

func TestEvalFieldOperatorStringOps(t *testing.T) {
	assert.True(t, evalFieldOperator("$startsWith", "He", "Hello", true))
	assert.True(t, evalFieldOperator("$endsWith", "lo", "Hello", true))
	assert.True(t, evalFieldOperator("$search", "ELL", "Hello", true))
	assert.False(t, evalFieldOperator("$startsWith", "lo", "Hello", true))
}

func TestEvalFieldOperatorArrayOps(t *testing.T) {
	tags := []any{"a", "b", "c"}
	assert.True(t, evalFieldOperator("$contains", "b", tags, true))
	assert.True(t, evalFieldOperator("$all", []any{"a", "c"}, tags, true))
	assert.False(t, evalFieldOperator("$all", []any{"a", "z"}, tags, true))
	assert.True(t, evalFieldOperator("$size", float64(3), tags, true))
}

func TestEvalFieldOperatorUnrecognizedIsNoOp(t *testing.T) {
	assert.True(t, evalFieldOperator("$bogus", "whatever", "Hello", true))
}

func TestEvalFieldOperatorInNin(t *testing.T) {
	assert.True(t, evalFieldOperator("$in", []any{"a", "b"}, "a", true))
	assert.False(t, evalFieldOperator("$in", []any{"a", "b"}, "c", true))
	assert.True(t, evalFieldOperator("$nin", []any{"a", "b"}, "c", true))
	assert.False(t, evalFieldOperator("$nin", []any{"a", "b"}, "a", true))
}

func TestCompareValuesNumericAndString(t *testing.T) {
	c, ok := compareValues(float64(1), float64(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = compareValues("a", "b")
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = compareValues(true, float64(1))
	assert.False(t, ok)
}
