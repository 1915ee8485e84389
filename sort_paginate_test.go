package proseql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkEntity(id string, age float64) M {
	return M{FieldID: id, "age": age}
}

func TestSortEntitiesMultiKeyWithIDTiebreak(t *testing.T) {
	entities := []M{
		mkEntity("b", 30),
		mkEntity("a", 30),
		mkEntity("c", 20),
	}
	sortEntities(entities, []SortKey{{Field: "age"}})
	require.Len(t, entities, 3)
	assert.Equal(t, "c", entities[0].ID()) // age 20 first
	assert.Equal(t, "a", entities[1].ID()) // age 30 tie, id "a" before "b"
	assert.Equal(t, "b", entities[2].ID())
}

func TestSortEntitiesDescending(t *testing.T) {
	entities := []M{mkEntity("a", 10), mkEntity("b", 20)}
	sortEntities(entities, []SortKey{{Field: "age", Desc: true}})
	assert.Equal(t, "b", entities[0].ID())
}

func TestPaginateOffsetBeyondLength(t *testing.T) {
	entities := []M{mkEntity("a", 1), mkEntity("b", 2)}
	assert.Empty(t, paginateOffset(entities, 5, 10))
}

func TestPaginateOffsetAndLimit(t *testing.T) {
	entities := []M{mkEntity("a", 1), mkEntity("b", 2), mkEntity("c", 3)}
	page := paginateOffset(entities, 1, 1)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID())
}

func TestPaginateCursorPeeksExtraForHasNext(t *testing.T) {
	entities := []M{mkEntity("a", 1), mkEntity("b", 2), mkEntity("c", 3)}
	page, info := paginateCursor(entities, "age", nil, nil, 2)
	require.Len(t, page, 2)
	assert.True(t, info.HasNextPage)
	assert.False(t, info.HasPreviousPage)
	assert.Equal(t, "a", page[0].ID())
	assert.Equal(t, "b", page[1].ID())
}

func TestPaginateCursorAfter(t *testing.T) {
	entities := []M{mkEntity("a", 1), mkEntity("b", 2), mkEntity("c", 3)}
	after := cursorValue{Key: float64(1), ID: "a"}
	page, info := paginateCursor(entities, "age", &after, nil, 10)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID())
	assert.True(t, info.HasPreviousPage)
	assert.False(t, info.HasNextPage)
}

func TestEncodeDecodeCursorRoundTrip(t *testing.T) {
	e := mkEntity("x", 42)
	cur := encodeCursor(e, "age")
	require.NotEmpty(t, cur)
	cv, ok := decodeCursor(cur)
	require.True(t, ok)
	assert.Equal(t, "x", cv.ID)
	assert.InDelta(t, 42, cv.Key, 0.001)
}

func TestDecodeCursorMalformedNeverErrors(t *testing.T) {
	cv, ok := decodeCursor("not-valid-base64!!!")
	assert.False(t, ok)
	assert.Equal(t, cursorValue{}, cv)

	cv, ok = decodeCursor("")
	assert.False(t, ok)
	assert.Equal(t, cursorValue{}, cv)
}
