package proseql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthorsOnlyDB() *Database {
	db, err := Open(Config{
		Collections: []CollectionConfig{
			{
				Name:        "authors",
				Schema:      authorSchema(),
				Unique:      []UniqueConstraint{{Fields: []string{"name"}}},
				HashIndexes: []string{"name"},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return db
}

func TestUpsertCreatesWhenNoMatch(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")

	result, err := authors.Upsert(M{"name": "Ada"}, M{"name": "Ada Updated"}, M{"name": "Ada"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "Ada", result.Entity["name"])
}

func TestUpsertUpdatesWhenMatchFound(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")

	created, err := authors.Create(M{"name": "Ada"})
	require.NoError(t, err)

	result, err := authors.Upsert(M{"id": created.ID()}, M{"name": "Ada L."}, M{"name": "Ada"})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, "Ada L.", result.Entity["name"])
}

func TestUpsertRejectsUncoveredWhere(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")

	_, err := authors.Upsert(M{"unrelatedField": "x"}, M{"name": "y"}, M{"name": "y"})
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUpsertAcceptsWhereWithExtraNonUniqueFields(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")

	created, err := authors.Create(M{"name": "Ada", "bio": "mathematician"})
	require.NoError(t, err)

	// "name" alone covers the unique constraint; "bio" is an extra,
	// non-unique filter field layered on top (§4.4).
	result, err := authors.Upsert(M{"name": "Ada", "bio": "mathematician"}, M{"name": "Ada L."}, M{"name": "Ada"})
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, created.ID(), result.Entity.ID())
	assert.Equal(t, "Ada L.", result.Entity["name"])
}

func TestUpsertManyFailsWholeBatchOnOneInvalidWhere(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")

	items := []UpsertItem{
		{Where: M{"name": "Ada"}, Create: M{"name": "Ada"}, Update: M{"name": "Ada"}},
		{Where: M{"nope": "x"}, Create: M{"name": "y"}, Update: M{"name": "y"}},
	}
	_, err := authors.UpsertMany(items)
	require.Error(t, err)

	// no writes should have happened for the valid item either.
	assert.Empty(t, authors.snapshot())
}
