package proseql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPosts(t *testing.T, posts *Collection, n int) []M {
	t.Helper()
	var out []M
	for i := 0; i < n; i++ {
		p, err := posts.Create(M{"title": "Post"})
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestQueryFilterAndSort(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	posts, _ := db.Collection("posts")
	_, _ = posts.Create(M{"title": "B"})
	_, _ = posts.Create(M{"title": "A"})
	_, _ = posts.Create(M{"title": "C"})

	results, _, err := posts.Find().Sort(SortKey{Field: "title"}).Run()
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "A", results[0]["title"])
	assert.Equal(t, "B", results[1]["title"])
	assert.Equal(t, "C", results[2]["title"])
}

func TestQueryExcludesSoftDeletedByDefault(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	posts, _ := db.Collection("posts")
	p, _ := posts.Create(M{"title": "Gone"})
	_, err := posts.Delete(p.ID(), DeleteOptions{Soft: true})
	require.NoError(t, err)

	results, _, err := posts.Find().Run()
	require.NoError(t, err)
	assert.Empty(t, results)

	withSoft, _, err := posts.Find().IncludeSoftDeleted().Run()
	require.NoError(t, err)
	assert.Len(t, withSoft, 1)
}

func TestQueryOffsetLimit(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	posts, _ := db.Collection("posts")
	seedPosts(t, posts, 5)

	page, _, err := posts.Find().Sort(SortKey{Field: "title"}).Offset(2).Limit(2).Run()
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestQueryPopulateAndSelect(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	authors, _ := db.Collection("authors")
	posts, _ := db.Collection("posts")

	author, _ := authors.Create(M{"name": "Ada"})
	_, _ = posts.Create(M{"title": "Hello", "authorId": author.ID()})

	results, _, err := posts.Find().
		Populate(PopulateSpec{Relationship: "author"}).
		Select("title").
		Run()
	require.NoError(t, err)
	require.Len(t, results, 1)

	// select("title") keeps title plus the populated relationship key.
	_, hasTitle := results[0]["title"]
	assert.True(t, hasTitle)
	_, hasAuthor := results[0]["author"]
	assert.True(t, hasAuthor)
	_, hasID := results[0][FieldID]
	assert.False(t, hasID)
}

func TestQueryUsesIndexForSingleEquality(t *testing.T) {
	db := newAuthorsOnlyDB()
	authors, _ := db.Collection("authors")
	_, err := authors.Create(M{"name": "Ada"})
	require.NoError(t, err)

	results, _, err := authors.Find().Where(Where{"name": "Ada"}).Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Ada", results[0]["name"])
}

func TestQueryFindOne(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	posts, _ := db.Collection("posts")
	seedPosts(t, posts, 3)

	one, found, err := posts.Find().FindOne()
	require.NoError(t, err)
	require.True(t, found)
	assert.NotNil(t, one)
}

func TestQueryAggregate(t *testing.T) {
	db := newBlogDB(CascadeRestrict, CascadeRestrict)
	posts, _ := db.Collection("posts")
	seedPosts(t, posts, 4)

	results, err := posts.Find().Aggregate(AggregateSpec{Count: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4, results[0].Count)
}
