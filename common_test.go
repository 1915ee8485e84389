package proseql

// Shared fixtures for the root package's tests, in the teacher's style of
// a small set of package-level builders rather than per-test setup
// duplication (see nodestorage's common_test.go).

func authorSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"name": {Type: FieldString, Required: true},
		},
	}
}

func postSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"title":    {Type: FieldString, Required: true},
			"authorId": {Type: FieldString},
		},
		SoftDelete: true,
	}
}

func commentSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"body":   {Type: FieldString, Required: true},
			"postId": {Type: FieldString},
		},
	}
}

// newBlogDB wires authors/posts/comments with a ref relationship from
// posts->authors and comments->posts, onDelete configurable per test via
// opts so cascade.go's restrict/cascade/set_null paths are all reachable
// from the same fixture shape.
func newBlogDB(postOnDelete, commentOnDelete CascadeOption) *Database {
	db, err := Open(Config{
		Collections: []CollectionConfig{
			{
				Name:   "authors",
				Schema: authorSchema(),
				Relationships: []Relationship{
					{Name: "posts", Target: "posts", Kind: RelInverse},
				},
			},
			{
				Name:   "posts",
				Schema: postSchema(),
				Relationships: []Relationship{
					{Name: "author", Target: "authors", Kind: RelRef, Field: "authorId", OnDelete: postOnDelete},
				},
			},
			{
				Name:   "comments",
				Schema: commentSchema(),
				Relationships: []Relationship{
					{Name: "post", Target: "posts", Kind: RelRef, Field: "postId", OnDelete: commentOnDelete},
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return db
}
