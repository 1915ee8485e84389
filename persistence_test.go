package proseql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"title": {Type: FieldString, Required: true},
		},
	}
}

// TestSaveCollectionUsesMapKeyedEnvelope covers spec.md S7: the on-disk
// shape is a flat map keyed directly by entity id, not an array wrapped
// under "entities".
func TestSaveCollectionUsesMapKeyedEnvelope(t *testing.T) {
	mem := NewMemAdapter()
	db, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{Name: "books", Schema: bookSchema(), File: FileBinding{Path: "books.json"}, Version: 2},
		},
	})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	created, err := books.Create(M{"title": "Dune"})
	require.NoError(t, err)
	require.NoError(t, books.writer.Flush())

	data, err := mem.Read("books.json")
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))

	assert.EqualValues(t, 2, envelope["_version"])
	raw, ok := envelope[created.ID()]
	require.True(t, ok, "entity must be keyed directly by its id at the envelope's top level")
	entity, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Dune", entity["title"])

	_, hasEntitiesKey := envelope["entities"]
	assert.False(t, hasEntitiesKey, "map-keyed formats must not array-wrap entities")
}

// TestSaveCollectionOmitsVersionWhenUndeclared covers §6: "_version" is
// absent entirely when the collection declares no version.
func TestSaveCollectionOmitsVersionWhenUndeclared(t *testing.T) {
	mem := NewMemAdapter()
	db, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{Name: "books", Schema: bookSchema(), File: FileBinding{Path: "books.json"}},
		},
	})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	_, err = books.Create(M{"title": "Dune"})
	require.NoError(t, err)
	require.NoError(t, books.writer.Flush())

	data, err := mem.Read("books.json")
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))

	_, hasVersion := envelope["_version"]
	assert.False(t, hasVersion)
}

// TestLoadCollectionMigratesFileVersion covers spec.md S7 literally: a
// v1 file with no "year" field, a v1->v2 migration adding year=0, loaded
// against a v2-configured collection.
func TestLoadCollectionMigratesFileVersion(t *testing.T) {
	mem := NewMemAdapter()
	raw := `{"_version":1,"1":{"id":"1","title":"Dune"}}`
	require.NoError(t, mem.Write("books.json", []byte(raw)))

	db, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{
				Name:    "books",
				Schema:  bookSchema(),
				File:    FileBinding{Path: "books.json"},
				Version: 2,
				Migrations: []Migration{
					{FromVersion: 1, Up: func(e M) (M, error) {
						next := e.clone()
						next["year"] = 0
						return next, nil
					}},
				},
			},
		},
	})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	got, ok := books.get("1")
	require.True(t, ok)
	assert.Equal(t, "Dune", got["title"])
	assert.EqualValues(t, 0, got["year"])

	// load migrates in place, so the file is rewritten at the new version
	// immediately — no separate Flush needed to observe it.
	data, err := mem.Read("books.json")
	require.NoError(t, err)
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.EqualValues(t, 2, envelope["_version"])
}

// TestLoadCollectionRejectsNewerFileVersion covers §4.11: a file version
// ahead of the configured version is a MigrationError, not silently loaded.
func TestLoadCollectionRejectsNewerFileVersion(t *testing.T) {
	mem := NewMemAdapter()
	raw := `{"_version":5,"1":{"id":"1","title":"Dune"}}`
	require.NoError(t, mem.Write("books.json", []byte(raw)))

	_, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{Name: "books", Schema: bookSchema(), File: FileBinding{Path: "books.json"}, Version: 1},
		},
	})
	require.Error(t, err)
	var merr *MigrationError
	assert.ErrorAs(t, err, &merr)
}

// TestLineDelimitedRoundTripUsesSidecarVersion covers §6: jsonl/ndjson/
// prose carry no inlined header line; version metadata lives in a sidecar
// file instead.
func TestLineDelimitedRoundTripUsesSidecarVersion(t *testing.T) {
	for _, ext := range []string{"jsonl", "ndjson", "prose"} {
		t.Run(ext, func(t *testing.T) {
			mem := NewMemAdapter()
			path := "books." + ext
			db, err := Open(Config{
				Storage: mem,
				Collections: []CollectionConfig{
					{Name: "books", Schema: bookSchema(), File: FileBinding{Path: path}, Version: 3},
				},
			})
			require.NoError(t, err)

			books, _ := db.Collection("books")
			created, err := books.Create(M{"title": "Dune"})
			require.NoError(t, err)
			require.NoError(t, books.writer.Flush())

			data, err := mem.Read(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), `"_version"`)

			sidecar, err := mem.Read(path + ".version")
			require.NoError(t, err)
			assert.Equal(t, "3", string(sidecar))

			db2, err := Open(Config{
				Storage: mem,
				Collections: []CollectionConfig{
					{Name: "books", Schema: bookSchema(), File: FileBinding{Path: path}, Version: 3},
				},
			})
			require.NoError(t, err)
			books2, _ := db2.Collection("books")
			got, ok := books2.get(created.ID())
			require.True(t, ok)
			assert.Equal(t, "Dune", got["title"])
		})
	}
}

// TestLoadAndSaveCollectionsFromFile covers §4.11's multi-collection file
// contract: several collections bundled under one file, each keyed by
// collection name, each with its own sub-envelope and "_version".
func TestLoadAndSaveCollectionsFromFile(t *testing.T) {
	mem := NewMemAdapter()
	collCfgs := []CollectionConfig{
		{Name: "books", Schema: bookSchema(), File: FileBinding{Format: "json"}},
		{Name: "authors", Schema: authorSchema(), File: FileBinding{Format: "json"}},
	}
	db, err := Open(Config{Storage: mem, Collections: collCfgs})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	authors, _ := db.Collection("authors")
	_, err = books.Create(M{"title": "Dune"})
	require.NoError(t, err)
	_, err = authors.Create(M{"name": "Ada"})
	require.NoError(t, err)

	const sharedPath = "library.json"
	require.NoError(t, db.saveCollectionsToFile(sharedPath, []*Collection{books, authors}))

	data, err := mem.Read(sharedPath)
	require.NoError(t, err)
	var top map[string]any
	require.NoError(t, json.Unmarshal(data, &top))
	_, hasBooks := top["books"]
	_, hasAuthors := top["authors"]
	assert.True(t, hasBooks)
	assert.True(t, hasAuthors)

	// loading into a fresh pair of empty collections must recover both.
	db2, err := Open(Config{Storage: mem, Collections: collCfgs})
	require.NoError(t, err)
	books2, _ := db2.Collection("books")
	authors2, _ := db2.Collection("authors")
	require.NoError(t, db2.loadCollectionsFromFile(sharedPath, []*Collection{books2, authors2}))

	booksAll, err := booksTitles(books2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune"}, booksAll)

	authorsSnap := authors2.snapshot()
	assert.Len(t, authorsSnap, 1)
}

func booksTitles(col *Collection) ([]string, error) {
	results, _, err := col.Find().Run()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r["title"].(string))
	}
	return out, nil
}
