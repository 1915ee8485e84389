package proseql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonwjackson/proseql/storage"
)

// TestWriterPendingCountReflectsCoalescedTouches covers spec.md §4.9/C12:
// pendingCount reports whether an unflushed write is outstanding.
func TestWriterPendingCountReflectsCoalescedTouches(t *testing.T) {
	mem := NewMemAdapter()
	db, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{Name: "books", Schema: bookSchema(), File: FileBinding{Path: "books.json"}},
		},
	})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	assert.Equal(t, 0, books.writer.pendingCount())

	_, err = books.Create(M{"title": "Dune"})
	require.NoError(t, err)
	assert.Equal(t, 1, books.writer.pendingCount())

	require.NoError(t, books.writer.Flush())
	assert.Equal(t, 0, books.writer.pendingCount())
}

// TestWriterFlushIsIdempotentWithNothingPending covers the no-op case:
// Flush with no outstanding touch does not error and does not write again.
func TestWriterFlushIsIdempotentWithNothingPending(t *testing.T) {
	mem := NewMemAdapter()
	db, err := Open(Config{
		Storage: mem,
		Collections: []CollectionConfig{
			{Name: "books", Schema: bookSchema(), File: FileBinding{Path: "books.json"}},
		},
	})
	require.NoError(t, err)

	books, _ := db.Collection("books")
	require.NoError(t, books.writer.Flush())
	_, err = mem.Read("books.json")
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

// TestWriterCoalescesMultipleTouchesIntoOneFlush covers the debounce's
// coalescing behavior: several commits before the timer fires still only
// need a single Flush to persist the final state.
func TestWriterCoalescesMultipleTouchesIntoOneFlush(t *testing.T) {
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
	_, err = books.Create(M{"title": "Hyperion"})
	require.NoError(t, err)

	assert.Equal(t, 1, books.writer.pendingCount())
	require.NoError(t, books.writer.Flush())

	results, _, err := books.Find().Run()
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// give the real debounce timer (already stopped by Flush) no chance to
	// fire a second time and race the assertions above.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, books.writer.pendingCount())
}
