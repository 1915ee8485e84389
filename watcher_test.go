package proseql

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWatcherReloadsAndPublishesOnExternalChange covers spec.md S8: an
// external process replaces the bound file's content; the watcher's
// debounce interval fires, the in-memory map is replaced, and a reload
// event is published.
func TestWatcherReloadsAndPublishesOnExternalChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1":{"id":"1","title":"Dune"}}`), 0o644))

	db, err := Open(Config{
		Storage: NewFSAdapter(),
		Collections: []CollectionConfig{
			{
				Name:                 "books",
				Schema:               bookSchema(),
				File:                 FileBinding{Path: path},
				WatchExternalChanges: true,
			},
		},
	})
	require.NoError(t, err)
	defer db.Close()

	books, _ := db.Collection("books")
	sub := books.Subscribe(nil, 4)
	defer sub.Close()

	// simulate an external process rewriting the file in place (not
	// through this process's own storage adapter).
	require.NoError(t, os.WriteFile(path, []byte(`{"1":{"id":"1","title":"Dune"},"2":{"id":"2","title":"Hyperion"}}`), 0o644))

	select {
	case ev := <-sub.C():
		assert.Equal(t, ChangeReload, ev.Op)
		assert.Equal(t, "books", ev.Collection)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for external reload event")
	}

	results, _, err := books.Find().Run()
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// TestWatcherCloseStopsFurtherReloads covers the teardown path: once the
// watcher is closed, subsequent external edits are not picked up.
func TestWatcherCloseStopsFurtherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1":{"id":"1","title":"Dune"}}`), 0o644))

	db, err := Open(Config{
		Storage: NewFSAdapter(),
		Collections: []CollectionConfig{
			{
				Name:                 "books",
				Schema:               bookSchema(),
				File:                 FileBinding{Path: path},
				WatchExternalChanges: true,
			},
		},
	})
	require.NoError(t, err)
	defer db.Close()

	books, _ := db.Collection("books")
	books.watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{"1":{"id":"1","title":"Dune"},"2":{"id":"2","title":"Hyperion"}}`), 0o644))
	time.Sleep(150 * time.Millisecond)

	results, _, err := books.Find().Run()
	require.NoError(t, err)
	assert.Len(t, results, 1, "closed watcher must not pick up further external edits")
}
