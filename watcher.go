package proseql

import (
	"sync"

	"go.uber.org/zap"

	"github.com/simonwjackson/proseql/internal/corelog"
)

// fileWatcher watches a collection's bound file for changes made outside
// this process (through the collection's StorageAdapter) and reloads the
// collection's state cell in response. Grounded on hazyhaar-GoClode's
// fsnotify-based WatchFile, generalized here from a single reload callback
// into a per-collection reload that replaces the collection's state cell
// outright (external edits are treated as a full snapshot replacement,
// never merged against in-process state) and publishes a reload change
// event (§6, S8).
type fileWatcher struct {
	stop     func()
	stopOnce sync.Once
}

// watchCollectionFile starts watching col's bound file for external
// changes, through db.storage.Watch. Returns nil, nil if col has no bound
// file.
func watchCollectionFile(db *Database, col *Collection) (*fileWatcher, error) {
	if col.cfg.File.Path == "" {
		return nil, nil
	}

	reload := func() {
		if err := db.loadCollection(col); err != nil {
			corelog.Error("external reload failed",
				zap.String("collection", col.cfg.Name),
				zap.Error(err),
			)
			return
		}
		metricsWatcherReloadsTotal.WithLabelValues(col.cfg.Name).Inc()
		col.bus.publish(ChangeEvent{Collection: col.cfg.Name, Op: ChangeReload})
	}

	stop, err := db.storage.Watch(col.cfg.File.Path, reload)
	if err != nil {
		return nil, &StorageError{Path: col.cfg.File.Path, Cause: err}
	}
	return &fileWatcher{stop: stop}, nil
}

// Close stops the underlying adapter watch. Safe to call more than once.
func (fw *fileWatcher) Close() {
	fw.stopOnce.Do(fw.stop)
}
