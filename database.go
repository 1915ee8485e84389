package proseql

import (
	"fmt"
	"sync"
)

// Plugin is registered once at Database construction time. Init runs after
// every configured collection exists but before any file is loaded, so a
// plugin may inspect collection configs but should not assume data is
// present yet.
type Plugin struct {
	Name string
	Init func(*Database) error
}

// Config configures a Database at construction time (§6).
type Config struct {
	Collections []CollectionConfig
	Plugins     []Plugin
	Clock       Clock
	Storage     StorageAdapter
}

// Database is the root handle: a named registry of collections plus the
// shared services (clock, storage adapter, relationship index for cascade
// fan-out) they all draw on. It is the factory this repository builds in
// place of the teacher's per-collection NewStorage constructor, scaled up
// to a multi-collection registry — see collection.go's doc comment.
type Database struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	order       []string
	clock       Clock
	storage     StorageAdapter

	// dependents maps a target collection name to every Relationship (and
	// its owning collection) whose Kind is RelRef and whose Target is that
	// name — the reverse index cascade.go walks on delete.
	dependents map[string][]dependentRef
}

type dependentRef struct {
	owner *Collection
	rel   Relationship
}

// Open constructs a Database from cfg, registers every collection, wires
// the relationship index, runs plugin Init hooks, then loads each
// collection's bound file (§4.11) if one is configured.
func Open(cfg Config) (*Database, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}
	storage := cfg.Storage
	if storage == nil {
		storage = NewFSAdapter()
	}

	db := &Database{
		collections: make(map[string]*Collection),
		clock:       clock,
		storage:     storage,
		dependents:  make(map[string][]dependentRef),
	}

	for _, cc := range cfg.Collections {
		if _, exists := db.collections[cc.Name]; exists {
			return nil, &OperationError{Collection: cc.Name, Reason: "duplicate collection name in Config"}
		}
		col := newCollection(cc, db, clock)
		db.collections[cc.Name] = col
		db.order = append(db.order, cc.Name)
	}

	for _, col := range db.collections {
		for _, rel := range col.cfg.Relationships {
			if rel.Kind != RelRef {
				continue
			}
			db.dependents[rel.Target] = append(db.dependents[rel.Target], dependentRef{owner: col, rel: rel})
		}
	}

	seen := make(map[string]bool)
	for _, p := range cfg.Plugins {
		if seen[p.Name] {
			return nil, &PluginError{Plugin: p.Name, Reason: "registered more than once"}
		}
		seen[p.Name] = true
		if p.Init != nil {
			if err := p.Init(db); err != nil {
				return nil, &PluginError{Plugin: p.Name, Reason: err.Error()}
			}
		}
	}

	for _, name := range db.order {
		col := db.collections[name]
		if col.cfg.File.Path == "" {
			continue
		}
		if err := db.loadCollection(col); err != nil {
			return nil, err
		}
		col.writer = newDebouncedWriter(db, col)
		if col.cfg.WatchExternalChanges {
			fw, err := watchCollectionFile(db, col)
			if err != nil {
				return nil, err
			}
			col.watcher = fw
		}
	}

	return db, nil
}

// Close flushes every collection's pending debounced write and stops its
// external-change watcher, if any. It does not close the storage adapter
// (callers that opened their own Badger/Redis handles own their lifecycle).
func (db *Database) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var firstErr error
	for _, col := range db.collections {
		if col.watcher != nil {
			col.watcher.Close()
		}
		if col.writer != nil {
			if err := col.writer.Flush(); err != nil && firstErr == nil {
				firstErr = err
			}
			col.writer.Close()
		}
	}
	return firstErr
}

// Collection returns the named collection, or a *CollectionNotFoundError.
func (db *Database) Collection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	col, ok := db.collections[name]
	if !ok {
		return nil, &CollectionNotFoundError{Name: name}
	}
	return col, nil
}

// RegisterPlugin attaches a plugin after construction, immediately invoking
// its Init hook (SPEC_FULL.md §12.4 — deliberately minimal surface, see
// DESIGN.md's Open Question decision on the plugin surface).
func (db *Database) RegisterPlugin(p Plugin) error {
	if p.Init != nil {
		if err := p.Init(db); err != nil {
			return &PluginError{Plugin: p.Name, Reason: err.Error()}
		}
	}
	return nil
}

// peerExists implements fkResolver across the whole registry: looked up by
// collection name, then delegated to that collection's own peerExists.
func (db *Database) peerExists(targetCollection, id string) (exists bool, knownCollection bool) {
	db.mu.RLock()
	col, ok := db.collections[targetCollection]
	db.mu.RUnlock()
	if !ok {
		return false, false
	}
	return col.peerExists(id)
}

// dependentsOf returns every relationship (and its owning collection) that
// targets name, used by cascade.go's delete fan-out.
func (db *Database) dependentsOf(name string) []dependentRef {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.dependents[name]
}

func (db *Database) String() string {
	return fmt.Sprintf("proseql.Database{collections: %d}", len(db.collections))
}
