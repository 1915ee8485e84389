package proseql

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simonwjackson/proseql/internal/corelog"
)

// RelationKind distinguishes a foreign-key-holding relationship from its
// inverse (§4.2 relationship declarations).
type RelationKind int

const (
	// RelRef marks this collection as holding the foreign key: the declared
	// field stores a target id and is subject to FK validation.
	RelRef RelationKind = iota
	// RelInverse marks this collection as the target of another
	// collection's RelRef — it carries no FK field itself; populate() walks
	// it from this side, and create directives ($create, $connect,
	// $connectOrCreate) through it write the peer's back-reference field.
	RelInverse
)

// CascadeOption selects what happens to a relationship's dependents when
// the referenced entity is deleted (§4.7).
type CascadeOption int

const (
	// CascadeRestrict aborts the delete if any dependent exists.
	CascadeRestrict CascadeOption = iota
	// CascadeDelete hard-deletes every dependent (recursively, in the
	// dependent collection's own commit, before the parent's commit).
	CascadeDelete
	// CascadeSoft soft-deletes every dependent (requires the dependent
	// schema to declare SoftDelete).
	CascadeSoft
	// CascadeSetNull nulls the dependent's FK field instead of deleting it.
	CascadeSetNull
	// CascadePreserve leaves dependents untouched.
	CascadePreserve
)

// Relationship declares one named link between this collection and another.
type Relationship struct {
	Name     string
	Target   string
	Kind     RelationKind
	Field    string
	OnDelete CascadeOption
}

// Migration upgrades a collection's persisted entities from one version to
// the next. Migrations are applied in order, one version step at a time,
// during load() (§4.11, §6).
type Migration struct {
	FromVersion int
	Up          func(M) (M, error)
}

// FileBinding names the file a collection mirrors to disk and the format
// that file is serialized in (by registered extension, or an explicit
// override).
type FileBinding struct {
	Path   string
	Format string // empty: inferred from Path's extension
}

// CollectionConfig is the declarative description of a collection, supplied
// once at Database construction and immutable for the collection's lifetime.
type CollectionConfig struct {
	Name          string
	Schema        *Schema
	Unique        []UniqueConstraint
	HashIndexes   []string
	Relationships []Relationship
	File          FileBinding
	Version       int
	Migrations    []Migration
	// WatchExternalChanges enables a watch on File.Path through the
	// database's StorageAdapter so edits made outside this process (by a
	// human, or another process) are picked up and reloaded into the state
	// cell (C13). The filesystem adapter backs it with fsnotify; the
	// in-memory and Badger adapters never report a change.
	WatchExternalChanges bool
}

// Collection is a single named, schema-bound, file-mirrored document store
// within a Database. All mutation goes through commit, which serializes
// writes with a single mutex and performs the authoritative, commit-time
// re-validation of uniqueness and foreign-key constraints against a fresh
// snapshot — this repository's in-process analogue of the teacher's
// MongoDB version-field optimistic-concurrency retry loop.
type Collection struct {
	cfg   CollectionConfig
	db    *Database
	state *cell
	index *indexManager
	clock Clock

	writer  *debouncedWriter
	bus     *Bus
	watcher *fileWatcher

	mu sync.Mutex
}

func newCollection(cfg CollectionConfig, db *Database, clock Clock) *Collection {
	return &Collection{
		cfg:   cfg,
		db:    db,
		state: newCell(),
		index: newIndexManager(cfg.Unique, cfg.HashIndexes),
		clock: clock,
		bus:   newBus(cfg.Name),
	}
}

func (c *Collection) Name() string { return c.cfg.Name }

// snapshot returns the collection's current id->entity map.
func (c *Collection) snapshot() map[string]M {
	return c.state.snapshot()
}

// get returns a single live-view entity by id, including soft-deleted rows
// — callers that must exclude soft-deleted rows (query's default) filter
// separately.
func (c *Collection) get(id string) (M, bool) {
	return c.state.get(id)
}

// peerExists implements fkResolver against this collection, used when some
// other collection's FK field targets this one.
func (c *Collection) peerExists(id string) (exists bool, knownCollection bool) {
	e, ok := c.get(id)
	if !ok {
		return false, true
	}
	if _, soft := e.DeletedAt(); soft {
		return false, true
	}
	return true, true
}

// commitResult is produced by a commit closure: the entities it wants
// installed (replacing or removing ids in the snapshot) and the change
// events to publish once the new snapshot is live.
type commitResult struct {
	puts    []M
	deletes []string
	events  []ChangeEvent
}

// commit serializes one mutation against the collection's authoritative
// state. fn receives a frozen, read-only snapshot and must perform every
// validation (including the authoritative unique/FK re-check — see
// validate.go's checkUniqueAgainst/checkForeignKeys) against exactly that
// snapshot before returning its commitResult. Because fn runs with mu held,
// the snapshot it sees can never be invalidated by a racing writer — this
// is what makes the optimistic pre-check a caller might have already done
// outside the lock safe to re-run authoritatively in here: any conflict
// introduced concurrently is necessarily visible in the snapshot fn
// receives.
func (c *Collection) commit(fn func(snap map[string]M) (*commitResult, error)) (*commitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.snapshot()
	res, err := fn(snap)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	next := cloneEntityMap(snap)
	insertedIDs := make([]string, 0, len(res.puts))
	for _, e := range res.puts {
		id := e.ID()
		if old, existed := next[id]; existed {
			c.index.observeReplace(old, e)
		} else {
			c.index.observeInsert(e)
			insertedIDs = append(insertedIDs, id)
		}
		next[id] = e
	}
	for _, id := range res.deletes {
		if old, existed := next[id]; existed {
			c.index.observeDelete(old)
			delete(next, id)
		}
	}
	c.state.store(next, insertedIDs)

	if c.writer != nil {
		c.writer.touch()
	}
	for _, ev := range res.events {
		if ev.Op == ChangeUpdate && ev.Before != nil && ev.After != nil && ev.Patch == nil {
			if patch, perr := diffEntities(ev.Before, ev.After); perr == nil {
				ev.Patch = patch
			}
		}
		c.bus.publish(ev)
	}

	metricsCommitsTotal.WithLabelValues(c.cfg.Name).Inc()
	metricsCommitPuts.WithLabelValues(c.cfg.Name).Add(float64(len(res.puts)))
	metricsCommitDeletes.WithLabelValues(c.cfg.Name).Add(float64(len(res.deletes)))

	corelog.Debug("commit applied",
		zap.String("collection", c.cfg.Name),
		zap.Int("puts", len(res.puts)),
		zap.Int("deletes", len(res.deletes)),
	)
	return res, nil
}

// newID generates a fresh random (UUID) entity id, used by create() when
// the candidate entity carries no id of its own; a caller-supplied id is
// kept as given.
func newID() string {
	return uuid.NewString()
}
