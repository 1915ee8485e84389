package proseql

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/simonwjackson/proseql/serialize"
	"github.com/simonwjackson/proseql/storage"
)

// codecFor resolves a FileBinding's format, either the explicit override or
// the extension inferred from its path.
func codecFor(fb FileBinding) (serialize.Codec, string, error) {
	ext := fb.Format
	if ext == "" {
		ext = strings.TrimPrefix(filepath.Ext(fb.Path), ".")
	}
	codec, err := serialize.MustLookup(ext)
	if err != nil {
		return nil, ext, &UnsupportedFormatError{Format: ext}
	}
	return codec, ext, nil
}

// isLineDelimited reports whether ext names a one-entity-per-line format.
// Those formats have no header line to hold an inlined "_version" field, so
// their version metadata lives in a side-channel file instead (§6).
func isLineDelimited(ext string) bool {
	switch ext {
	case "jsonl", "ndjson", "prose":
		return true
	default:
		return false
	}
}

func versionSidecarPath(path string) string {
	return path + ".version"
}

// readSidecarVersion reads a line-delimited file's out-of-band version
// marker. 0, nil if none has ever been written.
func (db *Database) readSidecarVersion(path string) (int, error) {
	data, err := db.storage.Read(versionSidecarPath(path))
	if err == storage.ErrNotExist {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		return 0, nil
	}
	return v, nil
}

func (db *Database) writeSidecarVersion(path string, version int) error {
	return db.storage.Write(versionSidecarPath(path), []byte(strconv.Itoa(version)))
}

// decodeEnvelope turns a decoded envelope into (fileVersion, id->entity).
// Map-keyed formats carry "_version" and every other key directly as an id;
// line-delimited formats carry entities under "entities" and take their
// version from sidecarVersion instead.
func decodeEnvelope(ext string, envelope map[string]any, sidecarVersion int) (int, map[string]M) {
	if isLineDelimited(ext) {
		rawEntities, _ := envelope["entities"].([]any)
		entities := make(map[string]M, len(rawEntities))
		for _, re := range rawEntities {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			e := M(m)
			entities[e.ID()] = e
		}
		return sidecarVersion, entities
	}

	fileVersion := 0
	entities := make(map[string]M, len(envelope))
	for k, v := range envelope {
		if k == "_version" {
			if f, ok := toFloat64(v); ok {
				fileVersion = int(f)
			}
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entities[k] = M(m)
	}
	return fileVersion, entities
}

// encodeEnvelope is decodeEnvelope's inverse for the map-keyed shape:
// {"_version": N, "<id>": entity, ...}, with "_version" omitted when the
// collection declares no version at all (§6).
func encodeEnvelope(version int, snap map[string]M, ids []string) map[string]any {
	envelope := make(map[string]any, len(ids)+1)
	if version > 0 {
		envelope["_version"] = version
	}
	for _, id := range ids {
		envelope[id] = map[string]any(snap[id])
	}
	return envelope
}

// loadCollection reads col's bound file (if one exists yet), migrates it to
// the collection's configured version, and installs the result as the
// collection's initial state cell snapshot (§4.11, §6). A migrated file is
// rewritten immediately at its new version, same as the original load.
func (db *Database) loadCollection(col *Collection) error {
	codec, ext, err := codecFor(col.cfg.File)
	if err != nil {
		return err
	}

	data, err := db.storage.Read(col.cfg.File.Path)
	if err == storage.ErrNotExist {
		return nil
	}
	if err != nil {
		return &StorageError{Path: col.cfg.File.Path, Cause: err}
	}

	var envelope map[string]any
	if err := codec.Decode(data, &envelope); err != nil {
		return &SerializationError{Format: ext, Cause: err}
	}

	sidecarVersion := 0
	if isLineDelimited(ext) {
		sidecarVersion, err = db.readSidecarVersion(col.cfg.File.Path)
		if err != nil {
			return &StorageError{Path: versionSidecarPath(col.cfg.File.Path), Cause: err}
		}
	}

	fileVersion, entities := decodeEnvelope(ext, envelope, sidecarVersion)

	migrated, err := runMigrations(col.cfg.Name, col.cfg.Migrations, fileVersion, col.cfg.Version, entities)
	if err != nil {
		return err
	}
	if fileVersion < col.cfg.Version {
		for id, e := range migrated {
			decoded, derr := col.cfg.Schema.Decode(col.cfg.Name, e)
			if derr != nil {
				return &MigrationError{Collection: col.cfg.Name, FileVersion: fileVersion, ConfigVersion: col.cfg.Version, Cause: derr}
			}
			migrated[id] = decoded
		}
	}

	ids := make([]string, 0, len(migrated))
	for id := range migrated {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	col.state.replace(migrated, ids)
	for _, e := range migrated {
		col.index.observeInsert(e)
	}

	if fileVersion != col.cfg.Version {
		return db.saveCollection(col)
	}
	return nil
}

// runMigrations applies every registered Migration in order, one version
// step at a time, until entities are at configVersion (§4.11, §6).
func runMigrations(collection string, migrations []Migration, fileVersion, configVersion int, entities map[string]M) (map[string]M, error) {
	if fileVersion > configVersion {
		return nil, &MigrationError{
			Collection: collection, FileVersion: fileVersion, ConfigVersion: configVersion,
			Cause: fmt.Errorf("file version is newer than the configured version"),
		}
	}

	byFrom := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byFrom[m.FromVersion] = m
	}

	version := fileVersion
	for version < configVersion {
		mig, ok := byFrom[version]
		if !ok {
			return nil, &MigrationError{
				Collection: collection, FileVersion: fileVersion, ConfigVersion: configVersion,
				Cause: fmt.Errorf("no migration registered from version %d", version),
			}
		}
		next := make(map[string]M, len(entities))
		for id, e := range entities {
			ne, err := mig.Up(e)
			if err != nil {
				return nil, &MigrationError{
					Collection: collection, FileVersion: fileVersion, ConfigVersion: configVersion, Cause: err,
				}
			}
			next[id] = ne
		}
		entities = next
		version++
	}
	return entities, nil
}

// saveCollection serializes col's full current snapshot and writes it
// through the database's storage adapter. Entities are written in sorted
// id order so the on-disk file's diffs are stable across saves that didn't
// change the set of ids — mirroring the human-readable-file invariant (§1).
// Map-keyed formats get the flat {"_version", "<id>": entity, ...} shape
// directly; line-delimited formats keep their version in a sidecar file
// next to the data file.
func (db *Database) saveCollection(col *Collection) error {
	if col.cfg.File.Path == "" {
		return nil
	}
	codec, ext, err := codecFor(col.cfg.File)
	if err != nil {
		return err
	}

	snap := col.state.snapshot()
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var envelope map[string]any
	if isLineDelimited(ext) {
		entities := make([]any, 0, len(ids))
		for _, id := range ids {
			entities = append(entities, map[string]any(snap[id]))
		}
		envelope = map[string]any{"entities": entities}
	} else {
		envelope = encodeEnvelope(col.cfg.Version, snap, ids)
	}

	data, err := codec.Encode(envelope)
	if err != nil {
		return &SerializationError{Format: ext, Cause: err}
	}
	if err := db.storage.Write(col.cfg.File.Path, data); err != nil {
		return &StorageError{Path: col.cfg.File.Path, Cause: err}
	}

	if isLineDelimited(ext) {
		if err := db.writeSidecarVersion(col.cfg.File.Path, col.cfg.Version); err != nil {
			return &StorageError{Path: versionSidecarPath(col.cfg.File.Path), Cause: err}
		}
	}
	return nil
}

// loadCollectionsFromFile loads every collection in cols from one shared
// file: a top-level map keyed by collection name, each value itself a
// per-collection map-keyed-by-id sub-envelope with its own "_version"
// (§4.11). If any collection's file version differs from its configured
// version — migrated, or absent from the file entirely — the whole file is
// rewritten at every collection's target version in one shot. Restricted to
// map-keyed (non-line-delimited) formats: a line-delimited file has no room
// for nested per-collection sections.
func (db *Database) loadCollectionsFromFile(path string, cols []*Collection) error {
	if len(cols) == 0 {
		return nil
	}
	codec, ext, err := codecFor(cols[0].cfg.File)
	if err != nil {
		return err
	}
	if isLineDelimited(ext) {
		return &UnsupportedFormatError{Format: ext}
	}

	data, err := db.storage.Read(path)
	missing := err == storage.ErrNotExist
	if err != nil && !missing {
		return &StorageError{Path: path, Cause: err}
	}

	var top map[string]any
	if !missing {
		if err := codec.Decode(data, &top); err != nil {
			return &SerializationError{Format: ext, Cause: err}
		}
	}

	needsRewrite := missing
	for _, col := range cols {
		var sub map[string]any
		if raw, ok := top[col.cfg.Name]; ok {
			sub, _ = raw.(map[string]any)
		}
		fileVersion, entities := decodeEnvelope(ext, sub, 0)

		migrated, err := runMigrations(col.cfg.Name, col.cfg.Migrations, fileVersion, col.cfg.Version, entities)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(migrated))
		for id := range migrated {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		col.state.replace(migrated, ids)
		for _, e := range migrated {
			col.index.observeInsert(e)
		}

		if fileVersion != col.cfg.Version {
			needsRewrite = true
		}
	}

	if needsRewrite {
		return db.saveCollectionsToFile(path, cols)
	}
	return nil
}

// saveCollectionsToFile bundles every collection in cols into one shared
// file, each collection nested under its own name key with its own
// "_version" sub-envelope (§4.11). Restricted to map-keyed formats, same as
// loadCollectionsFromFile.
func (db *Database) saveCollectionsToFile(path string, cols []*Collection) error {
	if len(cols) == 0 {
		return nil
	}
	codec, ext, err := codecFor(cols[0].cfg.File)
	if err != nil {
		return err
	}
	if isLineDelimited(ext) {
		return &UnsupportedFormatError{Format: ext}
	}

	top := make(map[string]any, len(cols))
	for _, col := range cols {
		snap := col.state.snapshot()
		ids := make([]string, 0, len(snap))
		for id := range snap {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		top[col.cfg.Name] = encodeEnvelope(col.cfg.Version, snap, ids)
	}

	data, err := codec.Encode(top)
	if err != nil {
		return &SerializationError{Format: ext, Cause: err}
	}
	if err := db.storage.Write(path, data); err != nil {
		return &StorageError{Path: path, Cause: err}
	}
	return nil
}
