// Package storage provides the pluggable persistence-target abstraction a
// ProseQL collection writes its mirrored file through. Adapter is
// deliberately narrow — whole-blob read/write/remove — because collections
// always serialize their entire state cell in one shot (§4.11); there is no
// partial-write or streaming path to support.
package storage

import "errors"

// ErrNotExist is returned by Read when path has never been written.
var ErrNotExist = errors.New("storage: path does not exist")

// Adapter is the capability a collection's persistence layer depends on.
// Every method must be safe for concurrent use.
type Adapter interface {
	// Read returns the full contents at path, or ErrNotExist if absent.
	Read(path string) ([]byte, error)
	// Write atomically replaces the full contents at path.
	Write(path string, data []byte) error
	// Remove deletes path. Removing an absent path is not an error.
	Remove(path string) error
	// Exists reports whether path currently holds data.
	Exists(path string) (bool, error)
	// EnsureDir prepares whatever containing scope path needs before a
	// Write can succeed. Adapters with no directory concept (Badger, Mem)
	// treat this as a no-op.
	EnsureDir(path string) error
	// Watch observes path for changes made outside this Adapter's own
	// Write/Remove calls and invokes onChange, debounced at the adapter's
	// discretion, for each coalesced burst. The returned stop func tears
	// down the watch; adapters with no external-change source of their own
	// (Badger, Mem) return a no-op stop and a nil error.
	Watch(path string, onChange func()) (stop func(), err error)
}
