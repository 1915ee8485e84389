// Package serialize provides the extension-keyed codec registry a
// collection's file binding resolves its format through (C4).
package serialize

import (
	"fmt"
	"strings"
	"sync"
)

// Codec encodes/decodes a collection's document envelope (for most formats
// a map of entity id to entity plus a "_version" key; for the
// line-delimited formats an "entities" list — see the root package's
// persistence.go) to and from a specific textual format.
type Codec interface {
	// Encode serializes v (always a map[string]any shaped envelope) to bytes.
	Encode(v any) ([]byte, error)
	// Decode populates out (always a *map[string]any) from data.
	Decode(data []byte, out any) error
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Codec)
)

// Register associates a codec with one or more file extensions (without
// the leading dot, lowercase — e.g. "json", "yaml", "yml"). Later
// registrations for the same extension replace earlier ones, so a caller
// can swap in a custom codec for a built-in format.
func Register(codec Codec, extensions ...string) {
	mu.Lock()
	defer mu.Unlock()
	for _, ext := range extensions {
		registry[strings.ToLower(ext)] = codec
	}
}

// Lookup returns the codec registered for ext (no leading dot), or
// ok=false if none is registered.
func Lookup(ext string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return c, ok
}

// unsupportedf builds the error MustLookup returns when an extension has no
// registered codec.
func unsupportedf(ext string) error {
	return fmt.Errorf("serialize: no codec registered for extension %q", ext)
}

// MustLookup is Lookup but returning an error message instead of ok=false,
// for callers that already know they want to surface failure as an error.
func MustLookup(ext string) (Codec, error) {
	c, ok := Lookup(ext)
	if !ok {
		return nil, unsupportedf(ext)
	}
	return c, nil
}
