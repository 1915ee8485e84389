package proseql

import (
	"encoding/base64"
	"encoding/json"
)

// cursorValue is the decoded form of a pagination cursor: the key field's
// value at that position plus the id tiebreak (§4.8 step 4).
type cursorValue struct {
	Key any    `json:"k"`
	ID  string `json:"id"`
}

// encodeCursor builds an opaque cursor for e's position under keyField: a
// base64 envelope so callers never depend on its internal shape.
func encodeCursor(e M, keyField string) string {
	data, err := json.Marshal(cursorValue{Key: e[keyField], ID: e.ID()})
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// decodeCursor reverses encodeCursor; an empty or malformed cursor decodes
// to (zero, false) rather than erroring — callers treat that as "no
// cursor".
func decodeCursor(raw string) (cursorValue, bool) {
	if raw == "" {
		return cursorValue{}, false
	}
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return cursorValue{}, false
	}
	var cv cursorValue
	if err := json.Unmarshal(data, &cv); err != nil {
		return cursorValue{}, false
	}
	return cv, true
}
