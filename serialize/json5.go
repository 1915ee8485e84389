package serialize

import json5 "github.com/yosuke-furukawa/json5/encoding/json5"

// json5Codec also serves the "jsonc" extension: JSON5's comment and
// trailing-comma tolerance is a superset of JSONC's, so one codec covers
// both without a second dependency.
type json5Codec struct{}

func (json5Codec) Encode(v any) ([]byte, error) { return json5.Marshal(v) }
func (json5Codec) Decode(data []byte, out any) error {
	return json5.Unmarshal(data, out)
}

func init() {
	Register(json5Codec{}, "json5", "jsonc")
}
