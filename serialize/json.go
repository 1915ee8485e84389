package serialize

import "encoding/json"

type jsonCodec struct{ indent bool }

func (c jsonCodec) Encode(v any) ([]byte, error) {
	if c.indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func (c jsonCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

func init() {
	Register(jsonCodec{indent: true}, "json")
}
