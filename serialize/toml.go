package serialize

import "github.com/pelletier/go-toml/v2"

type tomlCodec struct{}

func (tomlCodec) Encode(v any) ([]byte, error) { return toml.Marshal(v) }
func (tomlCodec) Decode(data []byte, out any) error {
	return toml.Unmarshal(data, out)
}

func init() {
	Register(tomlCodec{}, "toml")
}
