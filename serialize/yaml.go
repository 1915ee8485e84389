package serialize

import "gopkg.in/yaml.v3"

type yamlCodec struct{}

func (yamlCodec) Encode(v any) ([]byte, error) { return yaml.Marshal(v) }
func (yamlCodec) Decode(data []byte, out any) error {
	return yaml.Unmarshal(data, out)
}

func init() {
	Register(yamlCodec{}, "yaml", "yml")
}
