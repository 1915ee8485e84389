package serialize

import "github.com/hjson/hjson-go/v4"

type hjsonCodec struct{}

func (hjsonCodec) Encode(v any) ([]byte, error) { return hjson.Marshal(v) }
func (hjsonCodec) Decode(data []byte, out any) error {
	return hjson.Unmarshal(data, out)
}

func init() {
	Register(hjsonCodec{}, "hjson")
}
