package serialize

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// linesCodec implements line-delimited JSON: one entity per line, with no
// envelope line at all. It expects v (or out) to be shaped like
// map[string]any{"entities": [...]}; any other envelope key (e.g.
// "_version") is the caller's concern to carry in a side channel, since a
// line-delimited file has no header line to hold it in.
type linesCodec struct{}

func (linesCodec) Encode(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("serialize: lines codec requires a map[string]any envelope, got %T", v)
	}
	entities, _ := m["entities"].([]any)

	var buf bytes.Buffer
	for _, e := range entities {
		line, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (linesCodec) Decode(data []byte, out any) error {
	ptr, ok := out.(*map[string]any)
	if !ok {
		return fmt.Errorf("serialize: lines codec requires *map[string]any, got %T", out)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var entities []any
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e any
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		entities = append(entities, e)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	*ptr = map[string]any{"entities": entities}
	return nil
}

func init() {
	Register(linesCodec{}, "jsonl", "ndjson", "prose")
}
