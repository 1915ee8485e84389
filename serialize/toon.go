package serialize

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// toonCodec implements a small, indentation-delimited "token-oriented
// object notation": each line is either "key:" (opening a nested block),
// "key: <json-scalar>", "key: []" (empty list), or, inside a list block, a
// "- " prefixed item. No Go library for this format exists anywhere in the
// retrieved example pack or the wider ecosystem at the time this was
// written, so it is hand-rolled against the stdlib — see DESIGN.md.
type toonCodec struct{}

func (toonCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toonWriteBlock(&buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toonWriteBlock(buf *bytes.Buffer, v any, indent int) error {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("serialize: toon codec requires a map[string]any at the top level, got %T", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pad := strings.Repeat("  ", indent)
	for _, k := range keys {
		if err := toonWriteField(buf, pad, k, m[k], indent); err != nil {
			return err
		}
	}
	return nil
}

func toonWriteField(buf *bytes.Buffer, pad, key string, val any, indent int) error {
	switch tv := val.(type) {
	case map[string]any:
		fmt.Fprintf(buf, "%s%s:\n", pad, key)
		return toonWriteBlock(buf, tv, indent+1)
	case []any:
		if len(tv) == 0 {
			fmt.Fprintf(buf, "%s%s: []\n", pad, key)
			return nil
		}
		fmt.Fprintf(buf, "%s%s:\n", pad, key)
		itemPad := strings.Repeat("  ", indent+1)
		for _, item := range tv {
			if m, ok := item.(map[string]any); ok {
				keys := make([]string, 0, len(m))
				for k := range m {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for i, k := range keys {
					if i == 0 {
						fmt.Fprintf(buf, "%s- ", itemPad)
						if err := toonWriteInlineOrNested(buf, itemPad+"  ", k, m[k], indent+2); err != nil {
							return err
						}
						continue
					}
					if err := toonWriteField(buf, itemPad+"  ", k, m[k], indent+2); err != nil {
						return err
					}
				}
			} else {
				scalar, err := toonScalar(item)
				if err != nil {
					return err
				}
				fmt.Fprintf(buf, "%s- %s\n", itemPad, scalar)
			}
		}
		return nil
	default:
		scalar, err := toonScalar(val)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s%s: %s\n", pad, key, scalar)
		return nil
	}
}

// toonWriteInlineOrNested writes the first field of a list item inline
// after "- ", without repeating the item's leading pad.
func toonWriteInlineOrNested(buf *bytes.Buffer, pad, key string, val any, indent int) error {
	switch tv := val.(type) {
	case map[string]any, []any:
		fmt.Fprintf(buf, "%s:\n", key)
		return toonWriteField(buf, pad, key, tv, indent)
	default:
		scalar, err := toonScalar(val)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "%s: %s\n", key, scalar)
		return nil
	}
}

func toonScalar(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (toonCodec) Decode(data []byte, out any) error {
	ptr, ok := out.(*map[string]any)
	if !ok {
		return fmt.Errorf("serialize: toon codec requires *map[string]any, got %T", out)
	}
	lines := splitLines(data)
	result := map[string]any{}
	_, err := toonParseBlock(lines, 0, 0, result)
	if err != nil {
		return err
	}
	*ptr = result
	return nil
}

type toonLine struct {
	indent int
	text   string
}

func splitLines(data []byte) []toonLine {
	var out []toonLine
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		indent := 0
		for indent*2 < len(raw) && raw[indent*2:indent*2+2] == "  " {
			indent++
		}
		out = append(out, toonLine{indent: indent, text: strings.TrimSpace(raw)})
	}
	return out
}

// toonParseBlock consumes lines starting at i that belong to the block at
// the given indent, filling dst, and returns the index of the first line
// not consumed.
func toonParseBlock(lines []toonLine, i, indent int, dst map[string]any) (int, error) {
	for i < len(lines) {
		ln := lines[i]
		if ln.indent < indent {
			break
		}
		if ln.indent > indent {
			return i, fmt.Errorf("serialize: toon codec: unexpected indent at %q", ln.text)
		}
		key, rest, hasColon := strings.Cut(ln.text, ":")
		if !hasColon {
			return i, fmt.Errorf("serialize: toon codec: malformed line %q", ln.text)
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimSpace(rest)

		switch {
		case rest == "" :
			// nested block or list on following, deeper-indented lines.
			if i+1 < len(lines) && lines[i+1].indent == indent+1 && strings.HasPrefix(lines[i+1].text, "- ") {
				items, next, err := toonParseList(lines, i+1, indent+1)
				if err != nil {
					return i, err
				}
				dst[key] = items
				i = next
				continue
			}
			nested := map[string]any{}
			next, err := toonParseBlock(lines, i+1, indent+1, nested)
			if err != nil {
				return i, err
			}
			dst[key] = nested
			i = next
		case rest == "[]":
			dst[key] = []any{}
			i++
		default:
			v, err := toonParseScalar(rest)
			if err != nil {
				return i, err
			}
			dst[key] = v
			i++
		}
	}
	return i, nil
}

func toonParseList(lines []toonLine, i, indent int) ([]any, int, error) {
	var items []any
	for i < len(lines) {
		ln := lines[i]
		if ln.indent != indent || !strings.HasPrefix(ln.text, "- ") {
			break
		}
		field := strings.TrimPrefix(ln.text, "- ")
		key, rest, hasColon := strings.Cut(field, ":")
		if !hasColon {
			// bare scalar list item
			v, err := toonParseScalar(field)
			if err != nil {
				return nil, i, err
			}
			items = append(items, v)
			i++
			continue
		}
		key = strings.TrimSpace(key)
		rest = strings.TrimSpace(rest)
		item := map[string]any{}
		if rest == "" {
			nested := map[string]any{}
			next, err := toonParseBlock(lines, i+1, indent+2, nested)
			if err != nil {
				return nil, i, err
			}
			item[key] = nested
			i = next
		} else {
			v, err := toonParseScalar(rest)
			if err != nil {
				return nil, i, err
			}
			item[key] = v
			i++
		}
		// remaining fields of this item, at indent+1 (one deeper than the
		// "- " marker itself).
		next, err := toonParseBlock(lines, i, indent+1, item)
		if err != nil {
			return nil, i, err
		}
		i = next
		items = append(items, item)
	}
	return items, i, nil
}

func toonParseScalar(s string) (any, error) {
	if s == "null" {
		return nil, nil
	}
	if s == "true" {
		return true, nil
	}
	if s == "false" {
		return false, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) {
		return n, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, nil
	}
	return s, nil
}

func init() {
	Register(toonCodec{}, "toon")
}
