package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v3"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Query returns the decoded query string of the request. Values holding
// JSON objects, arrays, quoted strings or literals are decoded, repeated
// keys and keys ending in [] become lists, and a[b]=v nests. The sort
// object keeps the order of its keys. The map is built once per request
// and may be changed by policies before the handler reads it.
func Query(c fiber.Ctx) map[string]any {
	if q, ok := c.Locals(queryKey).(map[string]any); ok {
		return q
	}
	q := make(map[string]any)
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		setQueryValue(q, string(k), string(v))
	})
	c.Locals(queryKey, q)
	return q
}

func setQueryValue(dst map[string]any, key, raw string) {
	path := splitKey(key)
	value := decodeValue(path[0], raw)

	m := dst
	for i, seg := range path {
		last := i == len(path)-1
		if last {
			setLeaf(m, seg, value)
			return
		}
		if path[i+1] == "" {
			list, _ := m[seg].([]any)
			m[seg] = append(list, value)
			return
		}
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
}

func setLeaf(m map[string]any, key string, value any) {
	existing, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if list, isList := existing.([]any); isList {
		m[key] = append(list, value)
		return
	}
	m[key] = []any{existing, value}
}

// splitKey splits "a[b][]" into [a b ""]. A malformed key is kept whole.
func splitKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}
	path := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		path = append(path, rest[1:end])
		rest = rest[end+1:]
	}
	return path
}

func decodeValue(name, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	switch trimmed[0] {
	case '{':
		if name == "sort" {
			if d, ok := orderedObject(trimmed); ok {
				return d
			}
		}
	case '[', '"':
	default:
		if trimmed != "true" && trimmed != "false" && trimmed != "null" {
			return raw
		}
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	return v
}

// orderedObject decodes a flat JSON object into a bson.D in key order.
func orderedObject(raw string) (bson.D, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	var out bson.D
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		out = append(out, bson.E{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, false
	}
	return out, true
}
