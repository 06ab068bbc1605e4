package inference

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseArgs turns key=value pairs into tool arguments. Values are typed
// by the tool's input schema when it names the property; otherwise a
// value that parses as JSON (numbers, booleans, objects, arrays) keeps
// that type and anything else stays a string.
func ParseArgs(pairs []string, schema json.RawMessage) (map[string]any, error) {
	types := propertyTypes(schema)
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		v, err := convert(value, types[key])
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func convert(value, typ string) (any, error) {
	switch typ {
	case "string":
		return value, nil
	case "integer":
		return strconv.ParseInt(value, 10, 64)
	case "number":
		return strconv.ParseFloat(value, 64)
	case "boolean":
		return strconv.ParseBool(value)
	case "array", "object":
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("expected JSON %s", typ)
		}
		return v, nil
	}
	var v any
	if json.Unmarshal([]byte(value), &v) == nil && v != nil {
		return v, nil
	}
	return value, nil
}

func propertyTypes(schema json.RawMessage) map[string]string {
	var s struct {
		Properties map[string]struct {
			Type any `json:"type"`
		} `json:"properties"`
	}
	if len(schema) == 0 || json.Unmarshal(schema, &s) != nil {
		return nil
	}
	out := make(map[string]string, len(s.Properties))
	for name, p := range s.Properties {
		switch t := p.Type.(type) {
		case string:
			out[name] = t
		case []any:
			// ["string","null"] style unions: first non-null wins.
			for _, v := range t {
				if str, ok := v.(string); ok && str != "null" {
					out[name] = str
					break
				}
			}
		}
	}
	return out
}
