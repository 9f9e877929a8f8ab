package errors

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// ParseMessage reduces an API error body to one human-readable sentence.
//
// Preference order: a bare JSON string, "detail", "error", the first entry of
// an "errors" object, the first member of the body itself, then fallback.
// Field entries render as "field: message". Key order is the server's.
func ParseMessage(body []byte, fallback string) string {
	msg, _ := parseBody(body, fallback)
	return msg
}

type member struct {
	key string
	raw json.RawMessage
}

func parseBody(body []byte, fallback string) (string, []FieldError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallback, nil
	}

	switch trimmed[0] {
	case '"':
		if s, ok := firstText(trimmed); ok {
			return s, nil
		}
		return fallback, nil
	case '{':
	default:
		return fallback, nil
	}

	members, ok := orderedMembers(trimmed)
	if !ok {
		return fallback, nil
	}

	for _, key := range []string{"detail", "error"} {
		if m, found := lookup(members, key); found {
			if s, ok := firstText(m.raw); ok {
				return s, nil
			}
		}
	}

	if m, found := lookup(members, "errors"); found {
		if nested, ok := orderedMembers(bytes.TrimSpace(m.raw)); ok {
			if fields := fieldErrors(nested); len(fields) > 0 {
				return render(fields[0]), fields
			}
		}
	}

	if fields := fieldErrors(members); len(fields) > 0 {
		return render(fields[0]), fields
	}
	return fallback, nil
}

// render formats one field error. Form-wide errors carry no field prefix.
func render(f FieldError) string {
	if f.Field == "non_field_errors" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

func fieldErrors(members []member) []FieldError {
	var out []FieldError
	for _, m := range members {
		if m.key == "detail" || m.key == "error" || m.key == "errors" {
			continue
		}
		if s, ok := firstText(m.raw); ok {
			out = append(out, FieldError{Field: m.key, Message: s})
		}
	}
	return out
}

func lookup(members []member, key string) (member, bool) {
	for _, m := range members {
		if m.key == key {
			return m, true
		}
	}
	return member{}, false
}

// orderedMembers decodes the top level of a JSON object keeping key order.
func orderedMembers(raw []byte) ([]member, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}

	var out []member
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := kt.(string)
		if !ok {
			return nil, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		out = append(out, member{key: key, raw: v})
	}
	return out, true
}

// firstText extracts the first non-empty message from a string, number, array
// or object value.
func firstText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case 'n':
		return "", false
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", false
		}
		for _, it := range items {
			if s, ok := firstText(it); ok {
				return s, true
			}
		}
		return "", false
	case '{':
		members, ok := orderedMembers(raw)
		if !ok {
			return "", false
		}
		for _, m := range members {
			if s, ok := firstText(m.raw); ok {
				return s, true
			}
		}
		return "", false
	default:
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return "", false
		}
		s := cast.ToString(v)
		return s, s != ""
	}
}
