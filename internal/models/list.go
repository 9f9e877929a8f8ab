package models

import (
	"bytes"
	"encoding/json"
)

// List decodes either a bare JSON array or a paginated {"results": [...]}
// envelope. Any other shape decodes to an empty list.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*l = List[T]{}
		return nil
	}
	switch data[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
	case '{':
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		var items []T
		if bytes.HasPrefix(bytes.TrimSpace(page.Results), []byte("[")) {
			if err := json.Unmarshal(page.Results, &items); err != nil {
				return err
			}
		}
		*l = items
	default:
		*l = List[T]{}
	}
	if *l == nil {
		*l = List[T]{}
	}
	return nil
}
