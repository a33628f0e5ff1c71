package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer holds a submitted answer or an answer key. Single values are stored
// as a one-element slice; multi-select values keep every element.
type Answer []string

func (a *Answer) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*a = nil
		return nil
	}
	if list, ok := raw.([]interface{}); ok {
		out := make(Answer, 0, len(list))
		for _, item := range list {
			s, err := scalarString(item)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		*a = out
		return nil
	}
	s, err := scalarString(raw)
	if err != nil {
		return err
	}
	*a = Answer{s}
	return nil
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch len(a) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// Single returns the first value, or "" when empty.
func (a Answer) Single() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

func scalarString(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("unsupported answer value %T", v)
}
