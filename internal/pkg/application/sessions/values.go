package sessions

import (
	"encoding/json"
	"strings"
)

// Values holds decoded session contents. Keys may address nested values
// using dot separated paths such as "user.name".
type Values map[string]any

func split(path string) []string {
	return strings.Split(path, ".")
}

func (v Values) Get(path string) (any, bool) {
	var current any = map[string]any(v)

	for _, k := range split(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[k]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func (v Values) Check(path string) bool {
	_, ok := v.Get(path)
	return ok
}

// Set stores value at path, replacing any non map value along the way
func (v Values) Set(path string, value any) {
	keys := split(path)
	m := map[string]any(v)

	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}

	m[keys[len(keys)-1]] = value
}

func (v Values) Delete(path string) bool {
	keys := split(path)
	m := map[string]any(v)

	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			return false
		}
		m = next
	}

	last := keys[len(keys)-1]
	if _, ok := m[last]; !ok {
		return false
	}

	delete(m, last)
	return true
}

func (v Values) Clear() {
	for k := range v {
		delete(v, k)
	}
}

func decodeValues(data []byte) (Values, error) {
	values := Values{}
	if len(data) == 0 {
		return values, nil
	}

	err := json.Unmarshal(data, &values)
	return values, err
}

func (v Values) encode() ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}
