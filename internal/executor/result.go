package executor

import (
	"bytes"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ExecutionResult represents the result of executing a GraphQL request.
// It always serializes with all three keys present; a nil Errors list is
// written as an empty array.
type ExecutionResult struct {
	Data       *OrderedMap
	Errors     gqlerror.List
	Extensions map[string]any

	// OperationType is the type of the executed operation ("query",
	// "mutation"), empty when execution stopped before one was selected.
	OperationType string
}

func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	errs := r.Errors
	if errs == nil {
		errs = gqlerror.List{}
	}
	return json.Marshal(struct {
		Data       *OrderedMap    `json:"data"`
		Errors     gqlerror.List  `json:"errors"`
		Extensions map[string]any `json:"extensions"`
	}{r.Data, errs, r.Extensions})
}

// Outcome is the single value delivered by ExecuteAsync. Err is set only for
// engine failures; GraphQL errors are reported inside Result.
type Outcome struct {
	Result *ExecutionResult
	Err    error
}

// OrderedMap is a response object that remembers insertion order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func NewOrderedMap(capacity int) *OrderedMap {
	return &OrderedMap{keys: make([]string, 0, capacity), values: make(map[string]any, capacity)}
}

// Set stores value under key, keeping the position of an existing key.
func (m *OrderedMap) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// ToMap converts m and every nested OrderedMap into plain maps.
func (m *OrderedMap) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plain(m.values[k])
	}
	return out
}

func plain(v any) any {
	switch v := v.(type) {
	case *OrderedMap:
		if v == nil {
			return nil
		}
		return v.ToMap()
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = plain(v[i])
		}
		return out
	default:
		return v
	}
}

func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
