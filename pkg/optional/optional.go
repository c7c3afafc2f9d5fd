// Package optional provides a typed "maybe present" value for partial updates.
// A field decoded from JSON is Set when its key appears in the body, even if
// the value is null or empty.
package optional

import (
	"bytes"
	"encoding/json"
)

type Value[T any] struct {
	Val T
	Set bool
}

func Of[T any](v T) Value[T] {
	return Value[T]{Val: v, Set: true}
}

func (v Value[T]) IsSet() bool { return v.Set }

func (v Value[T]) Any() any { return v.Val }

func (v *Value[T]) UnmarshalJSON(data []byte) error {
	v.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		v.Val = zero
		return nil
	}
	return json.Unmarshal(data, &v.Val)
}

func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.Set {
		return []byte("null"), nil
	}
	return json.Marshal(v.Val)
}

// Field is the type-erased view used to walk a partial-update object.
type Field interface {
	IsSet() bool
	Any() any
}

// Columns collects the set fields of a column→field map.
func Columns(fields map[string]Field) map[string]any {
	out := make(map[string]any, len(fields))
	for column, field := range fields {
		if field != nil && field.IsSet() {
			out[column] = field.Any()
		}
	}
	return out
}
