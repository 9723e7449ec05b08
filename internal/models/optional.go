package models

import (
	"bytes"
	"encoding/json"
)

// Optional holds a JSON field that may be absent, null, or set to a value.
// Set is true whenever the key appeared in the decoded object; Value is nil
// when the key carried an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional carrying v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns an Optional that was sent as an explicit null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull reports whether the field was sent as an explicit null
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// UnmarshalJSON is only invoked by encoding/json when the key is present
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON writes the value or null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}
