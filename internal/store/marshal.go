package store

import (
	"fmt"

	"github.com/roach88/runproof/internal/canon"
)

// marshalValue converts a Value to deterministic JSON TEXT for storage.
// A nil value is stored as null.
func marshalValue(v canon.Value) (string, error) {
	if v == nil {
		v = canon.Null{}
	}
	data, err := canon.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalObject converts an Object to deterministic JSON TEXT for storage.
// A nil object is stored as {}.
func marshalObject(o canon.Object) (string, error) {
	if o == nil {
		return "{}", nil
	}
	return marshalValue(o)
}

// unmarshalValue parses stored JSON TEXT back into a Value.
func unmarshalValue(data string) (canon.Value, error) {
	v, err := canon.Decode([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// unmarshalObject parses stored JSON TEXT into an Object.
func unmarshalObject(data string) (canon.Object, error) {
	if data == "" || data == "{}" {
		return canon.Object{}, nil
	}
	v, err := unmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(canon.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal object: stored %s is not an object", canon.KindOf(v))
	}
	return obj, nil
}
