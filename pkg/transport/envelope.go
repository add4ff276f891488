package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Shape identifies which response envelope a remote used.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeBareArray is a top-level JSON array.
	ShapeBareArray
	// ShapeSuccessData is {"success": true, "data": ...}.
	ShapeSuccessData
	// ShapeKeyed is an object carrying the collection under a named key, e.g. {"subscriptions": [...]}.
	ShapeKeyed
	// ShapeBareObject is a single top-level object with no envelope.
	ShapeBareObject
)

func (s Shape) String() string {
	switch s {
	case ShapeBareArray:
		return "bare_array"
	case ShapeSuccessData:
		return "success_data"
	case ShapeKeyed:
		return "keyed"
	case ShapeBareObject:
		return "bare_object"
	default:
		return "unknown"
	}
}

var (
	// ErrUnrecognizedEnvelope is returned when a body matches none of the known shapes.
	ErrUnrecognizedEnvelope = errors.New("unrecognized response envelope")
)

// EnvelopeError is returned when the remote answered 2xx with {"success": false}.
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return "remote reported success=false"
	}
	return "remote reported success=false: " + e.Message
}

// List is a decoded collection together with the shape it arrived in.
type List[T any] struct {
	Shape Shape
	Items []T
}

// DecodeList normalizes a collection response. Accepted shapes, in order:
// a bare array, {"success": true, "data": [...]}, and {"<key>": [...]} for each key.
// Items is never nil on success.
func DecodeList[T any](raw []byte, keys ...string) (List[T], error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return List[T]{Items: []T{}}, ErrUnrecognizedEnvelope
	}

	if trimmed[0] == '[' {
		items := []T{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return List[T]{Items: []T{}}, fmt.Errorf("decode array: %w", err)
		}
		return List[T]{Shape: ShapeBareArray, Items: items}, nil
	}

	fields, err := objectFields(trimmed)
	if err != nil {
		return List[T]{Items: []T{}}, err
	}
	if err := checkSuccess(fields); err != nil {
		return List[T]{Items: []T{}}, err
	}

	if data, ok := fields["data"]; ok && isArrayOrNull(data) {
		items, err := decodeItems[T](data)
		if err != nil {
			return List[T]{Items: []T{}}, err
		}
		return List[T]{Shape: ShapeSuccessData, Items: items}, nil
	}

	for _, key := range keys {
		if value, ok := fields[key]; ok && isArrayOrNull(value) {
			items, err := decodeItems[T](value)
			if err != nil {
				return List[T]{Items: []T{}}, err
			}
			return List[T]{Shape: ShapeKeyed, Items: items}, nil
		}
	}

	return List[T]{Items: []T{}}, ErrUnrecognizedEnvelope
}

// DecodeItem normalizes a single-entity response: {"success": true, "data": {...}},
// {"<key>": {...}} or a bare object. It returns (nil, ShapeX, nil) when the
// envelope is well formed but carries no entity.
func DecodeItem[T any](raw []byte, keys ...string) (*T, Shape, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ShapeUnknown, nil
	}

	fields, err := objectFields(trimmed)
	if err != nil {
		return nil, ShapeUnknown, err
	}
	if err := checkSuccess(fields); err != nil {
		return nil, ShapeSuccessData, err
	}

	_, hasSuccess := fields["success"]
	if data, ok := fields["data"]; ok || hasSuccess {
		if !ok || isNull(data) {
			return nil, ShapeSuccessData, nil
		}
		item, err := decodeOne[T](data)
		return item, ShapeSuccessData, err
	}

	for _, key := range keys {
		if value, ok := fields[key]; ok {
			if isNull(value) {
				return nil, ShapeKeyed, nil
			}
			item, err := decodeOne[T](value)
			return item, ShapeKeyed, err
		}
	}

	item, err := decodeOne[T](trimmed)
	return item, ShapeBareObject, err
}

func objectFields(raw []byte) (map[string]json.RawMessage, error) {
	if raw[0] != '{' {
		return nil, ErrUnrecognizedEnvelope
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return fields, nil
}

func checkSuccess(fields map[string]json.RawMessage) error {
	value, ok := fields["success"]
	if !ok {
		return nil
	}
	var success bool
	if err := json.Unmarshal(value, &success); err != nil {
		return fmt.Errorf("decode success flag: %w", err)
	}
	if success {
		return nil
	}
	return &EnvelopeError{Message: envelopeMessage(fields)}
}

func envelopeMessage(fields map[string]json.RawMessage) string {
	for _, key := range []string{"message", "error", "msg"} {
		var s string
		if value, ok := fields[key]; ok && json.Unmarshal(value, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func decodeItems[T any](raw json.RawMessage) ([]T, error) {
	items := []T{}
	if isNull(raw) {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []T{}, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func decodeOne[T any](raw []byte) (*T, error) {
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return &item, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isArrayOrNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '[' || isNull(trimmed))
}

// CheckEnvelope returns an *EnvelopeError when raw is an object carrying
// "success": false, and nil for anything else.
func CheckEnvelope(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	fields, err := objectFields(trimmed)
	if err != nil {
		return nil
	}
	return checkSuccess(fields)
}
