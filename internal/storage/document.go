package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MergeFields overwrites top-level fields of a JSON object document.
func MergeFields(doc []byte, fields map[string]json.RawMessage) ([]byte, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// UnionArrays appends values to array fields, skipping values already
// present. Equality is by JSON value, so key order and whitespace do not
// matter. A missing or null field is treated as an empty array.
func UnionArrays(doc []byte, values map[string][]json.RawMessage) ([]byte, error) {
	obj, err := decodeObject(doc)
	if err != nil {
		return nil, err
	}
	for field, add := range values {
		var existing []json.RawMessage
		if raw, ok := obj[field]; ok && !isNull(raw) {
			if err := json.Unmarshal(raw, &existing); err != nil {
				return nil, fmt.Errorf("field %q is not an array: %w", field, err)
			}
		}
		seen := make(map[string]bool, len(existing)+len(add))
		for _, v := range existing {
			key, err := canonicalJSON(v)
			if err != nil {
				return nil, err
			}
			seen[key] = true
		}
		for _, v := range add {
			key, err := canonicalJSON(v)
			if err != nil {
				return nil, err
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			existing = append(existing, v)
		}
		merged, err := json.Marshal(existing)
		if err != nil {
			return nil, err
		}
		obj[field] = merged
	}
	return json.Marshal(obj)
}

func decodeObject(doc []byte) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(doc)) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	return obj, nil
}

// canonicalJSON re-encodes v so equal values produce equal strings
// (encoding/json sorts object keys).
func canonicalJSON(v json.RawMessage) (string, error) {
	var decoded any
	if err := json.Unmarshal(v, &decoded); err != nil {
		return "", fmt.Errorf("invalid array value: %w", err)
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
