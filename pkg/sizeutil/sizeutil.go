// Package sizeutil measures the serialized UTF-8 byte size of values, the
// shared primitive behind size-bounded field truncation and batch-size
// policies.
package sizeutil

import "encoding/json"

// JSONSize returns the byte length of v's JSON serialization, and an error
// if v is not JSON-serializable.
func JSONSize(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
