package media

import (
	"encoding/base64"
	"reflect"
	"strings"
)

// MaxDepth bounds recursive traversal of user data during both discovery
// and reference resolution.
const MaxDepth = 10

// Extract recursively walks value (as produced by encoding/json.Unmarshal
// into `any`: maps, slices, strings, scalars), replacing every discovered
// media leaf with a *Wrapper, and returns the (possibly new) tree alongside
// every wrapper it created in discovery order. value is not mutated in
// place; a new tree is built so the original user-supplied structure is
// left untouched. From the caller's perspective this still behaves as an
// in-place edit, since the caller's reference to the field is replaced
// with the rebuilt tree.
func Extract(value any) (out any, wrappers []*Wrapper) {
	visited := make(map[uintptr]bool)
	out = extract(value, 0, visited, &wrappers)
	return out, wrappers
}

func extract(v any, depth int, visited map[uintptr]bool, wrappers *[]*Wrapper) any {
	if depth > MaxDepth {
		return v
	}

	switch val := v.(type) {
	case *Wrapper:
		// Already a wrapper (re-processing a previously extracted body); an
		// existing media wrapper object is itself a leaf.
		return val

	case string:
		if strings.HasPrefix(val, "data:") {
			if contentType, data, ok := parseDataURI(val); ok {
				w := NewWrapper(data, contentType, SourceDataURI)
				*wrappers = append(*wrappers, w)
				return w
			}
		}
		return val

	case map[string]any:
		if identitySeen(val, visited) {
			return val
		}
		if w, ok := audioLeaf(val); ok {
			*wrappers = append(*wrappers, w)
			return w
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = extract(item, depth+1, visited, wrappers)
		}
		return out

	case []any:
		if identitySeenSlice(val, visited) {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = extract(item, depth+1, visited, wrappers)
		}
		return out

	default:
		return v
	}
}

// identitySeen tracks map identity by its underlying data pointer to break
// cycles without relying on structural equality: an object-identity set
// (pointer/handle equality), not a structural one.
func identitySeen(m map[string]any, visited map[uintptr]bool) bool {
	ptr := reflect.ValueOf(m).Pointer()
	if visited[ptr] {
		return true
	}
	visited[ptr] = true
	return false
}

func identitySeenSlice(s []any, visited map[uintptr]bool) bool {
	if len(s) == 0 {
		return false
	}
	ptr := reflect.ValueOf(s).Pointer()
	if visited[ptr] {
		return true
	}
	visited[ptr] = true
	return false
}

// audioLeaf recognizes {"input_audio": {"data":..., "format":...}} and
// {"audio": {...}} shapes, synthesizing a data URI and source "bytes"
// since the payload arrived as raw base64 rather than a data: URI string.
func audioLeaf(m map[string]any) (*Wrapper, bool) {
	for _, key := range []string{"input_audio", "audio"} {
		inner, ok := m[key]
		if !ok {
			continue
		}
		innerMap, ok := inner.(map[string]any)
		if !ok {
			continue
		}
		dataStr, ok := innerMap["data"].(string)
		if !ok {
			continue
		}
		format := "wav"
		if f, ok := innerMap["format"].(string); ok && f != "" {
			format = f
		}
		raw, err := base64.StdEncoding.DecodeString(dataStr)
		if err != nil {
			continue
		}
		return NewWrapper(raw, "audio/"+format, SourceBytes), true
	}
	return nil, false
}

// parseDataURI splits a "data:<mediatype>;base64,<data>" string into its
// content type and decoded bytes.
func parseDataURI(s string) (contentType string, data []byte, ok bool) {
	rest := strings.TrimPrefix(s, "data:")
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return "", nil, false
	}
	meta := strings.TrimSuffix(parts[0], ";base64")
	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, false
	}
	return meta, raw, true
}
