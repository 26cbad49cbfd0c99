// Package media implements the media upload pipeline: recursive discovery
// of binary payloads inside arbitrary user data, content-addressed
// deduplication, presigned-URL upload, and the compact textual reference
// grammar used to substitute uploaded content back into event bodies.
package media

import (
	"fmt"
	"strings"
)

// Source names where a media leaf's bytes came from: src ∈
// {"base64_data_uri", "bytes", "file"}.
type Source string

const (
	SourceDataURI Source = "base64_data_uri"
	SourceBytes   Source = "bytes"
	SourceFile    Source = "file"
)

const referencePrefix = "@@@langfuseMedia:"
const referenceSuffix = "@@@"

// Reference is a parsed media reference.
type Reference struct {
	Type   string
	ID     string
	Source Source
}

// Render formats a Reference in the exact `@@@langfuseMedia:...@@@` form.
func Render(contentType, mediaID string, src Source) string {
	return fmt.Sprintf("%stype=%s|id=%s|source=%s%s", referencePrefix, contentType, mediaID, src, referenceSuffix)
}

// Parse decodes a single reference string. Keys may appear in any order,
// but all three (type, id, source) are required: the parser splits on `|`
// then `=` and accepts keys in any order.
func Parse(s string) (Reference, bool) {
	if !strings.HasPrefix(s, referencePrefix) || !strings.HasSuffix(s, referenceSuffix) {
		return Reference{}, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, referencePrefix), referenceSuffix)
	return parseFields(inner)
}

func parseFields(inner string) (Reference, bool) {
	var ref Reference
	var haveType, haveID, haveSource bool
	for _, field := range strings.Split(inner, "|") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return Reference{}, false
		}
		switch kv[0] {
		case "type":
			ref.Type, haveType = kv[1], true
		case "id":
			ref.ID, haveID = kv[1], true
		case "source":
			ref.Source, haveSource = Source(kv[1]), true
		default:
			return Reference{}, false
		}
	}
	if !haveType || !haveID || !haveSource {
		return Reference{}, false
	}
	return ref, true
}

// FindAll scans s for every occurrence of the reference grammar, returning
// each match's raw text and its parsed Reference. Used by the reverse
// (reference-to-bytes) resolution path.
func FindAll(s string) []Match {
	var matches []Match
	rest := s
	offset := 0
	for {
		start := strings.Index(rest, referencePrefix)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(referencePrefix):], referenceSuffix)
		if end < 0 {
			break
		}
		end += start + len(referencePrefix) + len(referenceSuffix)
		raw := rest[start:end]
		if ref, ok := Parse(raw); ok {
			matches = append(matches, Match{Raw: raw, Reference: ref, Offset: offset + start})
		}
		offset += end
		rest = rest[end:]
	}
	return matches
}

// Match is one FindAll hit: the raw reference text, its parsed form, and
// its byte offset in the original string (offset is informational; callers
// typically replace by raw text rather than by offset since ids are
// unique per string).
type Match struct {
	Raw       string
	Reference Reference
	Offset    int
}
