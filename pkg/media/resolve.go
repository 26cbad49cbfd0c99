package media

import (
	"context"
	"strings"

	"github.com/langfuse/langfuse-go/pkg/emitter"
)

// Fetcher retrieves a media item's content as a data URI string, given its
// id.
type Fetcher func(ctx context.Context, mediaID string) (dataURI string, err error)

// Resolve walks value to MaxDepth, replacing every media reference
// occurrence in string values with its fetched data URI. Each distinct
// mediaId is fetched at most once per call. A fetch failure leaves the
// reference string in place and emits a warning; it does not abort the
// rest of the traversal.
func Resolve(ctx context.Context, value any, fetch Fetcher, emit *emitter.Emitter) any {
	cache := make(map[string]string)
	return resolve(ctx, value, 0, make(map[uintptr]bool), fetch, cache, emit)
}

func resolve(ctx context.Context, v any, depth int, visited map[uintptr]bool, fetch Fetcher, cache map[string]string, emit *emitter.Emitter) any {
	if depth > MaxDepth {
		return v
	}

	switch val := v.(type) {
	case string:
		return resolveString(ctx, val, fetch, cache, emit)

	case map[string]any:
		if identitySeen(val, visited) {
			return val
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = resolve(ctx, item, depth+1, visited, fetch, cache, emit)
		}
		return out

	case []any:
		if identitySeenSlice(val, visited) {
			return val
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolve(ctx, item, depth+1, visited, fetch, cache, emit)
		}
		return out

	default:
		return v
	}
}

func resolveString(ctx context.Context, s string, fetch Fetcher, cache map[string]string, emit *emitter.Emitter) string {
	matches := FindAll(s)
	if len(matches) == 0 {
		return s
	}

	out := s
	for _, m := range matches {
		dataURI, ok := cache[m.Reference.ID]
		if !ok {
			fetched, err := fetch(ctx, m.Reference.ID)
			if err != nil {
				if emit != nil {
					emit.Emit(emitter.Warning, err)
				}
				continue
			}
			cache[m.Reference.ID] = fetched
			dataURI = fetched
		}
		out = strings.ReplaceAll(out, m.Raw, dataURI)
	}
	return out
}
