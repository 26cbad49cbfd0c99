package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langfuse/langfuse-go/pkg/emitter"
)

func TestResolve_ReplacesReferenceWithDataURI(t *testing.T) {
	ref := Render("image/png", "M", SourceDataURI)
	input := map[string]any{"image": "see " + ref}

	calls := 0
	fetch := func(ctx context.Context, mediaID string) (string, error) {
		calls++
		require.Equal(t, "M", mediaID)
		return "data:image/png;base64,AAAA", nil
	}

	out := Resolve(context.Background(), input, fetch, nil)
	outMap := out.(map[string]any)
	assert.Equal(t, "see data:image/png;base64,AAAA", outMap["image"])
	assert.Equal(t, 1, calls)
}

func TestResolve_FetchesEachMediaIDExactlyOnce(t *testing.T) {
	ref := Render("image/png", "M", SourceDataURI)
	input := map[string]any{
		"a": ref,
		"b": ref,
	}

	calls := 0
	fetch := func(ctx context.Context, mediaID string) (string, error) {
		calls++
		return "data:image/png;base64,AAAA", nil
	}

	Resolve(context.Background(), input, fetch, nil)
	assert.Equal(t, 1, calls)
}

func TestResolve_FetchFailureLeavesReferenceInPlaceAndWarns(t *testing.T) {
	ref := Render("image/png", "M", SourceDataURI)
	input := map[string]any{"image": ref}

	fetch := func(ctx context.Context, mediaID string) (string, error) {
		return "", errors.New("not found")
	}

	var warned bool
	em := emitter.New()
	em.On(emitter.Warning, func(any) { warned = true })

	out := Resolve(context.Background(), input, fetch, em)
	outMap := out.(map[string]any)
	assert.Equal(t, ref, outMap["image"])
	assert.True(t, warned)
}
