package promptcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langfuse/langfuse-go/pkg/clock"
	"github.com/langfuse/langfuse-go/pkg/prompt"
)

func TestKey_VersionVsLabel(t *testing.T) {
	v := 3
	assert.Equal(t, "p-version:3", Key("p", &v, ""))
	assert.Equal(t, "p-label:staging", Key("p", nil, "staging"))
	assert.Equal(t, "p-label:production", Key("p", nil, ""))
}

func TestGet_RejectsVersionAndLabelTogether(t *testing.T) {
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		t.Fatal("fetch should not be called")
		return prompt.Prompt{}, nil
	}, clock.Real{}, nil)

	v := 1
	_, err := c.Get(context.Background(), "p", GetOptions{Version: &v, Label: "production"})
	assert.ErrorIs(t, err, ErrVersionAndLabel)
}

func TestGet_ColdMissFetchesAndCaches(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		atomic.AddInt32(&calls, 1)
		return prompt.Prompt{
			Name:    name,
			Version: 1,
			Type:    prompt.TypeText,
			Text:    "hello {{x}}",
			Config:  map[string]any{"temperature": 0.2},
			Labels:  []string{"production"},
		}, nil
	}, clock.Real{}, nil)

	p1, err := c.Get(context.Background(), "p", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "p", p1.Name)

	// A re-read within TTL must be deep-equal to the first read, with no hidden
	// mutation of the cached value.
	p2, err := c.Get(context.Background(), "p", GetOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Fatalf("cached prompt mutated between reads (-first +second):\n%s", diff)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGet_StaleTriggersExactlyOneBackgroundRefresh(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	var calls int32
	release := make(chan struct{})
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		n := atomic.AddInt32(&calls, 1)
		if n > 1 {
			<-release // block the second+ fetch so we can assert in-flight dedup
		}
		return prompt.Prompt{Name: name, Version: int(n)}, nil
	}, fake, nil)

	ttl := 60
	_, err := c.Get(context.Background(), "p", GetOptions{CacheTTLSeconds: &ttl})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	fake.Advance(60*time.Second + time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get(context.Background(), "p", GetOptions{CacheTTLSeconds: &ttl})
			assert.NoError(t, err)
			assert.Equal(t, 1, p.Version) // still serving the stale value
		}()
	}
	wg.Wait()

	// Let every spawned refresh goroutine reach the singleflight group while
	// the shared call is still blocked, so all of them merge into it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	// Allow the single background refresh goroutine to settle.
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_FetchFailureWithFallbackReturnsFallback(t *testing.T) {
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		return prompt.Prompt{}, errors.New("boom")
	}, clock.Real{}, nil)

	fb := prompt.Prompt{Name: "p", Type: prompt.TypeText, Text: "fallback"}
	maxRetries := 0
	got, err := c.Get(context.Background(), "p", GetOptions{Fallback: &fb, MaxRetries: &maxRetries})
	require.NoError(t, err)
	assert.True(t, got.IsFallback)
	assert.Equal(t, "fallback", got.Text)
}

func TestGet_FetchFailureWithoutFallbackSurfacesError(t *testing.T) {
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		return prompt.Prompt{}, errors.New("boom")
	}, clock.Real{}, nil)

	maxRetries := 0
	_, err := c.Get(context.Background(), "p", GetOptions{MaxRetries: &maxRetries})
	assert.Error(t, err)
}

func TestGet_CacheBypassWhenTTLZero(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		atomic.AddInt32(&calls, 1)
		return prompt.Prompt{Name: name}, nil
	}, clock.Real{}, nil)

	zero := 0
	_, err := c.Get(context.Background(), "p", GetOptions{CacheTTLSeconds: &zero})
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "p", GetOptions{CacheTTLSeconds: &zero})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidate_RemovesAllMatchingKeys(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error) {
		atomic.AddInt32(&calls, 1)
		return prompt.Prompt{Name: name}, nil
	}, clock.Real{}, nil)

	v1, v2 := 1, 2
	_, _ = c.Get(context.Background(), "p", GetOptions{Version: &v1})
	_, _ = c.Get(context.Background(), "p", GetOptions{Version: &v2})
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	c.Invalidate("p")

	_, _ = c.Get(context.Background(), "p", GetOptions{Version: &v1})
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClampRetries(t *testing.T) {
	assert.Equal(t, 0, clampRetries(-5))
	assert.Equal(t, 4, clampRetries(99))
	assert.Equal(t, 2, clampRetries(2))
}
