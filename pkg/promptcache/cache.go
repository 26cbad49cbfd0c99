// Package promptcache implements a keyed TTL cache with
// stale-while-revalidate semantics, single-flight background refresh,
// bounded retries, and typed fallback on fetch failure. A sync.RWMutex
// guards a map[string]entry, and golang.org/x/sync/singleflight ensures at
// most one in-flight refresh per key regardless of how many stale reads
// arrive concurrently.
package promptcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/langfuse/langfuse-go/pkg/clock"
	"github.com/langfuse/langfuse-go/pkg/emitter"
	"github.com/langfuse/langfuse-go/pkg/prompt"
	"github.com/langfuse/langfuse-go/pkg/retry"
)

// Default cache and retry tuning, overridable per call via GetOptions.
const (
	DefaultCacheTTLSeconds = 60
	DefaultMaxRetries      = 2
	MaxRetriesCeiling      = 4
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultFetchTimeout    = 10 * time.Second
)

// ErrVersionAndLabel is a configuration-time programmer error: passing both
// version and label to a prompt fetch is one of the few errors the SDK
// surfaces to the caller instead of routing to the "error" event.
var ErrVersionAndLabel = errors.New("promptcache: version and label are mutually exclusive")

// FetchFunc performs the remote GET for one prompt name/version/label.
type FetchFunc func(ctx context.Context, name string, opts FetchOptions) (prompt.Prompt, error)

// FetchOptions narrows a Get call down to what the remote fetch needs.
type FetchOptions struct {
	Version *int
	Label   string
}

// GetOptions narrows or overrides the cache's default behavior for one
// Get call.
type GetOptions struct {
	Version         *int
	Label           string
	CacheTTLSeconds *int
	Fallback        *prompt.Prompt
	MaxRetries      *int
	FetchTimeoutMs  *int
}

type entry struct {
	value     prompt.Prompt
	expiresAt time.Time
}

// Cache is a process-scoped prompt cache; its lifetime is tied to the
// process, not persisted across restarts.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	group singleflight.Group

	fetch   FetchFunc
	clock   clock.Clock
	emitter *emitter.Emitter
	logger  *slog.Logger
}

// New builds a Cache. emit may be nil.
func New(fetch FetchFunc, c clock.Clock, emit *emitter.Emitter) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		fetch:   fetch,
		clock:   c,
		emitter: emit,
		logger:  slog.Default(),
	}
}

// Key computes the cache key for a name/version/label combination.
func Key(name string, version *int, label string) string {
	if version != nil {
		return fmt.Sprintf("%s-version:%d", name, *version)
	}
	if label == "" {
		label = "production"
	}
	return name + "-label:" + label
}

// Get resolves a prompt by name, serving from cache when fresh, triggering
// a background refresh when stale, and fetching synchronously on a miss.
func (c *Cache) Get(ctx context.Context, name string, opts GetOptions) (prompt.Prompt, error) {
	if opts.Version != nil && opts.Label != "" {
		return prompt.Prompt{}, ErrVersionAndLabel
	}

	ttl := DefaultCacheTTLSeconds
	if opts.CacheTTLSeconds != nil {
		ttl = *opts.CacheTTLSeconds
	}

	// cacheTtlSeconds == 0 means never serve from cache; every call fetches
	// fresh and does not update the cache.
	if ttl == 0 {
		p, err := c.fetchWithRetry(ctx, name, opts)
		if err != nil {
			return c.fallbackOrError(opts, err)
		}
		return p, nil
	}

	key := Key(name, opts.Version, opts.Label)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	now := c.clock.Now()

	if !ok {
		p, err := c.fetchWithRetry(ctx, name, opts)
		if err != nil {
			return c.fallbackOrError(opts, err)
		}
		c.store(key, p, now.Add(time.Duration(ttl)*time.Second))
		return p, nil
	}

	if now.Before(e.expiresAt) {
		return e.value, nil
	}

	// Stale: serve the cached value immediately and kick a background
	// refresh, deduplicated per key by singleflight so a burst of callers
	// hitting the same stale key triggers exactly one refresh fetch.
	c.refreshInBackground(key, name, opts, time.Duration(ttl)*time.Second)
	return e.value, nil
}

func (c *Cache) fallbackOrError(opts GetOptions, fetchErr error) (prompt.Prompt, error) {
	if opts.Fallback != nil {
		fb := *opts.Fallback
		fb.IsFallback = true
		return fb, nil
	}
	return prompt.Prompt{}, fetchErr
}

func (c *Cache) store(key string, p prompt.Prompt, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: p, expiresAt: expiresAt}
}

func (c *Cache) refreshInBackground(key, name string, opts GetOptions, ttl time.Duration) {
	go func() {
		_, _, _ = c.group.Do(key, func() (any, error) {
			p, err := c.fetchWithRetry(context.Background(), name, opts)
			if err != nil {
				c.logger.Warn("background prompt refresh failed", "key", key, "error", err)
				if c.emitter != nil {
					c.emitter.Emit(emitter.Warning, err)
				}
				return nil, err
			}
			c.store(key, p, c.clock.Now().Add(ttl))
			return p, nil
		})
	}()
}

// fetchWithRetry applies the bounded-retry policy: min(max(maxRetries, 0),
// 4) attempts beyond the first, default 2, 500ms constant backoff, all
// fetch errors treated as retryable (a non-2xx or network failure from the
// remote; the only non-retryable case, both version and label set, is
// rejected before this is ever called).
func (c *Cache) fetchWithRetry(ctx context.Context, name string, opts GetOptions) (prompt.Prompt, error) {
	maxRetries := DefaultMaxRetries
	if opts.MaxRetries != nil {
		maxRetries = clampRetries(*opts.MaxRetries)
	}

	timeout := DefaultFetchTimeout
	if opts.FetchTimeoutMs != nil && *opts.FetchTimeoutMs > 0 {
		timeout = time.Duration(*opts.FetchTimeoutMs) * time.Millisecond
	}

	var result prompt.Prompt
	_, err := retry.Do(ctx, maxRetries, DefaultRetryDelay, alwaysRetry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		p, err := c.fetch(attemptCtx, name, FetchOptions{Version: opts.Version, Label: opts.Label})
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	return result, err
}

func alwaysRetry(error) bool { return true }

func clampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetriesCeiling {
		return MaxRetriesCeiling
	}
	return n
}

// Invalidate removes every entry whose key starts with prefix.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}
