// Package config holds the SDK's client configuration and the functional
// options used to build it. Defaults and floors are applied once, at
// construction, rather than scattered through the pipeline.
package config

import (
	"time"

	"github.com/langfuse/langfuse-go/pkg/mask"
	"github.com/langfuse/langfuse-go/pkg/version"
)

const (
	DefaultBaseURL         = "https://cloud.langfuse.com"
	DefaultFlushAt         = 15
	DefaultFlushInterval   = 5 * time.Second
	DefaultFetchRetryCount = 3
	DefaultFetchRetryDelay = 3000 * time.Millisecond
	DefaultRequestTimeout  = 10000 * time.Millisecond
	DefaultSDKIntegration  = "DEFAULT"
)

// Config is the resolved configuration for a Client. Its fields are
// exported; New with Options is the constructor that applies defaults and
// floors, using functional options since an SDK constructor has no config
// file to parse.
type Config struct {
	PublicKey string
	SecretKey string
	BaseURL   string

	FlushAt       int
	FlushInterval time.Duration

	FetchRetryCount int
	FetchRetryDelay time.Duration
	RequestTimeout  time.Duration

	Release        string
	SDKIntegration string
	Enabled        bool
	AdminMode      bool

	Mask mask.Func
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithCredentials sets publicKey/secretKey. Their absence disables
// transmission and emits a warning; it never panics.
func WithCredentials(publicKey, secretKey string) Option {
	return func(c *Config) {
		c.PublicKey = publicKey
		c.SecretKey = secretKey
	}
}

// WithBaseURL overrides the ingestion/media/prompt host.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithFlushAt sets the batch-size flush threshold; floored at 1 (default
// 15).
func WithFlushAt(n int) Option {
	return func(c *Config) { c.FlushAt = n }
}

// WithFlushInterval sets the periodic flush timer; 0 disables periodic
// flushing entirely.
func WithFlushInterval(d time.Duration) Option {
	return func(c *Config) { c.FlushInterval = d }
}

// WithRetry overrides the ingestion retry policy.
func WithRetry(count int, delay time.Duration) Option {
	return func(c *Config) {
		c.FetchRetryCount = count
		c.FetchRetryDelay = delay
	}
}

// WithRequestTimeout overrides the per-attempt HTTP timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) { c.RequestTimeout = d }
}

// WithRelease overrides automatic release detection.
func WithRelease(release string) Option {
	return func(c *Config) { c.Release = release }
}

// WithSDKIntegration tags the integration name sent on every request.
func WithSDKIntegration(name string) Option {
	return func(c *Config) { c.SDKIntegration = name }
}

// WithEnabled toggles whether the client transmits or silently drops events.
func WithEnabled(enabled bool) Option {
	return func(c *Config) { c.Enabled = enabled }
}

// WithMask installs the masking callback applied to input/output before
// an event is queued.
func WithMask(fn mask.Func) Option {
	return func(c *Config) { c.Mask = fn }
}

// WithAdminMode selects capture-only operation: flush cycles append to an
// in-memory list retrievable via Client.AdminDrain instead of transmitting.
// Distinct from WithEnabled(false), which drops events instead of
// capturing them.
func WithAdminMode() Option {
	return func(c *Config) { c.AdminMode = true }
}

// New resolves a Config from the given options, applying defaults and
// floors.
func New(opts ...Option) Config {
	c := Config{
		BaseURL:         DefaultBaseURL,
		FlushAt:         DefaultFlushAt,
		FlushInterval:   DefaultFlushInterval,
		FetchRetryCount: DefaultFetchRetryCount,
		FetchRetryDelay: DefaultFetchRetryDelay,
		RequestTimeout:  DefaultRequestTimeout,
		SDKIntegration:  DefaultSDKIntegration,
		Enabled:         true,
	}
	for _, opt := range opts {
		opt(&c)
	}

	if c.FlushAt < 1 {
		c.FlushAt = 1
	}
	if c.Release == "" {
		c.Release = version.DetectRelease()
	}
	if c.SDKIntegration == "" {
		c.SDKIntegration = DefaultSDKIntegration
	}

	return c
}
