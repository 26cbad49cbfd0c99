// Package langfuse is the observation-client façade: the public surface
// through which callers create traces, spans, generations, events, and
// scores. Client wires the queue, processor, flusher, uploader, and prompt
// cache together; Trace/Span/Generation are thin wrapper objects over
// Client.enqueue, the same thin handler-to-service call shape used
// throughout the SDK.
package langfuse

import (
	"context"
	"sync"

	"github.com/langfuse/langfuse-go/pkg/clock"
	"github.com/langfuse/langfuse-go/pkg/config"
	"github.com/langfuse/langfuse-go/pkg/emitter"
	"github.com/langfuse/langfuse-go/pkg/event"
	"github.com/langfuse/langfuse-go/pkg/idgen"
	"github.com/langfuse/langfuse-go/pkg/ingest"
	"github.com/langfuse/langfuse-go/pkg/media"
	"github.com/langfuse/langfuse-go/pkg/prompt"
	"github.com/langfuse/langfuse-go/pkg/promptcache"
	"github.com/langfuse/langfuse-go/pkg/queue"
	"github.com/langfuse/langfuse-go/pkg/transport"
)

// Client is the SDK entry point. Construct one with New and keep it alive
// for the lifetime of the process; call Shutdown before exit to drain
// pending events.
type Client struct {
	cfg config.Config

	store     queue.Store
	queue     *queue.Queue
	transport *transport.Client
	uploader  *media.Uploader
	flusher   *ingest.Flusher
	processor *ingest.Processor
	prompts   *promptcache.Cache
	emitter   *emitter.Emitter
	ids       idgen.Source
	clock     clock.Clock

	// pending tracks facade calls whose Process goroutine hasn't yet
	// reached the enqueue step, so Shutdown can wait for them before
	// draining the queue: any event enqueued before Shutdown is called must
	// still be attempted before Shutdown returns.
	pending sync.WaitGroup

	// procMu/procTail chain the Process goroutines so events reach the
	// queue in the order of the facade calls that produced them, without
	// blocking the callers.
	procMu   sync.Mutex
	procTail chan struct{}

	read *ReadClient
}

// ClientOption configures a Client beyond what config.Option covers (e.g.
// injecting an alternate Store or Clock for tests).
type ClientOption func(*clientBuild)

type clientBuild struct {
	store queue.Store
	clock clock.Clock
	ids   idgen.Source
}

// WithStore overrides the default in-process MemoryStore backing the
// pending-event queue. Any key-addressed backing (memory, cookie,
// local storage, file) works here as long as it implements queue.Store.
func WithStore(s queue.Store) ClientOption {
	return func(b *clientBuild) { b.store = s }
}

// WithClock injects a Clock, for deterministic tests of TTL/timer behavior.
func WithClock(c clock.Clock) ClientOption {
	return func(b *clientBuild) { b.clock = c }
}

// WithIDSource injects an idgen.Source, for deterministic tests of
// envelope/flush-handle ids.
func WithIDSource(s idgen.Source) ClientOption {
	return func(b *clientBuild) { b.ids = s }
}

// New builds a Client from the given config.Options and ClientOptions. A
// Client with no PublicKey configured still functions locally (queueing,
// masking, truncation) but every flush emits a warning instead of
// transmitting: missing credentials disable transmission, they don't panic.
func New(opts []config.Option, clientOpts ...ClientOption) *Client {
	cfg := config.New(opts...)

	b := clientBuild{
		store: queue.NewMemoryStore(),
		clock: clock.Real{},
		ids:   idgen.UUID{},
	}
	for _, co := range clientOpts {
		co(&b)
	}

	em := emitter.New()

	q := queue.New(b.store)
	tc := transport.New(transport.Config{
		BaseURL:        cfg.BaseURL,
		PublicKey:      cfg.PublicKey,
		SecretKey:      cfg.SecretKey,
		SDKIntegration: cfg.SDKIntegration,
		RequestTimeout: cfg.RequestTimeout,
	})
	if !tc.Configured() {
		em.Emit(emitter.Warning, errNoPublicKey)
	}

	uploader := media.NewUploader(tc, b.clock, em)

	flusher := ingest.NewFlusher(ingest.FlusherConfig{
		FlushAt:         cfg.FlushAt,
		FetchRetryCount: cfg.FetchRetryCount,
		FetchRetryDelay: cfg.FetchRetryDelay,
		RequestTimeout:  cfg.RequestTimeout,
		SDKIntegration:  cfg.SDKIntegration,
		PublicKey:       cfg.PublicKey,
	}, q, tc, b.ids, em, cfg.AdminMode)

	processor := ingest.NewProcessor(q, flusher, uploader, b.ids, b.clock, em, cfg.Mask, cfg.FlushAt, cfg.FlushInterval)

	c := &Client{
		cfg:       cfg,
		store:     b.store,
		queue:     q,
		transport: tc,
		uploader:  uploader,
		flusher:   flusher,
		processor: processor,
		emitter:   em,
		ids:       b.ids,
		clock:     b.clock,
	}
	c.prompts = promptcache.New(c.fetchPrompt, b.clock, em)
	c.read = &ReadClient{transport: tc}
	return c
}

// errNoPublicKey is emitted (never returned) when no credentials are
// configured.
var errNoPublicKey = &configError{"langfuse: no publicKey configured, transmission disabled"}

type configError struct{ msg string }

func (e *configError) Error() string { return e.msg }

// On subscribes h to topic ("error", "warning", "flush", or any event.Kind
// string) and returns an unsubscribe function. Telemetry calls never
// return errors directly; failures surface through this event stream
// instead.
func (c *Client) On(topic string, h func(payload any)) (unsubscribe func()) {
	return c.emitter.On(topic, h)
}

// Read returns the thin read-only REST façade for traces, observations,
// sessions, and datasets.
func (c *Client) Read() *ReadClient { return c.read }

// enqueue runs the event pipeline for one call, auto-creating a trace when
// the body carries no traceId, and does so without blocking the caller:
// processing is fire-and-forget from the façade's perspective. It returns
// the trace id the body ended up with (either the caller's own or the
// freshly auto-created one), so callers that hand back a Span/Generation
// handle can record the trace their observation actually joined instead of
// the possibly-empty id the caller passed in.
func (c *Client) enqueue(kind event.Kind, body event.Body) string {
	if !c.cfg.Enabled {
		return body.TraceID
	}
	if body.ID == "" {
		body.ID = c.ids.New()
	}
	if !kind.IsTrace() && body.TraceID == "" {
		// Auto-create a trace when the caller supplied none.
		traceID := c.ids.New()
		c.runProcess(event.KindTraceCreate, event.Body{ID: traceID})
		body.TraceID = traceID
	}
	if body.Release == "" {
		body.Release = c.cfg.Release
	}
	c.runProcess(kind, body)
	return body.TraceID
}

// runProcess launches Process off the caller's goroutine while keeping it
// tracked in c.pending, so Shutdown can wait for every facade call issued
// before it was invoked to reach the queue. Each goroutine waits for its
// predecessor before running Process, so events are enqueued in the order
// of the facade calls that produced them even though the calls themselves
// never block.
func (c *Client) runProcess(kind event.Kind, body event.Body) {
	c.pending.Add(1)

	c.procMu.Lock()
	prev := c.procTail
	done := make(chan struct{})
	c.procTail = done
	c.procMu.Unlock()

	go func() {
		defer c.pending.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		c.processor.Process(context.Background(), kind, body)
	}()
}

// Flush triggers one flush cycle and blocks until it settles.
func (c *Client) Flush(ctx context.Context) error {
	return c.processor.FlushSync(ctx)
}

// Shutdown drains the queue and awaits every in-flight flush, idempotently.
// It first waits for every facade call issued before Shutdown was invoked
// to finish reaching the queue, then runs the documented
// clear-timer/flush/await/flush-again sequence so anything enqueued during
// that drain is also attempted before Shutdown returns.
func (c *Client) Shutdown(ctx context.Context) {
	c.pending.Wait()
	c.processor.Shutdown(ctx)
}

// AdminDrain returns and clears every batch captured while the Client was
// built WithAdminMode, instead of transmitted.
func (c *Client) AdminDrain() []event.Envelope {
	return c.flusher.AdminDrain()
}

// GetPrompt resolves a prompt by name through the prompt cache.
func (c *Client) GetPrompt(ctx context.Context, name string, opts promptcache.GetOptions) (prompt.Prompt, error) {
	return c.prompts.Get(ctx, name, opts)
}

// InvalidatePrompt evicts every cached version/label of name.
func (c *Client) InvalidatePrompt(name string) {
	c.prompts.Invalidate(name + "-")
}
