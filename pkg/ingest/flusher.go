// Package ingest implements the event processor and batch flusher. The
// two stages share the pending-event queue: the processor's Process pushes
// one envelope at a time and decides whether to trigger a flush; the
// flusher drains the queue in size-bounded batches with retry and
// partial-failure carryover.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/langfuse/langfuse-go/pkg/emitter"
	"github.com/langfuse/langfuse-go/pkg/event"
	"github.com/langfuse/langfuse-go/pkg/idgen"
	"github.com/langfuse/langfuse-go/pkg/queue"
	"github.com/langfuse/langfuse-go/pkg/retry"
	"github.com/langfuse/langfuse-go/pkg/sizeutil"
	"github.com/langfuse/langfuse-go/pkg/transport"
	"github.com/langfuse/langfuse-go/pkg/version"
)

// Size constants governing per-item and per-batch limits.
const (
	MaxMsgSize     = 1_000_000
	BatchSizeLimit = 2_500_000
)

// FlusherConfig carries the resolved retry/batching settings a Flusher
// needs: the batch-size threshold, retry count/delay, and per-attempt
// request timeout.
type FlusherConfig struct {
	FlushAt         int
	FetchRetryCount int
	FetchRetryDelay time.Duration
	RequestTimeout  time.Duration
	SDKIntegration  string
	PublicKey       string
}

// Partial207Error represents an HTTP 207 response whose body carries a
// non-empty errors array, treated as a retryable failure, same as any
// other non-2xx ingestion response.
type Partial207Error struct {
	Errors []any
}

func (e *Partial207Error) Error() string {
	return fmt.Sprintf("partial failure: %d item error(s)", len(e.Errors))
}

// Flusher drains the queue to the ingestion endpoint.
type Flusher struct {
	cfg       FlusherConfig
	queue     *queue.Queue
	transport *transport.Client
	ids       idgen.Source
	emitter   *emitter.Emitter
	logger    *slog.Logger

	adminMode bool

	mu           sync.Mutex
	inflight     map[string]chan struct{}
	adminBatches [][]event.Envelope
}

// NewFlusher builds a Flusher. emit may be nil. adminMode replaces the HTTP
// POST with an in-memory capture retrievable via AdminDrain.
func NewFlusher(cfg FlusherConfig, q *queue.Queue, t *transport.Client, ids idgen.Source, emit *emitter.Emitter, adminMode bool) *Flusher {
	return &Flusher{
		cfg:       cfg,
		queue:     q,
		transport: t,
		ids:       ids,
		emitter:   emit,
		logger:    slog.Default(),
		adminMode: adminMode,
		inflight:  make(map[string]chan struct{}),
	}
}

// AdminDrain returns and clears every batch captured while in admin mode.
func (f *Flusher) AdminDrain() []event.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []event.Envelope
	for _, b := range f.adminBatches {
		all = append(all, b...)
	}
	f.adminBatches = nil
	return all
}

// FlushAsync awaits every currently-registered in-flight flush handle, then
// runs exactly one flush cycle under a freshly registered handle, then
// invokes callback (if non-nil) with the cycle's outcome. It always
// resolves the callback regardless of outcome.
func (f *Flusher) FlushAsync(ctx context.Context, callback func(error)) {
	go func() {
		f.AwaitInFlight()

		id, done := f.beginHandle()
		err := f.flushCycle(ctx)
		f.endHandle(id, done)

		if callback != nil {
			callback(err)
		}
	}()
}

// AwaitInFlight blocks until every flush handle registered at call time has
// settled.
func (f *Flusher) AwaitInFlight() {
	f.mu.Lock()
	dones := make([]chan struct{}, 0, len(f.inflight))
	for _, d := range f.inflight {
		dones = append(dones, d)
	}
	f.mu.Unlock()

	for _, d := range dones {
		<-d
	}
}

func (f *Flusher) beginHandle() (string, chan struct{}) {
	id := f.ids.New()
	done := make(chan struct{})
	f.mu.Lock()
	f.inflight[id] = done
	f.mu.Unlock()
	return id, done
}

func (f *Flusher) endHandle(id string, done chan struct{}) {
	f.mu.Lock()
	delete(f.inflight, id)
	f.mu.Unlock()
	close(done)
}

// flushCycle drains one batch: pop up to flushAt items, apply the size
// policy, requeue any carryover, and send the rest. Clearing the armed
// flush timer is the Processor's responsibility, since the Flusher has no
// notion of a timer.
func (f *Flusher) flushCycle(ctx context.Context) error {
	candidate := f.queue.PopBatch(f.cfg.FlushAt)
	if len(candidate) == 0 {
		return nil
	}

	sendBatch, carryover := applySizePolicy(candidate, f.emitter)
	if len(carryover) > 0 {
		f.queue.Requeue(carryover)
	}
	if len(sendBatch) == 0 {
		return nil
	}

	if f.adminMode {
		f.mu.Lock()
		f.adminBatches = append(f.adminBatches, sendBatch)
		f.mu.Unlock()
		f.emit(emitter.Flush, sendBatch)
		return nil
	}

	if !f.transport.Configured() {
		f.emit(emitter.Warning, errors.New("langfuse: no publicKey configured, batch not transmitted"))
		return nil
	}

	err := f.send(ctx, sendBatch)
	if err != nil {
		f.logger.Warn("flush cycle failed", "batch_size", len(sendBatch), "error", err)
		f.emit(emitter.Error, err)
		return err
	}
	f.logger.Debug("flush cycle sent batch", "batch_size", len(sendBatch))
	f.emit(emitter.Flush, sendBatch)
	return nil
}

type ingestionRequest struct {
	Batch    []event.Envelope  `json:"batch"`
	Metadata ingestionMetadata `json:"metadata"`
}

type ingestionMetadata struct {
	BatchSize      int    `json:"batch_size"`
	SDKIntegration string `json:"sdk_integration"`
	SDKVersion     string `json:"sdk_version"`
	SDKVariant     string `json:"sdk_variant"`
	PublicKey      string `json:"public_key"`
	SDKName        string `json:"sdk_name"`
}

func (f *Flusher) send(ctx context.Context, batch []event.Envelope) error {
	reqBody := ingestionRequest{
		Batch: batch,
		Metadata: ingestionMetadata{
			BatchSize:      len(batch),
			SDKIntegration: f.cfg.SDKIntegration,
			SDKVersion:     version.SDKVersion,
			SDKVariant:     version.SDKVariant,
			PublicKey:      f.cfg.PublicKey,
			SDKName:        version.SDKName,
		},
	}

	_, err := retry.Do(ctx, f.cfg.FetchRetryCount, f.cfg.FetchRetryDelay, isRetryable, func(attemptCtx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(attemptCtx, f.cfg.RequestTimeout)
		defer cancel()

		resp, doErr := f.transport.Do(timeoutCtx, http.MethodPost, "/api/public/ingestion", reqBody)
		if doErr != nil {
			return doErr
		}
		if resp.StatusCode == http.StatusMultiStatus {
			var partial struct {
				Errors []any `json:"errors"`
			}
			if jsonErr := json.Unmarshal(resp.Body, &partial); jsonErr == nil && len(partial.Errors) > 0 {
				return &Partial207Error{Errors: partial.Errors}
			}
		}
		return nil
	})
	return err
}

// isRetryable classifies which send() failures are worth retrying:
// network/timeout errors, HTTP statuses below 200 or from 400 up (both
// surfaced by transport.Client.Do), and HTTP 207 with a non-empty errors
// array.
func isRetryable(err error) bool {
	var netErr *transport.NetworkError
	var httpErr *transport.HTTPError
	var partialErr *Partial207Error
	return errors.As(err, &netErr) || errors.As(err, &httpErr) || errors.As(err, &partialErr)
}

func (f *Flusher) emit(topic string, payload any) {
	if f.emitter != nil {
		f.emitter.Emit(topic, payload)
	}
}

// applySizePolicy drops oversized singles, accumulates in order up to
// BatchSizeLimit, and cuts the remainder to carryover on the first item
// that would push the running total over the limit or that fails to
// serialize.
func applySizePolicy(candidate []event.Envelope, em *emitter.Emitter) (send, carryover []event.Envelope) {
	running := 0
	for i, env := range candidate {
		size, err := sizeutil.JSONSize(env)
		if err != nil {
			carryover = append(carryover, candidate[i:]...)
			break
		}
		if size > MaxMsgSize {
			if em != nil {
				em.Emit(emitter.Warning, fmt.Errorf("dropping event %s: %d bytes exceeds MAX_MSG_SIZE", env.ID, size))
			}
			continue
		}
		if running+size >= BatchSizeLimit {
			carryover = append(carryover, candidate[i:]...)
			break
		}
		running += size
		send = append(send, env)
	}
	return send, carryover
}
