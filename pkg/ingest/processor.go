package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/langfuse/langfuse-go/pkg/clock"
	"github.com/langfuse/langfuse-go/pkg/emitter"
	"github.com/langfuse/langfuse-go/pkg/event"
	"github.com/langfuse/langfuse-go/pkg/idgen"
	"github.com/langfuse/langfuse-go/pkg/mask"
	"github.com/langfuse/langfuse-go/pkg/media"
	"github.com/langfuse/langfuse-go/pkg/queue"
	"github.com/langfuse/langfuse-go/pkg/sizeutil"
)

// MaxEventSize bounds a single event body's serialized size.
const MaxEventSize = 1_000_000

const truncatedLiteral = "<truncated due to size exceeding limit>"

// Processor implements the per-event pipeline: mask, extract/upload media,
// truncate oversized bodies, probe serializability, and enqueue.
type Processor struct {
	queue    *queue.Queue
	flusher  *Flusher
	uploader *media.Uploader
	ids      idgen.Source
	clock    clock.Clock
	emitter  *emitter.Emitter
	maskFn   mask.Func

	flushAt       int
	flushInterval time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewProcessor builds a Processor. uploader and emit may be nil (nil
// uploader skips media extraction entirely; nil emit drops notifications).
func NewProcessor(q *queue.Queue, flusher *Flusher, uploader *media.Uploader, ids idgen.Source, clk clock.Clock, emit *emitter.Emitter, maskFn mask.Func, flushAt int, flushInterval time.Duration) *Processor {
	return &Processor{
		queue:         q,
		flusher:       flusher,
		uploader:      uploader,
		ids:           ids,
		clock:         clk,
		emitter:       emit,
		maskFn:        maskFn,
		flushAt:       flushAt,
		flushInterval: flushInterval,
	}
}

// Process runs the full pipeline for one (kind, body) pair: mask, media
// extraction, size-bounded truncation, serializability probe, envelope
// construction, enqueue, and flush trigger. It never returns an error to
// the caller; failures are routed to the "error"/"warning" event topics.
//
// Process awaits the media step before the serializability probe, so the
// media id assigned during upload is always present by the time the body
// is serialized into an envelope. Callers that want the enqueue call
// itself to be non-blocking (the façade's observation calls) run Process
// in its own goroutine; Process itself does not detach.
func (p *Processor) Process(ctx context.Context, kind event.Kind, body event.Body) {
	p.maskFields(&body)

	traceID := body.TraceID
	if traceID == "" && kind.IsTrace() {
		traceID = body.ID
	}
	if traceID == "" {
		p.warn(fmt.Errorf("skipping media extraction for %s: no traceId available", body.ID))
	} else if p.uploader != nil {
		p.extractAndUpload(ctx, &body, traceID, kind)
	}

	p.truncate(&body)

	if _, err := sizeutil.JSONSize(body); err != nil {
		p.emitErr(fmt.Errorf("dropping unserializable event %s: %w", body.ID, err))
		return
	}

	env := event.Envelope{
		ID:        p.ids.New(),
		Type:      kind,
		Timestamp: p.clock.Now(),
		Body:      body,
	}
	p.queue.Append(env)
	if p.emitter != nil {
		p.emitter.Emit(string(kind), body)
	}

	p.afterEnqueue()
}

// maskFields applies the masking callback to input/output only; metadata
// is never masked.
func (p *Processor) maskFields(body *event.Body) {
	if body.Input != nil {
		masked, failed := mask.Apply(p.maskFn, body.Input)
		body.Input = masked
		if failed {
			p.emitErr(fmt.Errorf("mask function failed for input of %s", body.ID))
		}
	}
	if body.Output != nil {
		masked, failed := mask.Apply(p.maskFn, body.Output)
		body.Output = masked
		if failed {
			p.emitErr(fmt.Errorf("mask function failed for output of %s", body.ID))
		}
	}
}

// extractAndUpload discovers media leaves in input/output/metadata and
// uploads each one, awaiting every upload before returning so the
// serializability probe that follows always sees the assigned media id.
func (p *Processor) extractAndUpload(ctx context.Context, body *event.Body, traceID string, kind event.Kind) {
	observationID := ""
	if !kind.IsTrace() {
		observationID = body.ID
	}

	if body.Input != nil {
		out, wrappers := media.Extract(body.Input)
		body.Input = out
		p.runUploads(ctx, wrappers, traceID, observationID, "input")
	}
	if body.Output != nil {
		out, wrappers := media.Extract(body.Output)
		body.Output = out
		p.runUploads(ctx, wrappers, traceID, observationID, "output")
	}
	if body.Metadata != nil {
		out, wrappers := media.Extract(body.Metadata)
		body.Metadata = out
		p.runUploads(ctx, wrappers, traceID, observationID, "metadata")
	}
}

// runUploads uploads every discovered leaf concurrently and waits for all
// of them to settle before returning.
func (p *Processor) runUploads(ctx context.Context, wrappers []*media.Wrapper, traceID, observationID, field string) {
	if len(wrappers) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, w := range wrappers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.uploader.Upload(ctx, w, traceID, observationID, field)
		}()
	}
	wg.Wait()
}

// truncate repeatedly replaces the largest-by-size candidate field among
// {input, output, metadata} with the truncation literal until the body
// fits MaxEventSize or no candidate remains.
func (p *Processor) truncate(body *event.Body) {
	truncated := map[string]bool{}
	warnedOnce := false

	for {
		total, err := sizeutil.JSONSize(*body)
		if err != nil || total <= MaxEventSize {
			return
		}

		type candidate struct {
			name  string
			size  int
			apply func()
		}
		var cands []candidate
		if !truncated["input"] && body.Input != nil {
			if sz, serr := sizeutil.JSONSize(body.Input); serr == nil {
				cands = append(cands, candidate{"input", sz, func() { body.Input = truncatedLiteral }})
			}
		}
		if !truncated["output"] && body.Output != nil {
			if sz, serr := sizeutil.JSONSize(body.Output); serr == nil {
				cands = append(cands, candidate{"output", sz, func() { body.Output = truncatedLiteral }})
			}
		}
		if !truncated["metadata"] && body.Metadata != nil {
			if sz, serr := sizeutil.JSONSize(body.Metadata); serr == nil {
				cands = append(cands, candidate{"metadata", sz, func() { body.Metadata = truncatedLiteral }})
			}
		}
		if len(cands) == 0 {
			return
		}

		sort.SliceStable(cands, func(i, j int) bool { return cands[i].size > cands[j].size })
		chosen := cands[0]
		chosen.apply()
		truncated[chosen.name] = true

		if !warnedOnce {
			p.warn(fmt.Errorf("event %s exceeds max size, truncating", body.ID))
			warnedOnce = true
		}
		p.warn(fmt.Errorf("field %q of event %s truncated due to size", chosen.name, body.ID))
	}
}

// afterEnqueue flushes immediately once the queue reaches flushAt, else
// arms a one-shot timer if none is already armed. At most one timer is
// ever armed at a time.
func (p *Processor) afterEnqueue() {
	if p.queue.Len() >= p.flushAt {
		p.triggerFlushNow()
		return
	}
	if p.flushInterval > 0 {
		p.armTimer()
	}
}

func (p *Processor) armTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.flushInterval, p.triggerFlushNow)
}

func (p *Processor) triggerFlushNow() {
	p.clearTimer()
	p.flusher.FlushAsync(context.Background(), nil)
}

func (p *Processor) clearTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// FlushSync runs one flush cycle and blocks until it settles, for callers
// that need a synchronous "flush now and wait" (e.g. the façade's
// Flush method and tests).
func (p *Processor) FlushSync(ctx context.Context) error {
	var result error
	done := make(chan struct{})
	p.flusher.FlushAsync(ctx, func(err error) {
		result = err
		close(done)
	})
	<-done
	return result
}

// Shutdown is the idempotent drain sequence: clear the timer, flush, await
// in-flight handles, flush once more to absorb anything enqueued during
// the first drain.
func (p *Processor) Shutdown(ctx context.Context) {
	p.clearTimer()
	_ = p.FlushSync(ctx)
	p.flusher.AwaitInFlight()
	_ = p.FlushSync(ctx)
}

func (p *Processor) warn(err error) {
	if p.emitter != nil {
		p.emitter.Emit(emitter.Warning, err)
	}
}

func (p *Processor) emitErr(err error) {
	if p.emitter != nil {
		p.emitter.Emit(emitter.Error, err)
	}
}
