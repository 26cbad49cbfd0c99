// Package emitter is the in-process typed event bus used to surface
// "error"/"warning"/"flush"/<EventKind> notifications to SDK callers: a
// synchronous in-process subscriber list rather than a broker-backed
// publisher, since there is no server-side fan-out to drive here, only
// local observers.
package emitter

import "sync"

// Well-known event names emitted by the ingestion pipeline.
const (
	Error   = "error"
	Warning = "warning"
	Flush   = "flush"
)

// Handler receives an emitted event's payload.
type Handler func(payload any)

// Emitter is a thread-safe, synchronous multi-topic pub-sub bus.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]Handler
}

// New creates an empty Emitter.
func New() *Emitter {
	return &Emitter{listeners: make(map[string][]Handler)}
}

// On registers h to be called whenever topic is emitted. Returns an
// unsubscribe function.
func (e *Emitter) On(topic string, h Handler) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[topic] = append(e.listeners[topic], h)
	idx := len(e.listeners[topic]) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		hs := e.listeners[topic]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Emit synchronously invokes every handler registered for topic, in
// registration order. A nil (unsubscribed) handler is skipped.
func (e *Emitter) Emit(topic string, payload any) {
	e.mu.RLock()
	hs := append([]Handler(nil), e.listeners[topic]...)
	e.mu.RUnlock()

	for _, h := range hs {
		if h != nil {
			h(payload)
		}
	}
}
