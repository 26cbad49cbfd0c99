package queue

import (
	"encoding/json"
	"sync"

	"github.com/langfuse/langfuse-go/pkg/event"
)

// Queue is the ordered sequence of pending event envelopes. Ordering is
// insertion order; a single mutex makes read-list/slice-head/write-remainder
// atomic with respect to concurrent Append/PopBatch calls on one process.
type Queue struct {
	mu    sync.Mutex
	store Store
}

// New creates a Queue backed by store.
func New(store Store) *Queue {
	return &Queue{store: store}
}

// Append adds envs to the tail of the queue, preserving the order of the
// calls that produced them.
func (q *Queue) Append(envs ...event.Envelope) {
	if len(envs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	current := q.readList()
	current = append(current, envs...)
	q.writeList(current)
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.readList())
}

// PopBatch removes and returns up to max envelopes from the head of the
// queue, persisting the remainder back to the store in the same critical
// section. max <= 0 means "all".
func (q *Queue) PopBatch(max int) []event.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	current := q.readList()
	if len(current) == 0 {
		return nil
	}
	if max <= 0 || max > len(current) {
		max = len(current)
	}

	batch := append([]event.Envelope(nil), current[:max]...)
	remainder := append([]event.Envelope(nil), current[max:]...)
	q.writeList(remainder)
	return batch
}

// Requeue re-inserts envs at the head of the queue. The flusher uses it for
// the carryover of a size-limited batch; a batch that exhausts its retries
// is dropped, not re-enqueued.
func (q *Queue) Requeue(envs []event.Envelope) {
	if len(envs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	current := q.readList()
	merged := append(append([]event.Envelope(nil), envs...), current...)
	q.writeList(merged)
}

func (q *Queue) readList() []event.Envelope {
	raw, ok := q.store.Get(QueueKey)
	if !ok {
		return nil
	}
	return decodeList(raw)
}

func (q *Queue) writeList(list []event.Envelope) {
	q.store.Set(QueueKey, list)
}

// decodeList normalizes whatever a Store handed back into a live
// []event.Envelope. An in-process Store (MemoryStore) returns the exact
// value it was given, so the common case is a type assertion with no
// JSON round trip; a byte-oriented Store (FileStore) returns
// json.RawMessage/[]byte instead, which is decoded here. A corrupt or
// unrecognized value is treated as an empty list (fail-closed).
func decodeList(raw any) []event.Envelope {
	switch v := raw.(type) {
	case []event.Envelope:
		return v
	case json.RawMessage:
		var list []event.Envelope
		if err := json.Unmarshal(v, &list); err != nil {
			return nil
		}
		return list
	case []byte:
		var list []event.Envelope
		if err := json.Unmarshal(v, &list); err != nil {
			return nil
		}
		return list
	default:
		return nil
	}
}
