package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langfuse/langfuse-go/pkg/event"
)

func envelope(id string) event.Envelope {
	return event.Envelope{
		ID:        id,
		Type:      event.KindEventCreate,
		Timestamp: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Body:      event.Body{ID: id},
	}
}

func TestQueue_AppendPreservesOrder(t *testing.T) {
	q := New(NewMemoryStore())
	q.Append(envelope("a"), envelope("b"))
	q.Append(envelope("c"))

	require.Equal(t, 3, q.Len())

	batch := q.PopBatch(0)
	require.Len(t, batch, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(batch))
}

func TestQueue_PopBatchHeadTruncatesAndLeavesRemainder(t *testing.T) {
	q := New(NewMemoryStore())
	q.Append(envelope("a"), envelope("b"), envelope("c"), envelope("d"))

	batch := q.PopBatch(2)
	assert.Equal(t, []string{"a", "b"}, ids(batch))
	assert.Equal(t, 2, q.Len())

	rest := q.PopBatch(10)
	assert.Equal(t, []string{"c", "d"}, ids(rest))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopBatchOnEmptyQueueReturnsNil(t *testing.T) {
	q := New(NewMemoryStore())
	assert.Nil(t, q.PopBatch(5))
}

func TestQueue_RequeuePrependsToHead(t *testing.T) {
	q := New(NewMemoryStore())
	q.Append(envelope("c"), envelope("d"))
	q.Requeue([]event.Envelope{envelope("a"), envelope("b")})

	batch := q.PopBatch(0)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(batch))
}

func TestQueue_ConcurrentAppendsDoNotLoseEvents(t *testing.T) {
	q := New(NewMemoryStore())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Append(envelope(string(rune('a' + n%26))))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, q.Len())
}

func TestQueue_FailClosedStoreYieldsEmptyQueue(t *testing.T) {
	q := New(alwaysFailStore{})
	assert.Equal(t, 0, q.Len())
	assert.Nil(t, q.PopBatch(0))

	// Append after a failing Get should not panic even though the
	// underlying store never actually persists anything.
	assert.NotPanics(t, func() { q.Append(envelope("a")) })
}

// TestMemoryStore_ReflectsMutationsAfterEnqueue pins down a MemoryStore
// property: it holds the live envelope slice rather
// than a JSON snapshot, so a field that mutates after Append is reflected
// when the batch is later popped and marshaled.
func TestMemoryStore_ReflectsMutationsAfterEnqueue(t *testing.T) {
	held := &mutableBody{}
	q := New(NewMemoryStore())
	q.Append(event.Envelope{ID: "a", Type: event.KindEventCreate, Body: event.Body{ID: "a", Metadata: held}})

	held.Value = "resolved-after-enqueue"

	batch := q.PopBatch(0)
	require.Len(t, batch, 1)
	assert.Equal(t, "resolved-after-enqueue", batch[0].Body.Metadata.(*mutableBody).Value)
}

type mutableBody struct {
	Value string `json:"value"`
}

func ids(envs []event.Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.ID
	}
	return out
}

type alwaysFailStore struct{}

func (alwaysFailStore) Get(key string) (any, bool) { return nil, false }
func (alwaysFailStore) Set(key string, value any)  {}
