package langfuse

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langfuse/langfuse-go/pkg/config"
)

// TestSpan_NestedGenerationSharesTraceAndParent covers the handle-nesting
// shape: a generation created under a span inherits the span's traceId and
// records the span as its parentObservationId.
func TestSpan_NestedGenerationSharesTraceAndParent(t *testing.T) {
	captured := &capturedBatch{}
	srv := newIngestionStub(t, captured)
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
		config.WithFlushAt(3),
	})

	trace := c.Trace(TraceOptions{Name: "root"})
	span := trace.Span(ObservationOptions{Name: "outer"})
	gen := span.Generation(GenerationOptions{
		ObservationOptions: ObservationOptions{Name: "inner"},
	})

	assert.Equal(t, trace.ID(), span.TraceID())
	assert.Equal(t, trace.ID(), gen.TraceID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Shutdown(ctx)

	var genEnv envelope
	for _, raw := range flatten(captured.all()) {
		var e envelope
		require.NoError(t, json.Unmarshal(raw, &e))
		if e.Body.Name == "inner" {
			genEnv = e
		}
	}
	assert.Equal(t, trace.ID(), genEnv.Body.TraceID)
	assert.Equal(t, span.ID(), genEnv.Body.ParentID)
}

// TestSpan_EndSetsEndTimeWhenOmitted covers the End() convenience: it should
// stamp EndTime from the client's clock when the caller didn't supply one.
func TestSpan_EndSetsEndTimeWhenOmitted(t *testing.T) {
	captured := &capturedBatch{}
	srv := newIngestionStub(t, captured)
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
		config.WithFlushAt(2),
	})

	span := c.Span(ObservationOptions{Name: "timed", TraceID: c.ids.New()})
	span.End(ObservationOptions{Output: "done"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Shutdown(ctx)

	var found bool
	for _, raw := range flatten(captured.all()) {
		var e struct {
			Type string `json:"type"`
			Body struct {
				EndTime string `json:"endTime"`
			} `json:"body"`
		}
		require.NoError(t, json.Unmarshal(raw, &e))
		if e.Type == "span-update" {
			require.NotEmpty(t, e.Body.EndTime)
			_, err := time.Parse(time.RFC3339Nano, e.Body.EndTime)
			assert.NoError(t, err)
			found = true
		}
	}
	assert.True(t, found)
}

// TestGeneration_ScoreAttachesToObservationNotParent covers ScoreOptions
// routing: Generation.Score must set observationId to the generation's own
// id, not reuse the parentObservationId field.
func TestGeneration_ScoreAttachesToObservationNotParent(t *testing.T) {
	captured := &capturedBatch{}
	srv := newIngestionStub(t, captured)
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
		config.WithFlushAt(3),
	})

	trace := c.Trace(TraceOptions{Name: "root"})
	gen := trace.Generation(GenerationOptions{ObservationOptions: ObservationOptions{Name: "g"}})
	gen.Score(ScoreOptions{Name: "quality", Value: 0.9})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Shutdown(ctx)

	var scoreEnv struct {
		Type string `json:"type"`
		Body struct {
			ObservationID string  `json:"observationId"`
			ParentID      string  `json:"parentObservationId"`
			Value         float64 `json:"value"`
		} `json:"body"`
	}
	for _, raw := range flatten(captured.all()) {
		var e struct {
			Type string `json:"type"`
			Body struct {
				ObservationID string  `json:"observationId"`
				ParentID      string  `json:"parentObservationId"`
				Value         float64 `json:"value"`
			} `json:"body"`
		}
		require.NoError(t, json.Unmarshal(raw, &e))
		if e.Type == "score-create" {
			scoreEnv = e
		}
	}
	assert.Equal(t, gen.ID(), scoreEnv.Body.ObservationID)
	assert.Empty(t, scoreEnv.Body.ParentID)
	assert.Equal(t, 0.9, scoreEnv.Body.Value)
}

type envelope struct {
	Type string `json:"type"`
	Body struct {
		Name     string `json:"name"`
		TraceID  string `json:"traceId"`
		ParentID string `json:"parentObservationId"`
	} `json:"body"`
}

func flatten(batches [][]json.RawMessage) []json.RawMessage {
	var all []json.RawMessage
	for _, b := range batches {
		all = append(all, b...)
	}
	return all
}
