// Package event defines the wire data model for telemetry records: the
// discriminated envelope every other component moves through the pipeline
// unchanged in shape.
package event

import (
	"encoding/json"
	"time"
)

// Kind discriminates the envelope body shape.
type Kind string

// The seven event kinds the ingestion protocol recognizes.
const (
	KindTraceCreate      Kind = "trace-create"
	KindEventCreate      Kind = "event-create"
	KindSpanCreate       Kind = "span-create"
	KindGenerationCreate Kind = "generation-create"
	KindScoreCreate      Kind = "score-create"
	KindSpanUpdate       Kind = "span-update"
	KindGenerationUpdate Kind = "generation-update"
)

// IsObservation reports whether a Kind carries an observation body (as
// opposed to a trace or score).
func (k Kind) IsObservation() bool {
	switch k {
	case KindEventCreate, KindSpanCreate, KindGenerationCreate, KindSpanUpdate, KindGenerationUpdate:
		return true
	default:
		return false
	}
}

// IsTrace reports whether a Kind creates a trace.
func (k Kind) IsTrace() bool { return k == KindTraceCreate }

// IsGeneration reports whether a Kind is a generation variant, the only
// bodies that carry prompt association and model usage fields.
func (k Kind) IsGeneration() bool { return k == KindGenerationCreate || k == KindGenerationUpdate }

// Usage reports token/cost accounting for a generation.
type Usage struct {
	Input  *int64 `json:"input,omitempty"`
	Output *int64 `json:"output,omitempty"`
	Total  *int64 `json:"total,omitempty"`
	Unit   string `json:"unit,omitempty"`
}

// Body is the sum-over-per-kind record shape, modeled as one flexible
// struct rather than N Go types: every variant shares the same
// envelope-adjacent fields, and the ones a given Kind doesn't use simply
// stay zero/omitted on the wire. Input/Output/Metadata are the only fields
// masking, truncation, and media-scanning ever touch.
type Body struct {
	ID       string `json:"id"`
	TraceID  string `json:"traceId,omitempty"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parentObservationId,omitempty"`

	StartTime           *Time `json:"startTime,omitempty"`
	EndTime             *Time `json:"endTime,omitempty"`
	CompletionStartTime *Time `json:"completionStartTime,omitempty"`

	Input    any `json:"input,omitempty"`
	Output   any `json:"output,omitempty"`
	Metadata any `json:"metadata,omitempty"`

	Level         string   `json:"level,omitempty"`
	StatusMessage string   `json:"statusMessage,omitempty"`
	Version       string   `json:"version,omitempty"`
	Release       string   `json:"release,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Public        *bool    `json:"public,omitempty"`

	// Generation-only fields.
	Model           string         `json:"model,omitempty"`
	ModelParameters map[string]any `json:"modelParameters,omitempty"`
	Usage           *Usage         `json:"usage,omitempty"`
	PromptName      string         `json:"promptName,omitempty"`
	PromptVersion   *int           `json:"promptVersion,omitempty"`

	// Score-only fields. ObservationID is distinct from ParentID: a score
	// attaches to a single observation within a trace without nesting a new
	// observation under it.
	ObservationID string `json:"observationId,omitempty"`
	Value         any    `json:"value,omitempty"`
	DataType      string `json:"dataType,omitempty"`
	Comment       string `json:"comment,omitempty"`
}

// HasTraceID reports whether body.TraceID is non-empty, which the façade
// guarantees for every non-trace event before it reaches the pipeline.
func (b *Body) HasTraceID() bool { return b.TraceID != "" }

// Envelope is the top-level record appended to the queue and sent in
// ingestion batches.
type Envelope struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Timestamp time.Time
	Body      Body `json:"body"`
}

// envelopeWire is Envelope's JSON shape: Timestamp always renders as an
// ISO-8601 UTC string, since the client converts language-native
// timestamps to ISO-8601-UTC at serialization time.
type envelopeWire struct {
	ID        string `json:"id"`
	Type      Kind   `json:"type"`
	Timestamp string `json:"timestamp"`
	Body      Body   `json:"body"`
}

// MarshalJSON renders Timestamp as RFC3339 UTC with millisecond precision.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeWire{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: ISOUTC(e.Timestamp),
		Body:      e.Body,
	})
}

// UnmarshalJSON parses the wire shape back into an Envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return err
	}
	e.ID = w.ID
	e.Type = w.Type
	e.Timestamp = t
	e.Body = w.Body
	return nil
}

// ISOUTC formats t as an ISO-8601 UTC string, the wire format every
// time-valued field uses.
func ISOUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Time wraps time.Time so every time-valued body field (startTime, endTime,
// completionStartTime) serializes the same ISO-8601-UTC way the envelope
// timestamp does, converting language-native timestamps to ISO-8601-UTC at
// serialization time (a plain *time.Time would instead marshal with Go's
// RFC3339Nano-plus-offset default).
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) *Time { return &Time{Time: t} }

// MarshalJSON renders the wrapped instant as an ISO-8601 UTC string.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(ISOUTC(t.Time))
}

// UnmarshalJSON parses an ISO-8601 UTC string back into the wrapped instant.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
