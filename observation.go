package langfuse

import (
	"github.com/langfuse/langfuse-go/pkg/event"
	"github.com/langfuse/langfuse-go/pkg/prompt"
)

// TraceOptions configures a new trace.
type TraceOptions struct {
	ID        string
	Name      string
	UserID    string
	SessionID string
	Release   string
	Version   string
	Input     any
	Output    any
	Metadata  any
	Tags      []string
	Public    *bool
}

// ObservationOptions configures a span/event/generation creation call.
// ParentObservationID nests it under an existing observation in the same
// trace.
type ObservationOptions struct {
	ID                  string
	TraceID             string
	ParentObservationID string
	Name                string
	StartTime           *event.Time
	EndTime             *event.Time
	Input               any
	Output              any
	Metadata            any
	Level               string
	StatusMessage       string
	Version             string
}

// GenerationOptions extends ObservationOptions with model metadata.
type GenerationOptions struct {
	ObservationOptions
	CompletionStartTime *event.Time
	Model               string
	ModelParameters     map[string]any
	Usage               *event.Usage
	// Prompt associates this generation with a fetched prompt. The
	// association is recorded only when Prompt is non-nil and not a
	// fallback prompt.
	Prompt *prompt.Prompt
}

// ScoreOptions configures a score attached to a trace and, optionally, a
// single observation within it.
type ScoreOptions struct {
	ID            string
	TraceID       string
	ObservationID string
	Name          string
	Value         any
	DataType      string
	Comment       string
}

// Trace is a handle to a created trace.
type Trace struct {
	client *Client
	id     string
}

// Trace creates a new trace and returns a handle for attaching nested
// observations and scores.
func (c *Client) Trace(opts TraceOptions) *Trace {
	id := opts.ID
	if id == "" {
		id = c.ids.New()
	}
	release := opts.Release
	if release == "" {
		release = c.cfg.Release
	}
	c.enqueue(event.KindTraceCreate, event.Body{
		ID:        id,
		Name:      opts.Name,
		UserID:    opts.UserID,
		SessionID: opts.SessionID,
		Release:   release,
		Version:   opts.Version,
		Input:     opts.Input,
		Output:    opts.Output,
		Metadata:  opts.Metadata,
		Tags:      opts.Tags,
		Public:    opts.Public,
	})
	return &Trace{client: c, id: id}
}

// ID returns the trace's id.
func (t *Trace) ID() string { return t.id }

// Span creates a span nested under this trace.
func (t *Trace) Span(opts ObservationOptions) *Span {
	opts.TraceID = t.id
	return t.client.Span(opts)
}

// Generation creates a generation nested under this trace.
func (t *Trace) Generation(opts GenerationOptions) *Generation {
	opts.TraceID = t.id
	return t.client.Generation(opts)
}

// Event records a point-in-time event nested under this trace.
func (t *Trace) Event(opts ObservationOptions) {
	opts.TraceID = t.id
	t.client.Event(opts)
}

// Score attaches a score to this trace.
func (t *Trace) Score(opts ScoreOptions) {
	opts.TraceID = t.id
	t.client.Score(opts)
}

// Span is a handle to a created span observation.
type Span struct {
	client  *Client
	id      string
	traceID string
}

// Span creates a top-level span, auto-creating a trace if opts.TraceID is
// empty.
func (c *Client) Span(opts ObservationOptions) *Span {
	id := opts.ID
	if id == "" {
		id = c.ids.New()
	}
	traceID := c.enqueue(event.KindSpanCreate, observationBody(id, opts))
	return &Span{client: c, id: id, traceID: traceID}
}

// ID returns the span's id.
func (s *Span) ID() string { return s.id }

// TraceID returns the id of the trace this span belongs to.
func (s *Span) TraceID() string { return s.traceID }

// Span creates a child span nested under this one.
func (s *Span) Span(opts ObservationOptions) *Span {
	opts.TraceID = s.traceID
	opts.ParentObservationID = s.id
	return s.client.Span(opts)
}

// Generation creates a child generation nested under this span.
func (s *Span) Generation(opts GenerationOptions) *Generation {
	opts.TraceID = s.traceID
	opts.ParentObservationID = s.id
	return s.client.Generation(opts)
}

// Event records a point-in-time event nested under this span.
func (s *Span) Event(opts ObservationOptions) {
	opts.TraceID = s.traceID
	opts.ParentObservationID = s.id
	s.client.Event(opts)
}

// Score attaches a score to this span's observation.
func (s *Span) Score(opts ScoreOptions) {
	opts.TraceID = s.traceID
	opts.ObservationID = s.id
	s.client.Score(opts)
}

// Update patches fields on this span via a span-update event.
func (s *Span) Update(opts ObservationOptions) {
	opts.ID = s.id
	opts.TraceID = s.traceID
	s.client.enqueue(event.KindSpanUpdate, observationBody(s.id, opts))
}

// End is a convenience for Update that also sets EndTime, mirroring the
// source SDKs' span.end() shorthand.
func (s *Span) End(opts ObservationOptions) {
	if opts.EndTime == nil {
		now := s.client.clock.Now()
		opts.EndTime = event.NewTime(now)
	}
	s.Update(opts)
}

// Generation is a handle to a created generation observation.
type Generation struct {
	client  *Client
	id      string
	traceID string
}

// Generation creates a top-level generation, auto-creating a trace if
// opts.TraceID is empty.
func (c *Client) Generation(opts GenerationOptions) *Generation {
	id := opts.ID
	if id == "" {
		id = c.ids.New()
	}
	traceID := c.enqueue(event.KindGenerationCreate, generationBody(id, opts))
	return &Generation{client: c, id: id, traceID: traceID}
}

// ID returns the generation's id.
func (g *Generation) ID() string { return g.id }

// TraceID returns the id of the trace this generation belongs to.
func (g *Generation) TraceID() string { return g.traceID }

// Update patches fields on this generation via a generation-update event.
func (g *Generation) Update(opts GenerationOptions) {
	opts.ID = g.id
	opts.TraceID = g.traceID
	g.client.enqueue(event.KindGenerationUpdate, generationBody(g.id, opts))
}

// End is a convenience for Update that also sets EndTime.
func (g *Generation) End(opts GenerationOptions) {
	if opts.EndTime == nil {
		now := g.client.clock.Now()
		opts.EndTime = event.NewTime(now)
	}
	g.Update(opts)
}

// Score attaches a score to this generation's observation.
func (g *Generation) Score(opts ScoreOptions) {
	opts.TraceID = g.traceID
	opts.ObservationID = g.id
	g.client.Score(opts)
}

// Event records a top-level point-in-time event, auto-creating a trace if
// opts.TraceID is empty.
func (c *Client) Event(opts ObservationOptions) {
	id := opts.ID
	if id == "" {
		id = c.ids.New()
	}
	c.enqueue(event.KindEventCreate, observationBody(id, opts))
}

// Score attaches a top-level score to a trace and, optionally, a single
// observation within it.
func (c *Client) Score(opts ScoreOptions) {
	id := opts.ID
	if id == "" {
		id = c.ids.New()
	}
	c.enqueue(event.KindScoreCreate, event.Body{
		ID:            id,
		TraceID:       opts.TraceID,
		ObservationID: opts.ObservationID,
		Name:          opts.Name,
		Value:         opts.Value,
		DataType:      opts.DataType,
		Comment:       opts.Comment,
	})
}

func observationBody(id string, opts ObservationOptions) event.Body {
	return event.Body{
		ID:            id,
		TraceID:       opts.TraceID,
		ParentID:      opts.ParentObservationID,
		Name:          opts.Name,
		StartTime:     opts.StartTime,
		EndTime:       opts.EndTime,
		Input:         opts.Input,
		Output:        opts.Output,
		Metadata:      opts.Metadata,
		Level:         opts.Level,
		StatusMessage: opts.StatusMessage,
		Version:       opts.Version,
	}
}

// generationBody builds the body for a generation-create/-update event. The
// (promptName, promptVersion) association is recorded only when Prompt is
// set and not a fallback.
func generationBody(id string, opts GenerationOptions) event.Body {
	b := observationBody(id, opts.ObservationOptions)
	b.CompletionStartTime = opts.CompletionStartTime
	b.Model = opts.Model
	b.ModelParameters = opts.ModelParameters
	b.Usage = opts.Usage
	if opts.Prompt != nil && !opts.Prompt.IsFallback {
		b.PromptName = opts.Prompt.Name
		version := opts.Prompt.Version
		b.PromptVersion = &version
	}
	return b
}
