package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISOUTC_FormatsAsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	local := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	got := ISOUTC(local)
	assert.Equal(t, "2026-07-31T08:00:00.000Z", got)
}

func TestEnvelope_RoundTripsTimestamp(t *testing.T) {
	env := Envelope{
		ID:        "env-1",
		Type:      KindTraceCreate,
		Timestamp: time.Date(2026, 7, 31, 12, 30, 0, 0, time.UTC),
		Body:      Body{ID: "trace-1", Name: "t1"},
	}

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":"2026-07-31T12:30:00.000Z"`)

	var got Envelope
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, env.Type, got.Type)
	assert.True(t, env.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, env.Body.Name, got.Body.Name)
}

func TestKind_Classification(t *testing.T) {
	assert.True(t, KindTraceCreate.IsTrace())
	assert.False(t, KindTraceCreate.IsObservation())

	assert.True(t, KindGenerationCreate.IsObservation())
	assert.True(t, KindGenerationCreate.IsGeneration())

	assert.True(t, KindSpanUpdate.IsObservation())
	assert.False(t, KindSpanUpdate.IsGeneration())

	assert.False(t, KindScoreCreate.IsObservation())
	assert.False(t, KindScoreCreate.IsTrace())
}
