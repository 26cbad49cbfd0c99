package langfuse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langfuse/langfuse-go/pkg/config"
	"github.com/langfuse/langfuse-go/pkg/event"
)

// TestReadClient_FetchTrace_DecodesResponse covers the simple single-record
// read path.
func TestReadClient_FetchTrace_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/traces/abc-123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "abc-123", "name": "my-trace"})
	}))
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := c.Read().FetchTrace(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", out["id"])
	assert.Equal(t, "my-trace", out["name"])
}

// TestReadClient_FetchTraces_EncodesListOptions covers query-parameter
// construction, including a caller-supplied ISO-8601-UTC timestamp filter
// pre-encoded via event.ISOUTC.
func TestReadClient_FetchTraces_EncodesListOptions(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
	})

	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	extra := url.Values{}
	extra.Set("fromTimestamp", event.ISOUTC(since))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Read().FetchTraces(ctx, ListOptions{Page: 2, Limit: 50, Extra: extra})
	require.NoError(t, err)

	assert.Equal(t, "2", gotQuery.Get("page"))
	assert.Equal(t, "50", gotQuery.Get("limit"))
	assert.Equal(t, "2026-01-02T03:04:05.000Z", gotQuery.Get("fromTimestamp"))
}

// TestReadClient_CreateAndFetchDataset covers the dataset create/read
// round-trip.
func TestReadClient_CreateAndFetchDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/api/public/v2/datasets", r.URL.Path)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "eval-set", body["name"])
			_ = json.NewEncoder(w).Encode(Dataset{ID: "ds-1", Name: "eval-set"})
		case http.MethodGet:
			assert.Equal(t, "/api/public/v2/datasets/eval-set", r.URL.Path)
			_ = json.NewEncoder(w).Encode(Dataset{ID: "ds-1", Name: "eval-set"})
		}
	}))
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	created, err := c.Read().CreateDataset(ctx, "eval-set", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ds-1", created.ID)

	fetched, err := c.Read().FetchDataset(ctx, "eval-set")
	require.NoError(t, err)
	assert.Equal(t, created, fetched)
}

// TestReadClient_FetchDatasetItems_SetsDatasetNameFilter confirms the
// datasetName filter is always applied alongside ListOptions.
func TestReadClient_FetchDatasetItems_SetsDatasetNameFilter(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New([]config.Option{
		config.WithCredentials("pk", "sk"),
		config.WithBaseURL(srv.URL),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Read().FetchDatasetItems(ctx, "eval-set", ListOptions{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, "eval-set", gotQuery.Get("datasetName"))
	assert.Equal(t, "10", gotQuery.Get("limit"))
}
