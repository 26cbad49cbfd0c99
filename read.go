package langfuse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/langfuse/langfuse-go/pkg/transport"
)

// ReadClient is a thin REST façade over the read-only trace/observation/
// session/dataset endpoints. It is peripheral: no new engineering beyond
// building authenticated requests and decoding JSON.
type ReadClient struct {
	transport *transport.Client
}

// ListOptions narrows a list call with simple query parameters. Date-valued
// entries MUST be pre-encoded as ISO-8601-UTC strings by the caller; use
// event.ISOUTC(t) to produce them before placing them in Extra.
type ListOptions struct {
	Page  int
	Limit int
	Extra url.Values
}

func (opts ListOptions) values() url.Values {
	v := url.Values{}
	if opts.Extra != nil {
		for k, vals := range opts.Extra {
			v[k] = vals
		}
	}
	if opts.Page > 0 {
		v.Set("page", fmt.Sprintf("%d", opts.Page))
	}
	if opts.Limit > 0 {
		v.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	return v
}

func (r *ReadClient) get(ctx context.Context, path string, out any) error {
	resp, err := r.transport.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp.Body, out)
}

// FetchTrace returns the raw decoded JSON for GET /api/public/traces/<id>.
func (r *ReadClient) FetchTrace(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	err := r.get(ctx, "/api/public/traces/"+url.PathEscape(id), &out)
	return out, err
}

// FetchTraces lists traces via GET /api/public/traces.
func (r *ReadClient) FetchTraces(ctx context.Context, opts ListOptions) (map[string]any, error) {
	var out map[string]any
	path := "/api/public/traces"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	err := r.get(ctx, path, &out)
	return out, err
}

// FetchObservations lists observations via GET /api/public/observations.
func (r *ReadClient) FetchObservations(ctx context.Context, opts ListOptions) (map[string]any, error) {
	var out map[string]any
	path := "/api/public/observations"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	err := r.get(ctx, path, &out)
	return out, err
}

// FetchObservation returns GET /api/public/observations/<id>.
func (r *ReadClient) FetchObservation(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	err := r.get(ctx, "/api/public/observations/"+url.PathEscape(id), &out)
	return out, err
}

// FetchSessions lists sessions via GET /api/public/sessions.
func (r *ReadClient) FetchSessions(ctx context.Context, opts ListOptions) (map[string]any, error) {
	var out map[string]any
	path := "/api/public/sessions"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	err := r.get(ctx, path, &out)
	return out, err
}

// FetchSession returns GET /api/public/sessions/<id>.
func (r *ReadClient) FetchSession(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	err := r.get(ctx, "/api/public/sessions/"+url.PathEscape(id), &out)
	return out, err
}

// Dataset is the minimal shape returned by the dataset endpoints, enough
// for read-only inspection; dataset-experimentation helpers are out of
// scope here.
type Dataset struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// FetchDataset returns GET /api/public/v2/datasets/<name>.
func (r *ReadClient) FetchDataset(ctx context.Context, name string) (Dataset, error) {
	var out Dataset
	err := r.get(ctx, "/api/public/v2/datasets/"+url.PathEscape(name), &out)
	return out, err
}

// CreateDataset issues POST /api/public/v2/datasets.
func (r *ReadClient) CreateDataset(ctx context.Context, name, description string, metadata map[string]any) (Dataset, error) {
	reqBody := map[string]any{"name": name}
	if description != "" {
		reqBody["description"] = description
	}
	if metadata != nil {
		reqBody["metadata"] = metadata
	}
	resp, err := r.transport.Do(ctx, http.MethodPost, "/api/public/v2/datasets", reqBody)
	if err != nil {
		return Dataset{}, err
	}
	var out Dataset
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset response: %w", err)
	}
	return out, nil
}

// FetchDatasetRuns lists a dataset's runs via GET
// /api/public/datasets/<name>/runs.
func (r *ReadClient) FetchDatasetRuns(ctx context.Context, datasetName string, opts ListOptions) (map[string]any, error) {
	path := "/api/public/datasets/" + url.PathEscape(datasetName) + "/runs"
	if q := opts.values().Encode(); q != "" {
		path += "?" + q
	}
	var out map[string]any
	err := r.get(ctx, path, &out)
	return out, err
}

// FetchDatasetItems lists a dataset's items via GET
// /api/public/dataset-items with a datasetName filter.
func (r *ReadClient) FetchDatasetItems(ctx context.Context, datasetName string, opts ListOptions) (map[string]any, error) {
	v := opts.values()
	v.Set("datasetName", datasetName)
	var out map[string]any
	err := r.get(ctx, "/api/public/dataset-items?"+v.Encode(), &out)
	return out, err
}
