package langfuse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/langfuse/langfuse-go/pkg/prompt"
	"github.com/langfuse/langfuse-go/pkg/promptcache"
)

// promptWire is the wire shape returned by GET/POST /api/public/v2/prompts.
// Prompt itself is polymorphic on Type: Text carries a string, Chat a
// []ChatItem.
type promptWire struct {
	Name          string          `json:"name"`
	Version       int             `json:"version"`
	Config        map[string]any  `json:"config"`
	Labels        []string        `json:"labels"`
	Tags          []string        `json:"tags"`
	Type          prompt.Type     `json:"type"`
	Prompt        json.RawMessage `json:"prompt"`
	CommitMessage string          `json:"commitMessage,omitempty"`
}

func (w promptWire) toPrompt() (prompt.Prompt, error) {
	p := prompt.Prompt{
		Name:          w.Name,
		Version:       w.Version,
		Config:        w.Config,
		Labels:        w.Labels,
		Tags:          w.Tags,
		Type:          w.Type,
		CommitMessage: w.CommitMessage,
	}
	switch w.Type {
	case prompt.TypeChat:
		if err := json.Unmarshal(w.Prompt, &p.Chat); err != nil {
			return prompt.Prompt{}, fmt.Errorf("decode chat prompt: %w", err)
		}
	default:
		if err := json.Unmarshal(w.Prompt, &p.Text); err != nil {
			return prompt.Prompt{}, fmt.Errorf("decode text prompt: %w", err)
		}
	}
	return p, nil
}

// fetchPrompt is the promptcache.FetchFunc backing Client's cache: GET
// /api/public/v2/prompts/<name>?version=|label=.
func (c *Client) fetchPrompt(ctx context.Context, name string, opts promptcache.FetchOptions) (prompt.Prompt, error) {
	q := url.Values{}
	if opts.Version != nil {
		q.Set("version", fmt.Sprintf("%d", *opts.Version))
	} else if opts.Label != "" {
		q.Set("label", opts.Label)
	}

	path := "/api/public/v2/prompts/" + url.PathEscape(name)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.transport.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return prompt.Prompt{}, err
	}
	var wire promptWire
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return prompt.Prompt{}, fmt.Errorf("decode prompt response: %w", err)
	}
	return wire.toPrompt()
}

// CreatePromptOptions configures a prompt create/upsert call via POST
// /api/public/v2/prompts.
type CreatePromptOptions struct {
	Name          string
	Type          prompt.Type
	Text          string // set when Type == prompt.TypeText
	Chat          []prompt.ChatItem
	Config        map[string]any
	Labels        []string
	Tags          []string
	CommitMessage string
}

// CreatePrompt creates or upserts a new prompt version. Unlike telemetry
// calls, CreatePrompt surfaces errors directly to the caller. Along with
// getPrompt when no fallback is configured, it is one of the few calls
// allowed to return an error instead of routing it to the "error" event.
func (c *Client) CreatePrompt(ctx context.Context, opts CreatePromptOptions) (prompt.Prompt, error) {
	promptType := opts.Type
	if promptType == "" {
		promptType = prompt.TypeText
	}

	var raw any = opts.Text
	if promptType == prompt.TypeChat {
		raw = opts.Chat
	}

	reqBody := map[string]any{
		"name":   opts.Name,
		"type":   promptType,
		"prompt": raw,
	}
	if opts.Config != nil {
		reqBody["config"] = opts.Config
	}
	if opts.Labels != nil {
		reqBody["labels"] = opts.Labels
	}
	if opts.Tags != nil {
		reqBody["tags"] = opts.Tags
	}
	if opts.CommitMessage != "" {
		reqBody["commitMessage"] = opts.CommitMessage
	}

	resp, err := c.transport.Do(ctx, http.MethodPost, "/api/public/v2/prompts", reqBody)
	if err != nil {
		return prompt.Prompt{}, err
	}
	var wire promptWire
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return prompt.Prompt{}, fmt.Errorf("decode prompt response: %w", err)
	}
	return wire.toPrompt()
}
