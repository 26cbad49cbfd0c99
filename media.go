package langfuse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/langfuse/langfuse-go/pkg/media"
)

// MediaRecord is the metadata returned by GET /api/public/media/<mediaId>:
// a fetchable (presigned, expiring) URL plus content metadata.
type MediaRecord struct {
	MediaID       string `json:"mediaId"`
	ContentType   string `json:"contentType"`
	ContentLength int    `json:"contentLength"`
	URL           string `json:"url"`
	URLExpiry     string `json:"urlExpiry,omitempty"`
	UploadedAt    string `json:"uploadedAt,omitempty"`
}

// GetMedia fetches a media item's record by id.
func (c *Client) GetMedia(ctx context.Context, mediaID string) (MediaRecord, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, "/api/public/media/"+url.PathEscape(mediaID), nil)
	if err != nil {
		return MediaRecord{}, err
	}
	var rec MediaRecord
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return MediaRecord{}, fmt.Errorf("decode media record: %w", err)
	}
	return rec, nil
}

// ResolveMedia walks value and replaces every media reference occurrence in
// string values with its fetched base64 data URI, the reverse of the
// substitution the event pipeline performs. Each distinct mediaId is fetched
// at most once; a fetch failure leaves the reference in place and emits a
// "warning".
func (c *Client) ResolveMedia(ctx context.Context, value any) any {
	return media.Resolve(ctx, value, c.fetchMediaDataURI, c.emitter)
}

// fetchMediaDataURI is the media.Fetcher backing ResolveMedia: resolve the
// record, download the content from its presigned URL, re-encode as a data
// URI.
func (c *Client) fetchMediaDataURI(ctx context.Context, mediaID string) (string, error) {
	rec, err := c.GetMedia(ctx, mediaID)
	if err != nil {
		return "", err
	}
	resp, err := c.transport.GetRaw(ctx, rec.URL)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(resp.Body)
	return "data:" + rec.ContentType + ";base64," + encoded, nil
}
