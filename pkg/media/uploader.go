package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/langfuse/langfuse-go/pkg/clock"
	"github.com/langfuse/langfuse-go/pkg/emitter"
	"github.com/langfuse/langfuse-go/pkg/event"
	"github.com/langfuse/langfuse-go/pkg/transport"
)

// Uploader performs the per-leaf upload protocol: register, PUT to the
// presigned URL, then PATCH the upload outcome.
type Uploader struct {
	transport *transport.Client
	clock     clock.Clock
	emitter   *emitter.Emitter
}

// NewUploader builds an Uploader. emit may be nil.
func NewUploader(t *transport.Client, c clock.Clock, emit *emitter.Emitter) *Uploader {
	return &Uploader{transport: t, clock: c, emitter: emit}
}

type uploadURLRequest struct {
	ContentLength int    `json:"contentLength"`
	ContentType   string `json:"contentType"`
	Sha256Hash    string `json:"sha256Hash"`
	TraceID       string `json:"traceId"`
	ObservationID string `json:"observationId,omitempty"`
	Field         string `json:"field"`
}

type uploadURLResponse struct {
	MediaID   string `json:"mediaId"`
	UploadURL string `json:"uploadUrl,omitempty"`
}

type patchMediaBody struct {
	UploadedAt       string `json:"uploadedAt"`
	UploadHTTPStatus int    `json:"uploadHttpStatus,omitempty"`
	UploadHTTPError  string `json:"uploadHttpError,omitempty"`
	UploadTimeMs     int64  `json:"uploadTimeMs"`
}

// Upload runs the full registration → PUT → PATCH protocol for one leaf.
// Every failure along the way is swallowed rather than surfaced: the
// reference survives in its unfinished state for later inspection. The
// event processor waits for Upload to return before it serializes and
// enqueues the event.
func (u *Uploader) Upload(ctx context.Context, w *Wrapper, traceID, observationID, field string) {
	if !u.transport.Configured() {
		w.MarkFailed()
		return
	}

	reqBody := uploadURLRequest{
		ContentLength: w.ContentLength(),
		ContentType:   w.ContentType,
		Sha256Hash:    w.SHA256Base64(),
		TraceID:       traceID,
		ObservationID: observationID,
		Field:         field,
	}

	resp, err := u.transport.Do(ctx, http.MethodPost, "/api/public/media", reqBody)
	if err != nil {
		w.MarkFailed()
		u.warn(err)
		return
	}

	var out uploadURLResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		w.MarkFailed()
		u.warn(err)
		return
	}
	w.SetMediaID(out.MediaID)

	if out.UploadURL == "" {
		// Content already held by the server; nothing more to do.
		return
	}

	start := u.clock.Now()
	putResp, putErr := u.transport.PutRaw(ctx, out.UploadURL, w.ContentBytes, map[string]string{
		"Content-Type":          w.ContentType,
		"x-amz-checksum-sha256": w.SHA256Base64(),
	})
	elapsedMs := u.clock.Now().Sub(start).Milliseconds()

	patch := patchMediaBody{
		UploadedAt:   event.ISOUTC(u.clock.Now()),
		UploadTimeMs: elapsedMs,
	}
	if putErr != nil {
		patch.UploadHTTPError = putErr.Error()
		var httpErr *transport.HTTPError
		if errors.As(putErr, &httpErr) {
			patch.UploadHTTPStatus = httpErr.Status
		}
	} else {
		patch.UploadHTTPStatus = putResp.StatusCode
	}

	if _, err := u.transport.Do(ctx, http.MethodPatch, "/api/public/media/"+out.MediaID, patch); err != nil {
		u.warn(err)
	}
}

func (u *Uploader) warn(err error) {
	if u.emitter != nil {
		u.emitter.Emit(emitter.Warning, err)
	}
}
