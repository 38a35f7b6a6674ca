// Package httpx provides the HTTP surface of the review pipeline: webhook
// intake, the enriched executions listing, and health checks.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/platform"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

// maxWebhookBodyBytes bounds webhook payloads; the largest real provider
// deliveries (GitHub pull_request with full file lists) stay well under this.
const maxWebhookBodyBytes = 5 * 1024 * 1024

// WebhookHandlers provides HTTP handlers for webhook intake.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// eventHeaders lists the delivery-event headers per provider convention.
// The first non-empty header wins; the "event" query parameter is a fallback
// for providers that do not send one (Azure DevOps service hooks carry the
// event type in the payload envelope).
var eventHeaders = []string{
	"X-GitHub-Event",
	"X-Gitlab-Event",
	"X-Event-Key",
}

// correlationHeaders lists provider delivery-id headers, checked in order.
var correlationHeaders = []string{
	"X-GitHub-Delivery",
	"X-Request-UUID",
	"X-Gitlab-Event-UUID",
	"X-Correlation-ID",
}

// Receive accepts one webhook delivery, enqueues it durably, and replies 202
// with the correlation id. Redeliveries of an already-accepted delivery are
// acknowledged with 200 so providers stop retrying.
func (h *WebhookHandlers) Receive(w http.ResponseWriter, r *http.Request) {
	platformID := r.PathValue("platform")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "read_body_failed", Err: err})
		return
	}
	if len(payload) > maxWebhookBodyBytes {
		WriteError(w, ErrorParams{
			Code:    http.StatusRequestEntityTooLarge,
			ErrCode: "payload_too_large",
			Err:     fmt.Errorf("webhook payload exceeds %d bytes", maxWebhookBodyBytes),
		})
		return
	}

	job, err := h.Svc.StartWebhookProcessing(r.Context(), service.StartWebhookParams{
		PlatformType:  platformID,
		Event:         eventName(r),
		Payload:       payload,
		CorrelationID: correlationID(r),
	})
	if err != nil {
		h.writeStartError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"correlationId": job.CorrelationID,
		"platform":      string(job.Metadata.PlatformType),
		"status":        string(job.Status),
	})
}

func (h *WebhookHandlers) writeStartError(w http.ResponseWriter, err error) {
	var unsupported *platform.UnsupportedPlatformError
	switch {
	case errors.As(err, &unsupported):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unsupported_platform", Err: err})
	case errors.Is(err, data.ErrDuplicateWebhookJob):
		// Idempotent redelivery: the job is already queued or processed.
		WriteJSON(w, http.StatusOK, map[string]string{"status": "already_accepted"})
	case errors.Is(err, core.ErrQueueUnavailable):
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "queue_unavailable", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "webhook_rejected", Err: err})
	}
}

func eventName(r *http.Request) string {
	for _, header := range eventHeaders {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return r.URL.Query().Get("event")
}

func correlationID(r *http.Request) string {
	for _, header := range correlationHeaders {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return ""
}
