// Package service holds the business logic of the review pipeline: webhook
// intake, automation dispatch, and enriched-execution aggregation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/platform"
)

// webhookMaxRetries encodes the intake policy: retry once, then surface as
// dead-lettered. Dead-letter handling is the queue's concern, not ours.
const webhookMaxRetries = 1

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Queue  core.WebhookQueue // Required: durable job queue
	Logger *slog.Logger      // Optional: structured logger
}

// WebhookService normalizes inbound webhook events and durably enqueues
// exactly one job per invocation.
type WebhookService struct {
	queue  core.WebhookQueue
	logger *slog.Logger
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Queue == nil {
		return nil, errors.New("WebhookQueue is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{queue: opts.Queue, logger: logger}, nil
}

// StartWebhookParams is one inbound webhook delivery.
type StartWebhookParams struct {
	PlatformType  string
	Event         string
	Payload       json.RawMessage
	CorrelationID string // optional; generated when empty
}

// StartWebhookProcessing validates the delivery, resolves the provider,
// assigns a correlation id, and enqueues one WebhookJob. Enqueue failures
// are logged with full context and re-raised — webhook loss is unacceptable.
func (s *WebhookService) StartWebhookProcessing(ctx context.Context, params StartWebhookParams) (*model.WebhookJob, error) {
	platformType, err := platform.Resolve(params.PlatformType)
	if err != nil {
		return nil, fmt.Errorf("resolve platform: %w", err)
	}
	if len(params.Payload) == 0 {
		return nil, errors.New("webhook payload is required")
	}

	correlationID := params.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	job := &model.WebhookJob{
		CorrelationID: correlationID,
		WorkflowType:  model.WorkflowTypeCodeReview,
		HandlerType:   model.HandlerTypeWebhook,
		Payload:       params.Payload,
		Metadata: model.WebhookJobMetadata{
			PlatformType: platformType,
			Event:        params.Event,
		},
		Status:     model.WebhookJobStatusPending,
		Priority:   0,
		RetryCount: 0,
		MaxRetries: webhookMaxRetries,
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("validate webhook job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "enqueue webhook job failed",
				"correlation_id", correlationID,
				"platform", platformType,
				"event", params.Event,
				"error", err,
			)
		}
		if errors.Is(err, data.ErrDuplicateWebhookJob) {
			return nil, fmt.Errorf("enqueue webhook job %s: %w", correlationID, err)
		}
		// Anything other than a duplicate means the durable queue could not
		// accept the job.
		return nil, fmt.Errorf("enqueue webhook job %s: %w", correlationID, errors.Join(core.ErrQueueUnavailable, err))
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook job enqueued",
			"correlation_id", correlationID,
			"platform", platformType,
			"event", params.Event,
		)
	}

	return job, nil
}
