package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

func TestNewWebhookService_RequiresQueue(t *testing.T) {
	_, err := NewWebhookService(WebhookServiceOptions{})
	require.Error(t, err)
}

func TestWebhookService_StartWebhookProcessing_Enqueues(t *testing.T) {
	var enqueued *model.WebhookJob
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error {
			enqueued = job
			return nil
		},
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	job, err := svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType: "github",
		Event:        "pull_request",
		Payload:      json.RawMessage(`{"action":"opened"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, enqueued)
	assert.Same(t, job, enqueued)

	assert.NotEmpty(t, job.CorrelationID, "correlation id is generated when absent")
	assert.Equal(t, model.PlatformGithub, job.Metadata.PlatformType)
	assert.Equal(t, "pull_request", job.Metadata.Event)
	assert.Equal(t, model.WorkflowTypeCodeReview, job.WorkflowType)
	assert.Equal(t, model.HandlerTypeWebhook, job.HandlerType)
	assert.Equal(t, model.WebhookJobStatusPending, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Equal(t, 1, job.MaxRetries)
}

func TestWebhookService_StartWebhookProcessing_KeepsCallerCorrelationID(t *testing.T) {
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error { return nil },
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	job, err := svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType:  "AZURE-DEVOPS",
		Event:         "git.pullrequest.created",
		Payload:       json.RawMessage(`{}`),
		CorrelationID: "corr-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "corr-123", job.CorrelationID)
	assert.Equal(t, model.PlatformAzureRepos, job.Metadata.PlatformType)
}

func TestWebhookService_StartWebhookProcessing_RejectsUnsupportedPlatform(t *testing.T) {
	called := false
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error {
			called = true
			return nil
		},
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	_, err = svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType: "sourceforge",
		Event:        "pull_request",
		Payload:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.False(t, called, "nothing is enqueued for unsupported platforms")
}

func TestWebhookService_StartWebhookProcessing_RejectsEmptyPayload(t *testing.T) {
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error { return nil },
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	_, err = svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType: "github",
		Event:        "pull_request",
	})
	require.Error(t, err)
}

func TestWebhookService_StartWebhookProcessing_PropagatesEnqueueFailure(t *testing.T) {
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error {
			return core.ErrQueueUnavailable
		},
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	_, err = svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType: "gitlab",
		Event:        "merge_request",
		Payload:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrQueueUnavailable))
}

func TestWebhookService_StartWebhookProcessing_ClassifiesInfrastructureFailure(t *testing.T) {
	connRefused := errors.New("begin pgx tx: dial tcp 127.0.0.1:5432: connect: connection refused")
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error {
			return connRefused
		},
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	_, err = svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType: "github",
		Event:        "pull_request",
		Payload:      json.RawMessage(`{}`),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrQueueUnavailable),
		"infrastructure failures surface as queue-unavailable")
	assert.True(t, errors.Is(err, connRefused), "the cause stays in the chain")
}

func TestWebhookService_StartWebhookProcessing_DuplicateIsNotAnOutage(t *testing.T) {
	queue := &mockWebhookQueue{
		enqueueFunc: func(ctx context.Context, job *model.WebhookJob) error {
			return fmt.Errorf("%w: corr-123", data.ErrDuplicateWebhookJob)
		},
	}
	svc, err := NewWebhookService(WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)

	_, err = svc.StartWebhookProcessing(context.Background(), StartWebhookParams{
		PlatformType:  "github",
		Event:         "pull_request",
		Payload:       json.RawMessage(`{}`),
		CorrelationID: "corr-123",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, data.ErrDuplicateWebhookJob))
	assert.False(t, errors.Is(err, core.ErrQueueUnavailable),
		"redelivery must keep its duplicate classification")
}
