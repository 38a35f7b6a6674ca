// Package webhookrunner drains the durable webhook queue and feeds each job
// through the trigger mapper and the dispatch pipeline.
package webhookrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/trigger"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/observability/metrics"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/observability/statsd"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

// QueueNotifier wakes idle workers when a new job lands. WaitForNotification
// blocks until a job is announced or the context is canceled.
type QueueNotifier interface {
	WaitForNotification(ctx context.Context) error
}

// RunnerOptions configures the webhook dispatch runner.
type RunnerOptions struct {
	Queue         core.WebhookQueueConsumer // Required: reserve/complete/fail side of the queue
	Dispatcher    *service.DispatchService  // Required: trigger decision pipeline
	Organizations core.OrganizationResolver // Required: repository-to-tenant mapping
	Notifier      QueueNotifier             // Optional: queue wakeup; polling covers its absence
	Metrics       statsd.Sink               // Optional
	Logger        *slog.Logger              // Optional

	Lease         time.Duration // per-job lease; defaults to 30s
	Concurrency   int           // worker goroutines; defaults to 1
	PollInterval  time.Duration // idle re-check period; defaults to 5s
	StatsInterval time.Duration // queue depth gauge period; 0 disables
}

// Runner pulls webhook jobs and dispatches them until its context ends.
type Runner struct {
	queue         core.WebhookQueueConsumer
	dispatcher    *service.DispatchService
	organizations core.OrganizationResolver
	notifier      QueueNotifier
	metrics       statsd.Sink
	logger        *slog.Logger
	lease         time.Duration
	workers       int
	pollInterval  time.Duration
	statsInterval time.Duration
}

// NewRunner constructs a webhook dispatch runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("WebhookQueueConsumer is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("DispatchService is required")
	}
	if opts.Organizations == nil {
		return nil, errors.New("OrganizationResolver is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "webhook_runner")

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}

	return &Runner{
		queue:         opts.Queue,
		dispatcher:    opts.Dispatcher,
		organizations: opts.Organizations,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		logger:        logger,
		lease:         lease,
		workers:       workers,
		pollInterval:  poll,
		statsInterval: opts.StatsInterval,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting webhook runner",
		"workers", r.workers, "lease", r.lease, "poll_interval", r.pollInterval)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	if r.statsInterval > 0 && r.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.statsLoop(ctx)
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context) error {
	leaseSeconds := int(r.lease / time.Second)
	for ctx.Err() == nil {
		job, err := r.queue.ReserveNext(ctx, leaseSeconds)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoWebhookJobsAvailable):
			if !r.waitForWork(ctx) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

// waitForWork blocks until a new job is announced, the poll interval
// elapses, or the context ends. The poll fallback covers notifications lost
// while no listener was attached.
func (r *Runner) waitForWork(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, r.pollInterval)
	defer cancel()

	if r.notifier != nil {
		err := r.notifier.WaitForNotification(waitCtx)
		if err != nil && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
			r.logger.WarnContext(ctx, "queue notification wait failed", "error", err)
		}
		return ctx.Err() == nil
	}

	<-waitCtx.Done()
	return ctx.Err() == nil
}

func (r *Runner) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(r.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := r.queue.Stats(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.WarnContext(ctx, "queue stats failed", "error", err)
				}
				continue
			}
			metrics.EmitQueueDepth(r.metrics, stats.Pending, stats.Running, stats.Failed)
		}
	}
}

// processJob runs one reserved job to a terminal queue transition. Mapping
// and dispatch decisions complete the job; only infrastructure failures and
// strategy errors burn a retry.
func (r *Runner) processJob(ctx context.Context, job *model.WebhookJob) {
	start := time.Now()
	emit := func(outcome, transition, result string) {
		metrics.EmitDispatchLifecycle(r.metrics, metrics.DispatchMetric{
			Platform:   string(job.Metadata.PlatformType),
			Outcome:    outcome,
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
		})
	}

	t, payload, err := r.mapJob(job)
	if err != nil {
		r.fail(ctx, job, err)
		emit("failed", "failed", metrics.ResultError)
		return
	}
	if t == nil {
		// Not a review-relevant event. Terminal, not an error.
		r.complete(ctx, job)
		emit("discarded", "completed", metrics.ResultNoop)
		return
	}

	org, err := r.organizations.ResolveOrganization(ctx, t.Platform, t.Repository.ID)
	if err != nil {
		r.fail(ctx, job, fmt.Errorf("resolve organization: %w", err))
		emit("failed", "failed", metrics.ResultError)
		return
	}

	outcome := r.dispatcher.Dispatch(ctx, service.DispatchParams{
		Organization:  org,
		Trigger:       *t,
		Payload:       payload,
		CorrelationID: job.CorrelationID,
	})

	if outcome == service.OutcomeFailed {
		r.fail(ctx, job, errors.New("automation strategy failed"))
		emit(string(outcome), "failed", metrics.ResultError)
		return
	}

	r.complete(ctx, job)
	emit(string(outcome), "completed", metrics.ResultSuccess)
}

// mapJob decodes the stored payload and maps it onto a canonical trigger.
// A nil trigger with a nil error means the event was not review-relevant.
func (r *Runner) mapJob(job *model.WebhookJob) (*model.CanonicalTrigger, trigger.Payload, error) {
	payload, err := trigger.DecodePayload(job.Payload)
	if err != nil {
		return nil, nil, err
	}

	t, err := trigger.Map(trigger.MapInput{
		Platform: job.Metadata.PlatformType,
		Event:    job.Metadata.Event,
		Payload:  payload,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("map trigger: %w", err)
	}
	return t, payload, nil
}

func (r *Runner) complete(ctx context.Context, job *model.WebhookJob) {
	if _, err := r.queue.Complete(ctx, job.CorrelationID); err != nil {
		r.logger.ErrorContext(ctx, "complete webhook job failed",
			"correlation_id", job.CorrelationID, "error", err)
	}
}

func (r *Runner) fail(ctx context.Context, job *model.WebhookJob, cause error) {
	r.logger.ErrorContext(ctx, "webhook job failed",
		"correlation_id", job.CorrelationID,
		"platform", job.Metadata.PlatformType,
		"event", job.Metadata.Event,
		"error", cause,
	)
	if _, err := r.queue.Fail(ctx, job.CorrelationID, cause.Error()); err != nil {
		r.logger.ErrorContext(ctx, "fail webhook job failed",
			"correlation_id", job.CorrelationID, "error", err)
	}
}
