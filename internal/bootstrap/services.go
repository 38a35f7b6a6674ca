package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/config"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/adapters/orchestrator"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/adapters/webhookrunner"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/observability/statsd"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Webhooks   *service.WebhookService
	Dispatch   *service.DispatchService
	Enrichment *service.EnrichmentService
	Runner     *webhookrunner.Runner
	Queue      *data.WebhookJobRepo
	Metrics    *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, collaborators, and services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	metricsSink := buildMetricsSink(cfg.Observability.Metrics, logger)

	queueRepo := data.NewWebhookJobRepo(deps.DB, data.WebhookJobRepoConfig{
		RetryDelaySeconds: int(cfg.Dispatcher.RetryDelay / time.Second),
		Logger:            logger,
	})
	pullRequestRepo := data.NewPullRequestRepo(deps.DB, nil)
	executionRepo := data.NewExecutionRepo(deps.DB)
	codeReviewRepo := data.NewCodeReviewRepo(deps.DB)

	var languageCache *data.RedisLanguageCache
	if deps.RedisClient != nil {
		languageCache = data.NewRedisLanguageCache(deps.RedisClient, cfg.Redis.LanguageTTL)
	}

	orchClient, err := orchestrator.NewClient(orchestrator.Options{
		BaseURL:    cfg.Orchestrator.BaseURL,
		Token:      cfg.Orchestrator.Token,
		HTTPClient: &http.Client{Timeout: cfg.Orchestrator.Timeout},
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build orchestrator client: %w", err)
	}

	webhookSvc, err := service.NewWebhookService(service.WebhookServiceOptions{
		Queue:  queueRepo,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build webhook service: %w", err)
	}

	dispatchOpts := service.DispatchServiceOptions{
		CodeManagement: orchClient,
		Executor:       orchClient,
		Results:        pullRequestRepo,
		Quotas:         cfg.Review.SeverityQuotas(),
		Logger:         logger,
	}
	if languageCache != nil {
		dispatchOpts.Languages = languageCache
	}
	dispatchSvc, err := service.NewDispatchService(dispatchOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build dispatch service: %w", err)
	}

	enrichmentSvc, err := service.NewEnrichmentService(service.EnrichmentServiceOptions{
		Executions:   executionRepo,
		PullRequests: pullRequestRepo,
		CodeReviews:  codeReviewRepo,
		Scope:        orchClient,
		Directory:    pullRequestRepo,
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build enrichment service: %w", err)
	}

	runner, err := webhookrunner.NewRunner(webhookrunner.RunnerOptions{
		Queue:         queueRepo,
		Dispatcher:    dispatchSvc,
		Organizations: orchClient,
		Notifier:      queueRepo,
		Metrics:       metricsSink,
		Logger:        logger,
		Lease:         cfg.Dispatcher.JobLease,
		Concurrency:   cfg.Dispatcher.Concurrency,
		PollInterval:  cfg.Dispatcher.PollInterval,
		StatsInterval: cfg.Dispatcher.StatsInterval,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build webhook runner: %w", err)
	}

	return ServiceContainer{
		Webhooks:   webhookSvc,
		Dispatch:   dispatchSvc,
		Enrichment: enrichmentSvc,
		Runner:     runner,
		Queue:      queueRepo,
		Metrics:    metricsSink,
	}, nil
}

// buildMetricsSink configures the StatsD client. A disabled config yields nil
// and metric emission becomes a no-op everywhere.
func buildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
const shutdownWaitTimeout = 15 * time.Second

// RunServicesWithShutdown starts all enabled services and manages their
// lifecycle. This function blocks until a shutdown signal is received or a
// service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(enabled)+1)

	var httpServer *http.Server
	if enabled[config.ServiceModeHTTP] {
		httpServer = StartHTTPServer(&HTTPServerConfig{
			Config:      cfg.Config,
			Services:    cfg.Services,
			DB:          cfg.DB,
			RedisClient: cfg.RedisClient,
			Logger:      logger,
		})
	}

	var runnerDone chan struct{}
	if enabled[config.ServiceModeDispatcher] {
		runnerDone = make(chan struct{})
		go func() {
			defer close(runnerDone)
			if runErr := cfg.Services.Runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				select {
				case errCh <- fmt.Errorf("webhook runner failed: %w", runErr):
				default:
				}
			}
		}()
		logger.Info("background service started", "service", "webhook runner")
	}

	httpShutdownTimeout := cfg.Config.HTTP.ShutdownTimeout
	if httpShutdownTimeout <= 0 {
		httpShutdownTimeout = shutdownWaitTimeout
	}

	return waitForShutdown(shutdownDeps{
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  httpServer,
		httpTimeout: httpShutdownTimeout,
		runnerDone:  runnerDone,
		metrics:     cfg.Services.Metrics,
		logger:      logger,
	})
}

type shutdownDeps struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	runnerDone  <-chan struct{}
	metrics     *statsd.Client
	logger      *slog.Logger
}

// waitForShutdown waits for a shutdown signal or service error.
func waitForShutdown(deps shutdownDeps) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var cause error
	select {
	case <-quit:
		deps.logger.Info("shutting down services...")
	case err := <-deps.errCh:
		deps.logger.Error("service error", "error", err)
		cause = err
	}
	deps.cancel()

	if stopErr := gracefulStop(deps); stopErr != nil {
		deps.logger.Error("graceful stop failed", "error", stopErr)
		if cause == nil {
			cause = stopErr
		}
	}
	return cause
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(deps shutdownDeps) error {
	if deps.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.httpTimeout)
		defer cancel()

		deps.logger.Info("shutting down HTTP server")
		if err := deps.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		deps.logger.Info("HTTP server stopped")
	}

	if deps.runnerDone != nil {
		select {
		case <-deps.runnerDone:
			deps.logger.Info("webhook runner stopped")
		case <-time.After(shutdownWaitTimeout):
			deps.logger.Warn("timeout waiting for webhook runner to stop")
		}
	}

	if deps.metrics != nil {
		if err := deps.metrics.Close(); err != nil {
			deps.logger.Warn("close metrics sink failed", "error", err)
		}
	}

	return nil
}
