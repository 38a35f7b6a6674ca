package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Webhooks   *service.WebhookService
	Enrichment *service.EnrichmentService
	Queue      core.WebhookQueueConsumer // Optional: exposes queue stats
	Database   Pinger                    // Optional: health check dependency
	Cache      Pinger                    // Optional: health check dependency
	Logger     *slog.Logger              // Optional
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	if services.Webhooks != nil {
		webhookHandlers := &WebhookHandlers{Svc: services.Webhooks}
		mux.HandleFunc("POST /api/webhooks/{platform}", webhookHandlers.Receive)
	}
	if services.Enrichment != nil {
		executionHandlers := &ExecutionHandlers{Svc: services.Enrichment}
		mux.HandleFunc("GET /api/pull-requests/executions", executionHandlers.ListEnriched)
	}
	if services.Queue != nil {
		queueHandlers := &QueueHandlers{Queue: services.Queue}
		mux.HandleFunc("GET /api/webhooks/queue/stats", queueHandlers.Stats)
	}

	healthHandlers := &HealthHandlers{Database: services.Database, Cache: services.Cache}
	mux.HandleFunc("GET /healthz", healthHandlers.Health)
	mux.HandleFunc("HEAD /healthz", healthHandlers.Health)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Recover(logger)(Logging(logger)(mux))
}

// QueueHandlers exposes read-only queue operations.
type QueueHandlers struct {
	Queue core.WebhookQueueConsumer
}

// Stats reports queue depth per lifecycle state.
func (h *QueueHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: err})
		return
	}
	if stats == nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: errors.New("no stats returned")})
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
