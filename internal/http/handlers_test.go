package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/data"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

type mockQueue struct {
	enqueueFunc func(ctx context.Context, job *model.WebhookJob) error
}

func (m *mockQueue) Enqueue(ctx context.Context, job *model.WebhookJob) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return errors.New("not implemented")
}

type mockQueueConsumer struct {
	statsFunc func(ctx context.Context) (*model.WebhookJobStats, error)
}

func (m *mockQueueConsumer) ReserveNext(context.Context, int) (*model.WebhookJob, error) {
	return nil, errors.New("not implemented")
}

func (m *mockQueueConsumer) Complete(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockQueueConsumer) Fail(context.Context, string, string) (bool, error) {
	return false, errors.New("not implemented")
}

func (m *mockQueueConsumer) Stats(ctx context.Context) (*model.WebhookJobStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

type mockExecutionStore struct {
	findFunc func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error)
}

func (m *mockExecutionStore) FindPullRequestExecutions(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, params)
	}
	return nil, 0, errors.New("not implemented")
}

type mockPullRequestStore struct {
	findKeysByTitleFunc func(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error)
}

func (m *mockPullRequestStore) FindManyByKeys(context.Context, model.OrganizationAndTeamData, []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
	return nil, nil
}

func (m *mockPullRequestStore) FindSuggestionCountsByKeys(context.Context, model.OrganizationAndTeamData, []model.PullRequestKey) ([]model.SuggestionsCount, error) {
	return nil, nil
}

func (m *mockPullRequestStore) FindKeysByTitle(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
	if m.findKeysByTitleFunc != nil {
		return m.findKeysByTitleFunc(ctx, org, title)
	}
	return nil, nil
}

type mockCodeReviewStore struct{}

func (m *mockCodeReviewStore) FindByAutomationExecutionUUIDs(context.Context, []string) ([]model.CodeReviewExecution, error) {
	return nil, nil
}

type mockScopeResolver struct{}

func (m *mockScopeResolver) GetRepositoryScope(context.Context, model.OrganizationAndTeamData) ([]string, error) {
	return nil, nil
}

type mockRepositoryDirectory struct{}

func (m *mockRepositoryDirectory) ListRepositories(context.Context, model.OrganizationAndTeamData) ([]core.RepositoryRef, error) {
	return nil, nil
}

func newWebhookRouter(t *testing.T, queue *mockQueue) http.Handler {
	t.Helper()
	svc, err := service.NewWebhookService(service.WebhookServiceOptions{Queue: queue})
	require.NoError(t, err)
	return NewRouter(RouterServices{Webhooks: svc})
}

func newEnrichmentRouter(t *testing.T, executions *mockExecutionStore) http.Handler {
	t.Helper()
	svc, err := service.NewEnrichmentService(service.EnrichmentServiceOptions{
		Executions:   executions,
		PullRequests: &mockPullRequestStore{},
		CodeReviews:  &mockCodeReviewStore{},
		Scope:        &mockScopeResolver{},
		Directory:    &mockRepositoryDirectory{},
	})
	require.NoError(t, err)
	return NewRouter(RouterServices{Enrichment: svc})
}

func TestWebhookReceive_AcceptsDelivery(t *testing.T) {
	var enqueued *model.WebhookJob
	queue := &mockQueue{
		enqueueFunc: func(_ context.Context, job *model.WebhookJob) error {
			enqueued = job
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set("X-GitHub-Event", "pull_request")
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	rec := httptest.NewRecorder()

	newWebhookRouter(t, queue).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, enqueued)
	assert.Equal(t, "delivery-123", enqueued.CorrelationID)
	assert.Equal(t, model.PlatformGithub, enqueued.Metadata.PlatformType)
	assert.Equal(t, "pull_request", enqueued.Metadata.Event)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "delivery-123", body["correlationId"])
	assert.Equal(t, string(model.PlatformGithub), body["platform"])
}

func TestWebhookReceive_RejectsUnsupportedPlatform(t *testing.T) {
	queue := &mockQueue{
		enqueueFunc: func(context.Context, *model.WebhookJob) error {
			t.Fatal("queue must not be touched for unsupported platforms")
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sourceforge", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	newWebhookRouter(t, queue).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported_platform")
}

func TestWebhookReceive_AcknowledgesRedelivery(t *testing.T) {
	queue := &mockQueue{
		enqueueFunc: func(context.Context, *model.WebhookJob) error {
			return data.ErrDuplicateWebhookJob
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set("X-GitHub-Delivery", "delivery-123")
	rec := httptest.NewRecorder()

	newWebhookRouter(t, queue).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already_accepted")
}

func TestWebhookReceive_QueueUnavailable(t *testing.T) {
	queue := &mockQueue{
		enqueueFunc: func(context.Context, *model.WebhookJob) error {
			return core.ErrQueueUnavailable
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/gitlab", strings.NewReader(`{"object_kind":"merge_request"}`))
	rec := httptest.NewRecorder()

	newWebhookRouter(t, queue).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue_unavailable")
}

func TestWebhookReceive_DatabaseOutageReturns503(t *testing.T) {
	queue := &mockQueue{
		enqueueFunc: func(context.Context, *model.WebhookJob) error {
			return errors.New("begin pgx tx: dial tcp 127.0.0.1:5432: connect: connection refused")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := httptest.NewRecorder()

	newWebhookRouter(t, queue).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code,
		"an unreachable queue is a systemic failure, not a bad request")
	assert.Contains(t, rec.Body.String(), "queue_unavailable")
}

func TestWebhookReceive_RejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/github", http.NoBody)
	rec := httptest.NewRecorder()

	newWebhookRouter(t, &mockQueue{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEnriched_RequiresOrganization(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/pull-requests/executions", http.NoBody)
	rec := httptest.NewRecorder()

	newEnrichmentRouter(t, &mockExecutionStore{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "organizationId is required")
}

func TestListEnriched_RejectsMalformedFilters(t *testing.T) {
	router := newEnrichmentRouter(t, &mockExecutionStore{})

	for _, target := range []string{
		"/api/pull-requests/executions?organizationId=org-1&pullRequestNumber=abc",
		"/api/pull-requests/executions?organizationId=org-1&hasSentSuggestions=maybe",
	} {
		req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListEnriched_AppliesPullRequestNumberFilter(t *testing.T) {
	var queried bool
	executions := &mockExecutionStore{
		findFunc: func(_ context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			queried = true
			require.NotNil(t, params.Filter.PullRequestNumber)
			assert.Equal(t, 42, *params.Filter.PullRequestNumber)
			return nil, 0, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/pull-requests/executions?organizationId=org-1&pullRequestNumber=42", http.NoBody)
	rec := httptest.NewRecorder()

	newEnrichmentRouter(t, executions).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, queried)
}

func TestListEnriched_AppliesPullRequestTitleFilter(t *testing.T) {
	var resolvedTitle string
	pullRequests := &mockPullRequestStore{
		findKeysByTitleFunc: func(_ context.Context, _ model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
			resolvedTitle = title
			return nil, nil
		},
	}
	svc, err := service.NewEnrichmentService(service.EnrichmentServiceOptions{
		Executions:   &mockExecutionStore{},
		PullRequests: pullRequests,
		CodeReviews:  &mockCodeReviewStore{},
		Scope:        &mockScopeResolver{},
		Directory:    &mockRepositoryDirectory{},
	})
	require.NoError(t, err)
	router := NewRouter(RouterServices{Enrichment: svc})

	req := httptest.NewRequest(http.MethodGet,
		"/api/pull-requests/executions?organizationId=org-1&pullRequestTitle=fix+login", http.NoBody)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fix login", resolvedTitle)
}

func TestListEnriched_ReturnsEmptyPage(t *testing.T) {
	executions := &mockExecutionStore{
		findFunc: func(_ context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			assert.Equal(t, "org-1", params.Filter.Organization.OrganizationID)
			return nil, 0, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pull-requests/executions?organizationId=org-1", http.NoBody)
	rec := httptest.NewRecorder()

	newEnrichmentRouter(t, executions).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var page model.EnrichedPullRequestsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Data)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.Equal(t, 0, page.Pagination.TotalItems)
}

func TestQueueStats(t *testing.T) {
	consumer := &mockQueueConsumer{
		statsFunc: func(context.Context) (*model.WebhookJobStats, error) {
			return &model.WebhookJobStats{Pending: 3, Running: 1, Completed: 40, Failed: 2}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/queue/stats", http.NoBody)
	rec := httptest.NewRecorder()

	NewRouter(RouterServices{Queue: consumer}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.WebhookJobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 40, stats.Completed)
}

func TestHealth_DegradesOnFailingDependency(t *testing.T) {
	router := NewRouter(RouterServices{
		Database: PingFunc(func(context.Context) error { return nil }),
		Cache:    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestHealth_OKWithoutDependencies(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()

	NewRouter(RouterServices{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
