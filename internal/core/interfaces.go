// Package core defines the port interfaces between the service layer and
// its collaborators (queue, stores, code management, authorization).
// Services depend on these interfaces, never on concrete implementations.
package core

import (
	"context"
	"errors"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

// ErrQueueUnavailable classifies enqueue failures where the durable queue
// cannot accept the job. Intake wraps non-duplicate WebhookQueue.Enqueue
// failures with it so callers can distinguish a systemic outage from a bad
// delivery; webhook loss is unacceptable.
var ErrQueueUnavailable = errors.New("webhook queue unavailable")

// WebhookQueue is the enqueue contract consumed by the webhook intake.
type WebhookQueue interface {
	Enqueue(ctx context.Context, job *model.WebhookJob) error
}

// WebhookQueueConsumer is the consumer side of the queue used by the
// dispatch runner. ReserveNext returns model.ErrNoWebhookJobsAvailable when
// the queue is empty.
type WebhookQueueConsumer interface {
	ReserveNext(ctx context.Context, leaseSeconds int) (*model.WebhookJob, error)
	Complete(ctx context.Context, correlationID string) (bool, error)
	Fail(ctx context.Context, correlationID, errMsg string) (bool, error)
	Stats(ctx context.Context) (*model.WebhookJobStats, error)
}

// CodeManagement is the external collaborator used to backfill pull-request
// and repository data the webhook payload did not carry.
type CodeManagement interface {
	// GetPullRequest returns nil, nil when the pull request does not exist.
	GetPullRequest(ctx context.Context, params GetPullRequestParams) (*model.PullRequestRecord, error)
	GetRepositoryLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, error)
}

// GetPullRequestParams identifies one pull request at the provider.
type GetPullRequestParams struct {
	Organization model.OrganizationAndTeamData
	Repository   model.TriggerRepository
	Number       int
}

// ExecuteStrategyParams carries everything the automation execution strategy
// needs to run one automation.
type ExecuteStrategyParams struct {
	Organization  model.OrganizationAndTeamData
	Trigger       model.CanonicalTrigger
	UserGitID     string
	CorrelationID string
}

// ExecutionResult is what the automation execution strategy hands back:
// the execution it recorded and the raw suggestions it generated.
type ExecutionResult struct {
	ExecutionUUID string
	Suggestions   []model.CodeSuggestion
}

// AutomationExecutor is the external automation execution strategy.
type AutomationExecutor interface {
	ExecuteStrategy(ctx context.Context, automationType model.AutomationType, params ExecuteStrategyParams) (*ExecutionResult, error)
}

// PullRequestStore is the read side of the pull-request persistence engine.
type PullRequestStore interface {
	// FindManyByKeys bulk-loads pull requests by {repositoryId, number} pairs.
	FindManyByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error)
	// FindSuggestionCountsByKeys returns the precomputed sent/total
	// projections for the given pairs. Pairs without a projection are absent
	// from the result; callers fall back to scanning the record's files.
	FindSuggestionCountsByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error)
	// FindKeysByTitle resolves a title filter against the text index into
	// {repositoryId, number} pairs.
	FindKeysByTitle(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error)
}

// RepositoryRef is a directory entry used to resolve repository names to ids.
type RepositoryRef struct {
	ID       string
	Name     string
	FullName string
}

// RepositoryDirectory lists the repositories known for a tenant.
type RepositoryDirectory interface {
	ListRepositories(ctx context.Context, org model.OrganizationAndTeamData) ([]RepositoryRef, error)
}

// FindExecutionsParams pages through a tenant's automation executions,
// newest first.
type FindExecutionsParams struct {
	Filter model.ExecutionFilter
	Skip   int
	Take   int
}

// ExecutionStore is the read side of the automation-execution persistence
// engine. The int result is the total row count for the filter, taken from
// the same query the batch came from.
type ExecutionStore interface {
	FindPullRequestExecutions(ctx context.Context, params FindExecutionsParams) ([]model.AutomationExecution, int, error)
}

// CodeReviewStore reads code review timelines.
type CodeReviewStore interface {
	FindByAutomationExecutionUUIDs(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error)
}

// RepositoryScopeResolver is the authorization collaborator. A nil slice
// means unrestricted access; an empty non-nil slice means no access at all.
type RepositoryScopeResolver interface {
	GetRepositoryScope(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error)
}

// OrganizationResolver maps a provider repository onto the tenant that owns
// it. Returns an error when no tenant is configured for the repository.
type OrganizationResolver interface {
	ResolveOrganization(ctx context.Context, platform model.PlatformType, repositoryID string) (model.OrganizationAndTeamData, error)
}

// SaveReviewResultParams persists the processed outcome of one dispatch.
type SaveReviewResultParams struct {
	Organization  model.OrganizationAndTeamData
	Platform      model.PlatformType
	Repository    model.TriggerRepository
	Number        int
	ExecutionUUID string
	Suggestions   []model.CodeSuggestion
}

// ReviewResultStore persists clustered and prioritized suggestions together
// with the suggestion-count projection the aggregator prefers.
type ReviewResultStore interface {
	SaveReviewResult(ctx context.Context, params SaveReviewResultParams) error
}

// LanguageCache caches repository languages so non-GitHub language backfills
// do not hit the code-management collaborator on every event.
type LanguageCache interface {
	GetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, bool, error)
	SetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID, language string) error
}
