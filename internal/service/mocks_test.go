package service

import (
	"context"
	"errors"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

type mockWebhookQueue struct {
	enqueueFunc func(ctx context.Context, job *model.WebhookJob) error
}

func (m *mockWebhookQueue) Enqueue(ctx context.Context, job *model.WebhookJob) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return errors.New("not implemented")
}

type mockCodeManagement struct {
	getPullRequestFunc        func(ctx context.Context, params core.GetPullRequestParams) (*model.PullRequestRecord, error)
	getRepositoryLanguageFunc func(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, error)
}

func (m *mockCodeManagement) GetPullRequest(ctx context.Context, params core.GetPullRequestParams) (*model.PullRequestRecord, error) {
	if m.getPullRequestFunc != nil {
		return m.getPullRequestFunc(ctx, params)
	}
	return nil, errors.New("not implemented")
}

func (m *mockCodeManagement) GetRepositoryLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, error) {
	if m.getRepositoryLanguageFunc != nil {
		return m.getRepositoryLanguageFunc(ctx, org, repositoryID)
	}
	return "", errors.New("not implemented")
}

type mockAutomationExecutor struct {
	executeStrategyFunc func(ctx context.Context, automationType model.AutomationType, params core.ExecuteStrategyParams) (*core.ExecutionResult, error)
}

func (m *mockAutomationExecutor) ExecuteStrategy(ctx context.Context, automationType model.AutomationType, params core.ExecuteStrategyParams) (*core.ExecutionResult, error) {
	if m.executeStrategyFunc != nil {
		return m.executeStrategyFunc(ctx, automationType, params)
	}
	return nil, errors.New("not implemented")
}

type mockReviewResultStore struct {
	saveReviewResultFunc func(ctx context.Context, params core.SaveReviewResultParams) error
}

func (m *mockReviewResultStore) SaveReviewResult(ctx context.Context, params core.SaveReviewResultParams) error {
	if m.saveReviewResultFunc != nil {
		return m.saveReviewResultFunc(ctx, params)
	}
	return errors.New("not implemented")
}

type mockLanguageCache struct {
	getLanguageFunc func(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, bool, error)
	setLanguageFunc func(ctx context.Context, org model.OrganizationAndTeamData, repositoryID, language string) error
}

func (m *mockLanguageCache) GetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID string) (string, bool, error) {
	if m.getLanguageFunc != nil {
		return m.getLanguageFunc(ctx, org, repositoryID)
	}
	return "", false, errors.New("not implemented")
}

func (m *mockLanguageCache) SetLanguage(ctx context.Context, org model.OrganizationAndTeamData, repositoryID, language string) error {
	if m.setLanguageFunc != nil {
		return m.setLanguageFunc(ctx, org, repositoryID, language)
	}
	return errors.New("not implemented")
}

type mockExecutionStore struct {
	findPullRequestExecutionsFunc func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error)
}

func (m *mockExecutionStore) FindPullRequestExecutions(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
	if m.findPullRequestExecutionsFunc != nil {
		return m.findPullRequestExecutionsFunc(ctx, params)
	}
	return nil, 0, errors.New("not implemented")
}

type mockPullRequestStore struct {
	findManyByKeysFunc             func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error)
	findSuggestionCountsByKeysFunc func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error)
	findKeysByTitleFunc            func(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error)
}

func (m *mockPullRequestStore) FindManyByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
	if m.findManyByKeysFunc != nil {
		return m.findManyByKeysFunc(ctx, org, keys)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPullRequestStore) FindSuggestionCountsByKeys(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
	if m.findSuggestionCountsByKeysFunc != nil {
		return m.findSuggestionCountsByKeysFunc(ctx, org, keys)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPullRequestStore) FindKeysByTitle(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
	if m.findKeysByTitleFunc != nil {
		return m.findKeysByTitleFunc(ctx, org, title)
	}
	return nil, errors.New("not implemented")
}

type mockCodeReviewStore struct {
	findByAutomationExecutionUUIDsFunc func(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error)
}

func (m *mockCodeReviewStore) FindByAutomationExecutionUUIDs(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error) {
	if m.findByAutomationExecutionUUIDsFunc != nil {
		return m.findByAutomationExecutionUUIDsFunc(ctx, uuids)
	}
	return nil, errors.New("not implemented")
}

type mockScopeResolver struct {
	getRepositoryScopeFunc func(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error)
}

func (m *mockScopeResolver) GetRepositoryScope(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error) {
	if m.getRepositoryScopeFunc != nil {
		return m.getRepositoryScopeFunc(ctx, org)
	}
	return nil, errors.New("not implemented")
}

type mockRepositoryDirectory struct {
	listRepositoriesFunc func(ctx context.Context, org model.OrganizationAndTeamData) ([]core.RepositoryRef, error)
}

func (m *mockRepositoryDirectory) ListRepositories(ctx context.Context, org model.OrganizationAndTeamData) ([]core.RepositoryRef, error) {
	if m.listRepositoriesFunc != nil {
		return m.listRepositoriesFunc(ctx, org)
	}
	return nil, errors.New("not implemented")
}
