package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

var testOrg = model.OrganizationAndTeamData{OrganizationID: "org-1", TeamID: "team-1"}

func unrestrictedScope() *mockScopeResolver {
	return &mockScopeResolver{
		getRepositoryScopeFunc: func(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error) {
			return nil, nil
		},
	}
}

func newEnrichmentService(t *testing.T, opts EnrichmentServiceOptions) *EnrichmentService {
	t.Helper()
	if opts.Executions == nil {
		opts.Executions = &mockExecutionStore{}
	}
	if opts.PullRequests == nil {
		opts.PullRequests = &mockPullRequestStore{}
	}
	if opts.CodeReviews == nil {
		opts.CodeReviews = &mockCodeReviewStore{
			findByAutomationExecutionUUIDsFunc: func(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error) {
				return nil, nil
			},
		}
	}
	if opts.Scope == nil {
		opts.Scope = unrestrictedScope()
	}
	if opts.Directory == nil {
		opts.Directory = &mockRepositoryDirectory{}
	}
	svc, err := NewEnrichmentService(opts)
	require.NoError(t, err)
	return svc
}

func executionFixture(uuid, repoID string, number int) model.AutomationExecution {
	return model.AutomationExecution{
		UUID:              uuid,
		RepositoryID:      repoID,
		PullRequestNumber: number,
		Status:            model.AutomationStatusSuccess,
		Origin:            model.TriggerOriginWebhook,
		CreatedAt:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:         time.Date(2026, 8, 1, 12, 5, 0, 0, time.UTC),
	}
}

func pullRequestFixture(repoID string, number int) *model.PullRequestRecord {
	return &model.PullRequestRecord{
		UUID:       "pr-" + repoID,
		Number:     number,
		Repository: model.PullRequestRepository{ID: repoID, Name: "api", FullName: "acme/api"},
		Title:      "Add retry logic",
		Status:     "open",
		Provider:   model.PlatformGithub,
		Author:     model.PullRequestAuthor{Username: "octocat"},
	}
}

func TestEnrichmentService_GetEnrichedPullRequests_RequiresOrganization(t *testing.T) {
	svc := newEnrichmentService(t, EnrichmentServiceOptions{})
	_, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{})
	require.Error(t, err)
}

func TestEnrichmentService_GetEnrichedPullRequests_JoinsAllSources(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			require.Equal(t, 0, params.Skip)
			return []model.AutomationExecution{
				executionFixture("exec-1", "repo-1", 42),
				executionFixture("exec-2", "repo-2", 7),
			}, 2, nil
		},
	}
	prs := &mockPullRequestStore{
		findManyByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
			require.Len(t, keys, 2)
			return []*model.PullRequestRecord{
				pullRequestFixture("repo-1", 42),
				pullRequestFixture("repo-2", 7),
			}, nil
		},
		findSuggestionCountsByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
			return []model.SuggestionsCount{
				{RepositoryID: "repo-1", Number: 42, Sent: 3, Total: 5},
			}, nil
		},
	}
	reviews := &mockCodeReviewStore{
		findByAutomationExecutionUUIDsFunc: func(ctx context.Context, uuids []string) ([]model.CodeReviewExecution, error) {
			return []model.CodeReviewExecution{
				{UUID: "cr-1", AutomationExecutionUUID: "exec-1", Status: model.CodeReviewStatusSuccess},
			}, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{
		Executions:   executions,
		PullRequests: prs,
		CodeReviews:  reviews,
	})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)

	first := page.Data[0]
	assert.Equal(t, "exec-1", first.AutomationUUID)
	assert.Equal(t, 42, first.Number)
	assert.Equal(t, 3, first.SuggestionsSent, "projection wins when present")
	assert.Equal(t, 5, first.SuggestionsTotal)
	require.Len(t, first.CodeReviewTimeline, 1)
	assert.Equal(t, "cr-1", first.CodeReviewTimeline[0].UUID)

	second := page.Data[1]
	assert.Equal(t, 0, second.SuggestionsSent, "no projection, no files: zero")
	assert.Empty(t, second.CodeReviewTimeline)

	assert.Equal(t, model.Pagination{
		CurrentPage:     1,
		TotalPages:      1,
		TotalItems:      2,
		ItemsPerPage:    30,
		HasNextPage:     false,
		HasPreviousPage: false,
	}, page.Pagination)
}

func TestEnrichmentService_GetEnrichedPullRequests_EmptyScopeShortCircuits(t *testing.T) {
	executionCalls := 0
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			executionCalls++
			return nil, 0, nil
		},
	}
	scope := &mockScopeResolver{
		getRepositoryScopeFunc: func(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error) {
			return []string{}, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, Scope: scope})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Pagination.TotalItems)
	assert.Equal(t, 0, executionCalls, "no access means no store traffic")
}

func TestEnrichmentService_GetEnrichedPullRequests_TitleFilterNoMatchShortCircuits(t *testing.T) {
	executionCalls := 0
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			executionCalls++
			return nil, 0, nil
		},
	}
	prs := &mockPullRequestStore{
		findKeysByTitleFunc: func(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
			require.Equal(t, "nothing matches", title)
			return nil, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization:     testOrg,
		PullRequestTitle: "nothing matches",
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, executionCalls, "unmatched title filter never reaches the execution store")
}

func TestEnrichmentService_GetEnrichedPullRequests_TitleKeysReachFilter(t *testing.T) {
	keys := []model.PullRequestKey{{RepositoryID: "repo-1", Number: 42}}
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			assert.Equal(t, keys, params.Filter.PullRequestKeys)
			return nil, 0, nil
		},
	}
	prs := &mockPullRequestStore{
		findKeysByTitleFunc: func(ctx context.Context, org model.OrganizationAndTeamData, title string) ([]model.PullRequestKey, error) {
			return keys, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	_, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization:     testOrg,
		PullRequestTitle: "retry",
	})
	require.NoError(t, err)
}

func TestEnrichmentService_GetEnrichedPullRequests_ResolvesRepositoryName(t *testing.T) {
	directory := &mockRepositoryDirectory{
		listRepositoriesFunc: func(ctx context.Context, org model.OrganizationAndTeamData) ([]core.RepositoryRef, error) {
			return []core.RepositoryRef{
				{ID: "repo-1", Name: "api", FullName: "acme/api"},
				{ID: "repo-2", Name: "web", FullName: "acme/web"},
			}, nil
		},
	}
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			assert.Equal(t, []string{"repo-1"}, params.Filter.RepositoryIDs)
			return nil, 0, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, Directory: directory})

	// Case-insensitive full-name match.
	_, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization:   testOrg,
		RepositoryName: "ACME/API",
	})
	require.NoError(t, err)
}

func TestEnrichmentService_GetEnrichedPullRequests_UnknownRepositoryNameIsEmptyPage(t *testing.T) {
	directory := &mockRepositoryDirectory{
		listRepositoriesFunc: func(ctx context.Context, org model.OrganizationAndTeamData) ([]core.RepositoryRef, error) {
			return []core.RepositoryRef{{ID: "repo-1", Name: "api"}}, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Directory: directory})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization:   testOrg,
		RepositoryName: "does-not-exist",
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestEnrichmentService_GetEnrichedPullRequests_ScopeIntersection(t *testing.T) {
	scope := &mockScopeResolver{
		getRepositoryScopeFunc: func(ctx context.Context, org model.OrganizationAndTeamData) ([]string, error) {
			return []string{"repo-2"}, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Scope: scope})

	// repo-1 is requested but outside the authorized scope.
	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
		RepositoryID: "repo-1",
	})
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestEnrichmentService_GetEnrichedPullRequests_SkipsExecutionsWithoutRecord(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			if params.Skip > 0 {
				return nil, 2, nil
			}
			return []model.AutomationExecution{
				executionFixture("exec-1", "repo-1", 42),
				executionFixture("exec-orphan", "repo-gone", 9),
			}, 2, nil
		},
	}
	prs := &mockPullRequestStore{
		findManyByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
			return []*model.PullRequestRecord{pullRequestFixture("repo-1", 42)}, nil
		},
		findSuggestionCountsByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
			return nil, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1, "the orphan execution is skipped, not fatal")
	assert.Equal(t, "exec-1", page.Data[0].AutomationUUID)
}

func TestEnrichmentService_GetEnrichedPullRequests_HasSentSuggestionsFilter(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			if params.Skip > 0 {
				return nil, 2, nil
			}
			return []model.AutomationExecution{
				executionFixture("exec-1", "repo-1", 42),
				executionFixture("exec-2", "repo-2", 7),
			}, 2, nil
		},
	}
	prs := &mockPullRequestStore{
		findManyByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
			return []*model.PullRequestRecord{
				pullRequestFixture("repo-1", 42),
				pullRequestFixture("repo-2", 7),
			}, nil
		},
		findSuggestionCountsByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
			return []model.SuggestionsCount{
				{RepositoryID: "repo-1", Number: 42, Sent: 3, Total: 5},
				{RepositoryID: "repo-2", Number: 7, Sent: 0, Total: 2},
			}, nil
		},
	}
	wantSent := true
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization:       testOrg,
		HasSentSuggestions: &wantSent,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "exec-1", page.Data[0].AutomationUUID)
}

func TestEnrichmentService_GetEnrichedPullRequests_CountFallbackScansFiles(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			if params.Skip > 0 {
				return nil, 1, nil
			}
			return []model.AutomationExecution{executionFixture("exec-1", "repo-1", 42)}, 1, nil
		},
	}
	record := pullRequestFixture("repo-1", 42)
	record.Files = []model.PullRequestFile{
		{Path: "a.go", Suggestions: []model.CodeSuggestion{
			{ID: "s1", DeliveryStatus: model.DeliveryStatusSent},
			{ID: "s2", DeliveryStatus: model.DeliveryStatusNotSent},
		}},
	}
	prs := &mockPullRequestStore{
		findManyByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
			return []*model.PullRequestRecord{record}, nil
		},
		findSuggestionCountsByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
			return nil, errors.New("projection store down")
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
	})
	require.NoError(t, err, "a failing bulk lookup degrades, it does not abort")
	require.Len(t, page.Data, 1)
	assert.Equal(t, 1, page.Data[0].SuggestionsSent)
	assert.Equal(t, 2, page.Data[0].SuggestionsTotal)
}

func TestEnrichmentService_GetEnrichedPullRequests_PaginationMath(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			require.Equal(t, 2, params.Skip, "page 2 with limit 2 starts at offset 2")
			return []model.AutomationExecution{
				executionFixture("exec-3", "repo-1", 3),
				executionFixture("exec-4", "repo-1", 4),
			}, 5, nil
		},
	}
	prs := &mockPullRequestStore{
		findManyByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]*model.PullRequestRecord, error) {
			return []*model.PullRequestRecord{
				pullRequestFixture("repo-1", 3),
				pullRequestFixture("repo-1", 4),
			}, nil
		},
		findSuggestionCountsByKeysFunc: func(ctx context.Context, org model.OrganizationAndTeamData, keys []model.PullRequestKey) ([]model.SuggestionsCount, error) {
			return nil, nil
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions, PullRequests: prs})

	page, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
		Limit:        2,
		Page:         2,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, model.Pagination{
		CurrentPage:     2,
		TotalPages:      3,
		TotalItems:      5,
		ItemsPerPage:    2,
		HasNextPage:     true,
		HasPreviousPage: true,
	}, page.Pagination)
}

func TestEnrichmentService_GetEnrichedPullRequests_ExecutionStoreFailurePropagates(t *testing.T) {
	executions := &mockExecutionStore{
		findPullRequestExecutionsFunc: func(ctx context.Context, params core.FindExecutionsParams) ([]model.AutomationExecution, int, error) {
			return nil, 0, errors.New("db gone")
		},
	}
	svc := newEnrichmentService(t, EnrichmentServiceOptions{Executions: executions})

	_, err := svc.GetEnrichedPullRequests(context.Background(), model.EnrichedPullRequestsQuery{
		Organization: testOrg,
	})
	require.Error(t, err)
}
