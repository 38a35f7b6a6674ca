package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
)

const defaultEnrichedPageSize = 30

// EnrichmentServiceOptions groups dependencies for EnrichmentService.
type EnrichmentServiceOptions struct {
	Executions   core.ExecutionStore          // Required: automation execution history
	PullRequests core.PullRequestStore        // Required: pull-request records and projections
	CodeReviews  core.CodeReviewStore         // Required: code review timelines
	Scope        core.RepositoryScopeResolver // Required: authorization collaborator
	Directory    core.RepositoryDirectory     // Required: repository name resolution
	Logger       *slog.Logger                 // Optional: structured logger
}

// EnrichmentService paginates a tenant's automation-execution history and
// joins it in bulk against pull requests, suggestion-count projections, and
// code-review timelines.
type EnrichmentService struct {
	executions   core.ExecutionStore
	pullRequests core.PullRequestStore
	codeReviews  core.CodeReviewStore
	scope        core.RepositoryScopeResolver
	directory    core.RepositoryDirectory
	logger       *slog.Logger
}

// NewEnrichmentService constructs a new EnrichmentService.
func NewEnrichmentService(opts EnrichmentServiceOptions) (*EnrichmentService, error) {
	switch {
	case opts.Executions == nil:
		return nil, errors.New("ExecutionStore is required")
	case opts.PullRequests == nil:
		return nil, errors.New("PullRequestStore is required")
	case opts.CodeReviews == nil:
		return nil, errors.New("CodeReviewStore is required")
	case opts.Scope == nil:
		return nil, errors.New("RepositoryScopeResolver is required")
	case opts.Directory == nil:
		return nil, errors.New("RepositoryDirectory is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "enrichment_service")
	}

	return &EnrichmentService{
		executions:   opts.Executions,
		pullRequests: opts.PullRequests,
		codeReviews:  opts.CodeReviews,
		scope:        opts.Scope,
		directory:    opts.Directory,
		logger:       logger,
	}, nil
}

// GetEnrichedPullRequests returns one page of enriched executions plus
// stable pagination metadata. Authorization emptiness and empty filter
// intersections yield a well-formed empty page, never an error; failures of
// the pagination loop itself propagate to the caller.
func (s *EnrichmentService) GetEnrichedPullRequests(ctx context.Context, query model.EnrichedPullRequestsQuery) (*model.EnrichedPullRequestsPage, error) {
	if query.Organization.OrganizationID == "" {
		return nil, errors.New("organization id is required")
	}
	limit, page := normalizePageBounds(query.Limit, query.Page)

	scope, err := s.scope.GetRepositoryScope(ctx, query.Organization)
	if err != nil {
		return nil, fmt.Errorf("resolve repository scope: %w", err)
	}
	// nil = unrestricted; empty = explicitly no access.
	if scope != nil && len(scope) == 0 {
		return emptyEnrichedPage(limit, page), nil
	}

	repositoryIDs, matched, err := s.resolveRepositoryFilter(ctx, query)
	if err != nil {
		return nil, err
	}
	if !matched {
		return emptyEnrichedPage(limit, page), nil
	}
	repositoryIDs, ok := intersectScope(repositoryIDs, scope)
	if !ok {
		return emptyEnrichedPage(limit, page), nil
	}

	// The title filter is pre-resolved to {repositoryId, number} pairs
	// before the pagination loop so partial batches cannot produce false
	// negatives.
	var titleKeys []model.PullRequestKey
	if title := strings.TrimSpace(query.PullRequestTitle); title != "" {
		titleKeys, err = s.pullRequests.FindKeysByTitle(ctx, query.Organization, title)
		if err != nil {
			return nil, fmt.Errorf("resolve pull request title filter %q: %w", title, err)
		}
		if len(titleKeys) == 0 {
			return emptyEnrichedPage(limit, page), nil
		}
	}

	filter := model.ExecutionFilter{
		Organization:      query.Organization,
		RepositoryIDs:     repositoryIDs,
		PullRequestNumber: query.PullRequestNumber,
		PullRequestKeys:   titleKeys,
	}

	return s.paginate(ctx, paginateInput{
		Query:  query,
		Filter: filter,
		Limit:  limit,
		Page:   page,
	})
}

type paginateInput struct {
	Query  model.EnrichedPullRequestsQuery
	Filter model.ExecutionFilter
	Limit  int
	Page   int
}

// paginate runs the sequential fetch loop. The total execution count is
// frozen from the first batch and reused for all pagination math; rows
// inserted or removed mid-query can make totalPages stale, which is the
// documented trade-off of offset pagination here.
func (s *EnrichmentService) paginate(ctx context.Context, in paginateInput) (*model.EnrichedPullRequestsPage, error) {
	initialSkip := (in.Page - 1) * in.Limit
	accumulated := 0
	totalExecutions := -1
	enriched := make([]model.EnrichedPullRequest, 0, in.Limit)

	for {
		batch, total, err := s.executions.FindPullRequestExecutions(ctx, core.FindExecutionsParams{
			Filter: in.Filter,
			Skip:   initialSkip + accumulated,
			Take:   in.Limit,
		})
		if err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "execution pagination failed",
					"organization_id", in.Query.Organization.OrganizationID,
					"team_id", in.Query.Organization.TeamID,
					"repository_ids", in.Filter.RepositoryIDs,
					"page", in.Page,
					"limit", in.Limit,
					"skip", initialSkip+accumulated,
					"error", err,
				)
			}
			return nil, fmt.Errorf("find pull request executions: %w", err)
		}
		if totalExecutions < 0 {
			totalExecutions = total
		}
		if len(batch) == 0 {
			break
		}

		lookups := s.fetchBatchLookups(ctx, in.Query.Organization, batch)

		done := s.assembleBatch(ctx, assembleInput{
			Batch:   batch,
			Lookups: lookups,
			Query:   in.Query,
			Limit:   in.Limit,
		}, &enriched, &accumulated)
		if done {
			break
		}
		if initialSkip+accumulated >= totalExecutions {
			break
		}
	}

	if totalExecutions < 0 {
		totalExecutions = 0
	}
	if len(enriched) > in.Limit {
		enriched = enriched[:in.Limit]
	}

	totalPages := (totalExecutions + in.Limit - 1) / in.Limit
	return &model.EnrichedPullRequestsPage{
		Data: enriched,
		Pagination: model.Pagination{
			CurrentPage:     in.Page,
			TotalPages:      totalPages,
			TotalItems:      totalExecutions,
			ItemsPerPage:    in.Limit,
			HasNextPage:     in.Page < totalPages,
			HasPreviousPage: in.Page > 1,
		},
	}, nil
}

// batchLookups carries the results of the three independent bulk lookups.
type batchLookups struct {
	PullRequests map[string]*model.PullRequestRecord    // keyed repositoryId_number
	Counts       map[string]model.SuggestionsCount      // keyed repositoryId_number
	Reviews      map[string][]model.CodeReviewExecution // keyed execution uuid
}

// fetchBatchLookups issues the three bulk lookups concurrently. Each lookup
// is isolated: a failure degrades to an empty result (logged) instead of
// aborting the batch — enrichment is best-effort, not all-or-nothing.
func (s *EnrichmentService) fetchBatchLookups(ctx context.Context, org model.OrganizationAndTeamData, batch []model.AutomationExecution) batchLookups {
	keys := make([]model.PullRequestKey, 0, len(batch))
	uuids := make([]string, 0, len(batch))
	for _, ex := range batch {
		keys = append(keys, model.PullRequestKey{RepositoryID: ex.RepositoryID, Number: ex.PullRequestNumber})
		uuids = append(uuids, ex.UUID)
	}

	lookups := batchLookups{
		PullRequests: make(map[string]*model.PullRequestRecord, len(batch)),
		Counts:       make(map[string]model.SuggestionsCount, len(batch)),
		Reviews:      make(map[string][]model.CodeReviewExecution, len(batch)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := s.pullRequests.FindManyByKeys(gctx, org, keys)
		if err != nil {
			s.logLookupFailure(gctx, "bulk pull request lookup failed", err)
			return nil
		}
		for _, pr := range records {
			lookups.PullRequests[pullRequestMapKey(pr.Repository.ID, pr.Number)] = pr
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.pullRequests.FindSuggestionCountsByKeys(gctx, org, keys)
		if err != nil {
			s.logLookupFailure(gctx, "bulk suggestion count lookup failed", err)
			return nil
		}
		for _, c := range counts {
			lookups.Counts[pullRequestMapKey(c.RepositoryID, c.Number)] = c
		}
		return nil
	})
	g.Go(func() error {
		reviews, err := s.codeReviews.FindByAutomationExecutionUUIDs(gctx, uuids)
		if err != nil {
			s.logLookupFailure(gctx, "bulk code review lookup failed", err)
			return nil
		}
		for _, cr := range reviews {
			lookups.Reviews[cr.AutomationExecutionUUID] = append(lookups.Reviews[cr.AutomationExecutionUUID], cr)
		}
		return nil
	})
	// The goroutines never return errors; Wait is a pure join point.
	_ = g.Wait()

	return lookups
}

type assembleInput struct {
	Batch   []model.AutomationExecution
	Lookups batchLookups
	Query   model.EnrichedPullRequestsQuery
	Limit   int
}

// assembleBatch enriches executions one by one, counting every processed
// execution so the next skip is computed from processed rows, not merely
// fetched ones. Returns true once the page limit is reached.
func (s *EnrichmentService) assembleBatch(ctx context.Context, in assembleInput, enriched *[]model.EnrichedPullRequest, accumulated *int) bool {
	for _, ex := range in.Batch {
		*accumulated++

		key := pullRequestMapKey(ex.RepositoryID, ex.PullRequestNumber)
		pr, ok := in.Lookups.PullRequests[key]
		if !ok {
			// Data-integrity gap between stores; skip, not fatal.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "no pull request record for execution",
					"execution_uuid", ex.UUID,
					"repository_id", ex.RepositoryID,
					"pr_number", ex.PullRequestNumber,
				)
			}
			continue
		}

		record := buildEnrichedPullRequest(ex, pr, in.Lookups)
		if !matchesSentSuggestionsFilter(record.SuggestionsSent, in.Query.HasSentSuggestions) {
			continue
		}

		*enriched = append(*enriched, record)
		if len(*enriched) >= in.Limit {
			return true
		}
	}
	return false
}

func buildEnrichedPullRequest(ex model.AutomationExecution, pr *model.PullRequestRecord, lookups batchLookups) model.EnrichedPullRequest {
	key := pullRequestMapKey(ex.RepositoryID, ex.PullRequestNumber)

	sent, total := 0, 0
	if counts, ok := lookups.Counts[key]; ok {
		sent, total = counts.Sent, counts.Total
	} else {
		// Projection missing; fall back to scanning the nested files.
		sent = pr.SentSuggestionsCount()
		for i := range pr.Files {
			total += len(pr.Files[i].Suggestions)
		}
	}

	return model.EnrichedPullRequest{
		UUID:               pr.UUID,
		Number:             pr.Number,
		Title:              pr.Title,
		Status:             pr.Status,
		Merged:             pr.Merged,
		URL:                pr.URL,
		Repository:         pr.Repository,
		Provider:           pr.Provider,
		Author:             pr.Author,
		IsDraft:            pr.IsDraft,
		AutomationUUID:     ex.UUID,
		AutomationStatus:   ex.Status,
		Origin:             ex.Origin,
		SuggestionsSent:    sent,
		SuggestionsTotal:   total,
		CodeReviewTimeline: lookups.Reviews[ex.UUID],
		ExecutedAt:         ex.CreatedAt,
		UpdatedAt:          ex.UpdatedAt,
	}
}

// resolveRepositoryFilter turns the query's repository id/name into a list
// of repository ids. The bool result is false when a requested filter
// matched nothing, which short-circuits to an empty page.
func (s *EnrichmentService) resolveRepositoryFilter(ctx context.Context, query model.EnrichedPullRequestsQuery) ([]string, bool, error) {
	// An explicit id wins over a name.
	if id := strings.TrimSpace(query.RepositoryID); id != "" {
		return []string{id}, true, nil
	}
	name := strings.TrimSpace(query.RepositoryName)
	if name == "" {
		return nil, true, nil
	}

	refs, err := s.directory.ListRepositories(ctx, query.Organization)
	if err != nil {
		return nil, false, fmt.Errorf("list repositories for name filter %q: %w", name, err)
	}

	needle := strings.ToLower(name)
	seen := make(map[string]struct{})
	var ids []string
	for _, ref := range refs {
		if !repositoryMatches(ref, needle) {
			continue
		}
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		ids = append(ids, ref.ID)
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	return ids, true, nil
}

// repositoryMatches applies the exact-id, exact-name, full-name, and
// org/name match rules, all case-insensitive.
func repositoryMatches(ref core.RepositoryRef, needle string) bool {
	if strings.ToLower(ref.ID) == needle || strings.ToLower(ref.Name) == needle {
		return true
	}
	full := strings.ToLower(ref.FullName)
	if full != "" {
		if full == needle {
			return true
		}
		if idx := strings.LastIndex(full, "/"); idx >= 0 && full[idx+1:] == needle {
			return true
		}
	}
	return false
}

// intersectScope narrows the requested filter to the authorized scope.
// A nil scope is unrestricted. The bool result is false when the
// intersection is empty.
func intersectScope(requested, scope []string) ([]string, bool) {
	if scope == nil {
		return requested, true
	}
	if len(requested) == 0 {
		return scope, true
	}
	allowed := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		allowed[id] = struct{}{}
	}
	var out []string
	for _, id := range requested {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// matchesSentSuggestionsFilter applies the tri-state hasSentSuggestions
// filter: true means sent > 0, false means sent <= 0, unset means no filter.
func matchesSentSuggestionsFilter(sent int, filter *bool) bool {
	if filter == nil {
		return true
	}
	if *filter {
		return sent > 0
	}
	return sent <= 0
}

func normalizePageBounds(limit, page int) (int, int) {
	if limit < 1 {
		limit = defaultEnrichedPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}

func emptyEnrichedPage(limit, page int) *model.EnrichedPullRequestsPage {
	return &model.EnrichedPullRequestsPage{
		Data: []model.EnrichedPullRequest{},
		Pagination: model.Pagination{
			CurrentPage:     page,
			TotalPages:      0,
			TotalItems:      0,
			ItemsPerPage:    limit,
			HasNextPage:     false,
			HasPreviousPage: page > 1,
		},
	}
}

func pullRequestMapKey(repositoryID string, number int) string {
	return repositoryID + "_" + strconv.Itoa(number)
}

func (s *EnrichmentService) logLookupFailure(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, "error", err)
	}
}
