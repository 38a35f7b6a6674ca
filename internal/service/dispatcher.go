package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/core"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/suggestion"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/trigger"
)

// DispatchOutcome classifies what happened to one canonical trigger.
type DispatchOutcome string

const (
	// OutcomeDispatched means the automation strategy ran and its result was persisted.
	OutcomeDispatched DispatchOutcome = "dispatched"
	// OutcomeSkippedByGate means the gating predicate rejected the event.
	OutcomeSkippedByGate DispatchOutcome = "skipped_by_gate"
	// OutcomeAbandoned means required data could not be assembled (missing
	// pull request, backfill failure). Not an error: some payloads are
	// simply not reviewable.
	OutcomeAbandoned DispatchOutcome = "abandoned"
	// OutcomeFailed means the strategy raised; the failure was logged and
	// swallowed so the webhook-handling path stays alive.
	OutcomeFailed DispatchOutcome = "failed"
)

// DispatchServiceOptions groups dependencies for DispatchService.
type DispatchServiceOptions struct {
	CodeManagement core.CodeManagement     // Required: backfill collaborator
	Executor       core.AutomationExecutor // Required: automation execution strategy
	Results        core.ReviewResultStore  // Required: processed-result persistence
	Languages      core.LanguageCache      // Optional: repository language cache
	Quotas         model.SeverityQuotas    // Per-severity selection quotas (zero value = unlimited)
	Logger         *slog.Logger            // Optional: structured logger
}

// DispatchService consumes canonical triggers, applies the gating predicate,
// backfills missing pull-request and repository data, and invokes the code
// review automation strategy.
type DispatchService struct {
	codeManagement core.CodeManagement
	executor       core.AutomationExecutor
	results        core.ReviewResultStore
	languages      core.LanguageCache
	quotas         model.SeverityQuotas
	logger         *slog.Logger
}

// NewDispatchService constructs a new DispatchService.
func NewDispatchService(opts DispatchServiceOptions) (*DispatchService, error) {
	if opts.CodeManagement == nil {
		return nil, errors.New("CodeManagement is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("AutomationExecutor is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ReviewResultStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatch_service")
	}

	return &DispatchService{
		codeManagement: opts.CodeManagement,
		executor:       opts.Executor,
		results:        opts.Results,
		languages:      opts.Languages,
		quotas:         opts.Quotas,
		logger:         logger,
	}, nil
}

// DispatchParams carries one canonical trigger into dispatch. The raw
// payload rides along because the gate reads provider-specific state fields
// the canonical trigger does not keep.
type DispatchParams struct {
	Organization  model.OrganizationAndTeamData
	Trigger       model.CanonicalTrigger
	Payload       trigger.Payload
	CorrelationID string
}

// Dispatch runs the full decision pipeline for one trigger. It never
// returns an error: strategy failures are logged with full context and
// swallowed, since the queue already bounds retries upstream and a failed
// dispatch must not crash the webhook-handling path.
func (s *DispatchService) Dispatch(ctx context.Context, params DispatchParams) DispatchOutcome {
	t := params.Trigger

	if !trigger.ShouldRun(trigger.GateInput{
		Platform: t.Platform,
		Action:   t.Action,
		Origin:   t.Origin,
		Payload:  params.Payload,
	}) {
		s.debug(ctx, params, "dispatch skipped by gate", "action", t.Action)
		return OutcomeSkippedByGate
	}

	if t.PullRequest == nil {
		pr, ok := s.backfillPullRequest(ctx, params)
		if !ok {
			return OutcomeAbandoned
		}
		t.PullRequest = pr
	}

	s.resolveRepositoryLanguage(ctx, params, &t)

	result, err := s.executor.ExecuteStrategy(ctx, model.AutomationCodeReview, core.ExecuteStrategyParams{
		Organization:  params.Organization,
		Trigger:       t,
		UserGitID:     deriveUserGitID(t),
		CorrelationID: params.CorrelationID,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "automation strategy failed",
				"correlation_id", params.CorrelationID,
				"organization_id", params.Organization.OrganizationID,
				"platform", t.Platform,
				"repository_id", t.Repository.ID,
				"pr_number", t.Number,
				"error", err,
			)
		}
		return OutcomeFailed
	}

	if persistErr := s.persistResult(ctx, params, t, result); persistErr != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "persist review result failed",
				"correlation_id", params.CorrelationID,
				"execution_uuid", result.ExecutionUUID,
				"error", persistErr,
			)
		}
		return OutcomeFailed
	}

	return OutcomeDispatched
}

// backfillPullRequest fetches the pull request by number and reshapes it
// into the same head/base/user/isDraft shape the mapper would have
// produced, keeping downstream consumers provider-agnostic.
func (s *DispatchService) backfillPullRequest(ctx context.Context, params DispatchParams) (*model.TriggerPullRequest, bool) {
	t := params.Trigger
	record, err := s.codeManagement.GetPullRequest(ctx, core.GetPullRequestParams{
		Organization: params.Organization,
		Repository:   t.Repository,
		Number:       t.Number,
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "pull request backfill failed",
				"correlation_id", params.CorrelationID,
				"repository_id", t.Repository.ID,
				"pr_number", t.Number,
				"error", err,
			)
		}
		return nil, false
	}
	if record == nil {
		s.debug(ctx, params, "pull request not found during backfill", "pr_number", t.Number)
		return nil, false
	}

	return &model.TriggerPullRequest{
		Number:  record.Number,
		Title:   record.Title,
		State:   record.Status,
		Merged:  record.Merged,
		IsDraft: record.IsDraft,
		Head:    model.TriggerBranch{Ref: record.Head.Ref, SHA: record.Head.SHA},
		Base:    model.TriggerBranch{Ref: record.Base.Ref, SHA: record.Base.SHA},
		User: model.TriggerUser{
			Username: record.Author.Username,
			ID:       record.Author.ID,
		},
		URL: record.URL,
	}, true
}

// resolveRepositoryLanguage backfills the repository language for providers
// that do not ship it in the webhook (everyone but GitHub). The cache is
// consulted first; a cache or collaborator failure degrades to an empty
// language rather than aborting the dispatch.
func (s *DispatchService) resolveRepositoryLanguage(ctx context.Context, params DispatchParams, t *model.CanonicalTrigger) {
	if t.Repository.Language != "" || t.Platform == model.PlatformGithub {
		return
	}

	if s.languages != nil {
		lang, hit, err := s.languages.GetLanguage(ctx, params.Organization, t.Repository.ID)
		if err != nil {
			s.debug(ctx, params, "language cache read failed", "error", err)
		} else if hit {
			t.Repository.Language = lang
			return
		}
	}

	lang, err := s.codeManagement.GetRepositoryLanguage(ctx, params.Organization, t.Repository.ID)
	if err != nil {
		s.debug(ctx, params, "repository language lookup failed", "error", err)
		return
	}
	t.Repository.Language = lang

	if s.languages != nil && lang != "" {
		if err := s.languages.SetLanguage(ctx, params.Organization, t.Repository.ID, lang); err != nil {
			s.debug(ctx, params, "language cache write failed", "error", err)
		}
	}
}

// persistResult clusters related findings, applies the severity quotas, and
// stores the processed suggestions with the execution reference.
func (s *DispatchService) persistResult(ctx context.Context, params DispatchParams, t model.CanonicalTrigger, result *core.ExecutionResult) error {
	if result == nil {
		return nil
	}

	processed := suggestion.Prioritize(suggestion.ClusterRelated(result.Suggestions), s.quotas)

	return s.results.SaveReviewResult(ctx, core.SaveReviewResultParams{
		Organization:  params.Organization,
		Platform:      t.Platform,
		Repository:    t.Repository,
		Number:        t.Number,
		ExecutionUUID: result.ExecutionUUID,
		Suggestions:   processed,
	})
}

// deriveUserGitID picks the first non-empty provider identifier, in the
// fixed order descriptor (Azure), id, uuid.
func deriveUserGitID(t model.CanonicalTrigger) string {
	candidates := []string{t.User.Descriptor, t.User.ID, t.User.UUID}
	if t.PullRequest != nil {
		candidates = append(candidates,
			t.PullRequest.User.Descriptor, t.PullRequest.User.ID, t.PullRequest.User.UUID)
	}
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func (s *DispatchService) debug(ctx context.Context, params DispatchParams, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	base := []any{
		"correlation_id", params.CorrelationID,
		"platform", params.Trigger.Platform,
		"repository_id", params.Trigger.Repository.ID,
	}
	s.logger.DebugContext(ctx, msg, append(base, args...)...)
}
