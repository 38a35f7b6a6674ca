package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/domain/model"
	"github.com/sparrowwelcomehr-jpg/kodus-ai-sub002/internal/service"
)

// ExecutionHandlers provides HTTP handlers for the enriched executions listing.
type ExecutionHandlers struct {
	Svc *service.EnrichmentService
}

// ListEnriched handles the dashboard listing of automation executions joined
// with their pull requests and review timelines.
func (h *ExecutionHandlers) ListEnriched(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	orgID := q.Get("organizationId")
	if orgID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_query",
			Err:     errors.New("organizationId is required"),
		})
		return
	}

	query := model.EnrichedPullRequestsQuery{
		Organization: model.OrganizationAndTeamData{
			OrganizationID: orgID,
			TeamID:         q.Get("teamId"),
		},
		RepositoryID:     q.Get("repositoryId"),
		RepositoryName:   q.Get("repositoryName"),
		PullRequestTitle: q.Get("pullRequestTitle"),
		Limit:            parseIntQuery(r, "limit", 0),
		Page:             parseIntQuery(r, "page", 0),
	}

	if v := q.Get("pullRequestNumber"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     errors.New("pullRequestNumber must be an integer"),
			})
			return
		}
		query.PullRequestNumber = &n
	}

	if v := q.Get("hasSentSuggestions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, ErrorParams{
				Code:    http.StatusBadRequest,
				ErrCode: "invalid_query",
				Err:     errors.New("hasSentSuggestions must be a boolean"),
			})
			return
		}
		query.HasSentSuggestions = &b
	}

	page, err := h.Svc.GetEnrichedPullRequests(r.Context(), query)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
